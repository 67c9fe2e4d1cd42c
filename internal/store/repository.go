package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

// Reader is the read side shared by the repository and open transactions.
type Reader interface {
	GetProvider(ctx context.Context, providerID uuid.UUID) (domain.Provider, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)

	ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error)

	ListRules(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error)
	ListRulesForWeekday(ctx context.Context, providerID uuid.UUID, weekday int) ([]domain.AvailabilityRule, error)
	ListTimeOff(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.TimeOff, error)

	// ListActiveBookings returns PENDING and CONFIRMED bookings of the service
	// intersecting [windowStart, windowEnd).
	ListActiveBookings(ctx context.Context, serviceID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	// ListBookings returns every booking on the provider's services starting in
	// [from, to), ordered by start. A zero bound leaves that side open.
	ListBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Booking, error)

	ListNotifications(ctx context.Context, bookingID uuid.UUID) ([]domain.Notification, error)
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
}

// Tx is a unit of work. Everything done through a Tx commits or rolls back
// together.
type Tx interface {
	Reader

	InsertService(ctx context.Context, svc domain.Service) (domain.Service, error)
	// UpdateService overwrites the editable fields of a service the provider owns.
	UpdateService(ctx context.Context, svc domain.Service) error
	// DeleteService removes the service with its bookings and their notifications.
	DeleteService(ctx context.Context, providerID uuid.UUID, serviceID uuid.UUID) error

	InsertRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error)
	DeleteRules(ctx context.Context, providerID uuid.UUID, ruleIDs []uuid.UUID) error
	DeleteRule(ctx context.Context, providerID uuid.UUID, ruleID uuid.UUID) error

	InsertTimeOff(ctx context.Context, off domain.TimeOff) (domain.TimeOff, error)
	DeleteTimeOff(ctx context.Context, providerID uuid.UUID, timeOffID uuid.UUID) error

	CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	UpdateBookingTimes(ctx context.Context, bookingID uuid.UUID, startAt, endAt time.Time) error
	UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, status domain.BookingStatus, cancelledAt *time.Time, reason *string) error

	// DeletePendingNotifications drops jobs of the booking that were not sent yet.
	DeletePendingNotifications(ctx context.Context, bookingID uuid.UUID) error
	// UpsertNotification is keyed by (booking, channel, kind). An existing row
	// keeps its status and recipient and only gets the new run time.
	UpsertNotification(ctx context.Context, n domain.Notification) error
	MarkNotificationSent(ctx context.Context, notificationID uuid.UUID, sentAt time.Time) error
	MarkNotificationFailed(ctx context.Context, notificationID uuid.UUID, lastError string) error
}

type Repository interface {
	Reader

	// InProviderTransaction runs fn in one transaction that is serialized with
	// every other provider transaction for the same provider.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx Tx) error) error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

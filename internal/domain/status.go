package domain

import "errors"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// ActiveBookingStatuses block slots and participate in conflict checks.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

var ErrUnknownStatus = errors.New("unknown booking status")

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return BookingStatus(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

func (s BookingStatus) Active() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed:
		return true
	case BookingStatusCancelled:
		return false
	default:
		return false
	}
}

// CanTransition is the booking lifecycle: PENDING -> CONFIRMED|CANCELLED,
// CONFIRMED -> CANCELLED, CANCELLED is terminal.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return to == BookingStatusConfirmed || to == BookingStatusCancelled
	case BookingStatusConfirmed:
		return to == BookingStatusCancelled
	case BookingStatusCancelled:
		return false
	default:
		return false
	}
}

type NotificationKind string

const (
	NotificationBookingConfirmation NotificationKind = "BOOKING_CONFIRMATION"
	NotificationReminder24h         NotificationKind = "REMINDER_24H"
	NotificationReminder2h          NotificationKind = "REMINDER_2H"
)

type NotificationChannel string

const NotificationChannelEmail NotificationChannel = "EMAIL"

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Role identifies the caller of a provider-facing operation.
type Role string

const (
	RoleProvider Role = "PROVIDER"
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleProvider, RoleCustomer, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Timezone  string    `bun:"timezone,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (p *Provider) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Service is owned by a provider. Scheduling only reads it.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID                      uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID              uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	Title                   string    `bun:"title,notnull"`
	PriceCents              int64     `bun:"price_cents,notnull"`
	DefaultDurationMins     int       `bun:"default_duration_mins,notnull"`
	CancellationPolicyHours int       `bun:"cancellation_policy_hours,notnull"`
	CreatedAt               time.Time `bun:"created_at,notnull"`
	UpdatedAt               time.Time `bun:"updated_at,notnull"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// DefaultDuration falls back to one hour for services without a configured
// duration.
func (s Service) DefaultDuration() time.Duration {
	if s.DefaultDurationMins <= 0 {
		return time.Hour
	}
	return time.Duration(s.DefaultDurationMins) * time.Minute
}

// AvailabilityRule is a weekly recurring window in the provider's local time.
// Weekday uses Sunday=0.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	Weekday    int       `bun:"weekday,notnull"`
	StartLocal string    `bun:"start_local,notnull"`
	EndLocal   string    `bun:"end_local,notnull"`
	SlotMins   int       `bun:"slot_mins,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
}

type TimeOff struct {
	bun.BaseModel `bun:"table:time_off"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID   uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	StartTimeUTC time.Time `bun:"start_time_utc,notnull"`
	EndTimeUTC   time.Time `bun:"end_time_utc,notnull"`
	Reason       *string   `bun:"reason"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func (t *TimeOff) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (t TimeOff) Interval() Interval {
	return Interval{Start: t.StartTimeUTC.UTC(), End: t.EndTimeUTC.UTC()}
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                 uuid.UUID     `bun:"id,pk,type:uuid"`
	ServiceID          uuid.UUID     `bun:"service_id,notnull,type:uuid"`
	StartAt            time.Time     `bun:"start_at,notnull"`
	EndAt              time.Time     `bun:"end_at,nullzero"`
	CustomerName       string        `bun:"customer_name,notnull"`
	CustomerEmail      string        `bun:"customer_email,notnull"`
	CustomerPhone      *string       `bun:"customer_phone"`
	Notes              *string       `bun:"notes"`
	Status             BookingStatus `bun:"status,notnull"`
	ManageToken        string        `bun:"manage_token,notnull,unique"`
	CancelledAt        *time.Time    `bun:"cancelled_at"`
	CancellationReason *string       `bun:"cancellation_reason"`
	CreatedAt          time.Time     `bun:"created_at,notnull"`
	UpdatedAt          time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// EffectiveEnd is EndAt, or StartAt plus fallback for rows without an end.
func (b Booking) EffectiveEnd(fallback time.Duration) time.Time {
	if b.EndAt.IsZero() {
		return b.StartAt.UTC().Add(fallback)
	}
	return b.EndAt.UTC()
}

func (b Booking) Interval(fallback time.Duration) Interval {
	return Interval{Start: b.StartAt.UTC(), End: b.EffectiveEnd(fallback)}
}

type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        uuid.UUID           `bun:"id,pk,type:uuid"`
	BookingID uuid.UUID           `bun:"booking_id,notnull,type:uuid,unique:notifications_booking_channel_kind"`
	Channel   NotificationChannel `bun:"channel,notnull,unique:notifications_booking_channel_kind"`
	Kind      NotificationKind    `bun:"kind,notnull,unique:notifications_booking_channel_kind"`
	To        string              `bun:"recipient,notnull"`
	RunAt     time.Time           `bun:"run_at,notnull"`
	Status    NotificationStatus  `bun:"status,notnull"`
	Attempts  int                 `bun:"attempts,notnull"`
	LastError *string             `bun:"last_error"`
	SentAt    *time.Time          `bun:"sent_at"`
	CreatedAt time.Time           `bun:"created_at,notnull"`
	UpdatedAt time.Time           `bun:"updated_at,notnull"`
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &n.ID, &n.CreatedAt, &n.UpdatedAt)
}

func stamp(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			v, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = v
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
	return nil
}

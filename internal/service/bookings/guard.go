package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

const DefaultHorizon = 90 * 24 * time.Hour

// Candidate is a requested [Start, End) for a service.
type Candidate struct {
	ServiceID  uuid.UUID
	ProviderID uuid.UUID
	domain.Interval
	// ExcludeBookingID is the booking being moved, which never conflicts with
	// itself.
	ExcludeBookingID uuid.UUID
	// NotBefore is the earliest acceptable start; zero means now.
	NotBefore time.Time
	// DefaultDuration resolves bookings stored without an end.
	DefaultDuration time.Duration
}

// ConflictGuard is the write-path check for booking creation and reschedule.
// Check must run on the transaction that performs the write.
type ConflictGuard struct {
	now     func() time.Time
	horizon time.Duration
}

func NewConflictGuard(now func() time.Time, horizon time.Duration) ConflictGuard {
	if now == nil {
		now = time.Now
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return ConflictGuard{now: now, horizon: horizon}
}

func (g ConflictGuard) Check(ctx context.Context, tx store.Reader, c Candidate) error {
	now := g.now().UTC()
	notBefore := c.NotBefore
	if notBefore.IsZero() {
		notBefore = now
	}
	if c.Start.Before(notBefore) {
		return ErrPastStart
	}
	if c.Start.After(now.Add(g.horizon)) {
		return ErrTooFarAhead
	}

	bookings, err := tx.ListActiveBookings(ctx, c.ServiceID, c.Start, c.End)
	if err != nil {
		return err
	}
	for _, b := range bookings {
		if b.ID == c.ExcludeBookingID {
			continue
		}
		if b.Interval(c.DefaultDuration).Overlaps(c.Interval) {
			return ErrSlotTaken
		}
	}

	offs, err := tx.ListTimeOff(ctx, c.ProviderID, c.Start, c.End)
	if err != nil {
		return err
	}
	for _, o := range offs {
		if o.Interval().Overlaps(c.Interval) {
			return ErrProviderUnavailable
		}
	}
	return nil
}

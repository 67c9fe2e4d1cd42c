package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

// Scheduler queues the confirmation and reminder jobs of a booking.
type Scheduler struct {
	repo store.Repository
	opts options
}

func NewScheduler(repo store.Repository, opts ...Option) *Scheduler {
	return &Scheduler{repo: repo, opts: newOptions("notification_scheduler", opts)}
}

// Plan lists the jobs for b: a confirmation due now and reminders 24 and 2
// hours before the start.
func Plan(b domain.Booking, now time.Time) []domain.Notification {
	job := func(kind domain.NotificationKind, runAt time.Time) domain.Notification {
		return domain.Notification{
			BookingID: b.ID,
			Channel:   domain.NotificationChannelEmail,
			Kind:      kind,
			To:        b.CustomerEmail,
			RunAt:     runAt.UTC(),
			Status:    domain.NotificationPending,
		}
	}
	start := b.StartAt.UTC()
	return []domain.Notification{
		job(domain.NotificationBookingConfirmation, now),
		job(domain.NotificationReminder24h, start.Add(-24*time.Hour)),
		job(domain.NotificationReminder2h, start.Add(-2*time.Hour)),
	}
}

// OnBookingCommitted upserts the jobs of the booking. Calling it again for the
// same booking moves the existing jobs instead of adding new ones.
func (s *Scheduler) OnBookingCommitted(ctx context.Context, bookingID uuid.UUID) error {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if !b.Status.Active() {
		return nil
	}

	jobs := Plan(b, s.opts.now().UTC())
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, n := range jobs {
			if err := tx.UpsertNotification(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.opts.log.Debug("notifications queued", slog.String("booking_id", bookingID.String()), slog.Int("jobs", len(jobs)))
	return nil
}

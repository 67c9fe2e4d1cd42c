package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"slotbook/backend/internal/domain"
)

// LogSender writes each job to the log instead of sending it.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(ctx context.Context, n domain.Notification, b domain.Booking) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notification delivered",
		slog.String("channel", string(n.Channel)),
		slog.String("kind", string(n.Kind)),
		slog.String("to", n.To),
		slog.String("subject", Subject(n.Kind)),
		slog.Time("start_at", b.StartAt),
	)
	return nil
}

func Subject(kind domain.NotificationKind) string {
	switch kind {
	case domain.NotificationBookingConfirmation:
		return "Your booking request was received"
	case domain.NotificationReminder24h:
		return "Reminder: your appointment is tomorrow"
	case domain.NotificationReminder2h:
		return "Reminder: your appointment is in 2 hours"
	default:
		return "Booking update"
	}
}

// ManageURL is the customer's link for rescheduling or cancelling b.
func ManageURL(appURL string, b domain.Booking) string {
	return fmt.Sprintf("%s/bookings/%s/manage?token=%s", appURL, b.ID, b.ManageToken)
}

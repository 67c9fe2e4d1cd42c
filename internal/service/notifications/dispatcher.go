package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

// Sender delivers one job. Email transport lives behind it.
type Sender interface {
	Send(ctx context.Context, n domain.Notification, b domain.Booking) error
}

type Dispatcher struct {
	repo   store.Repository
	sender Sender
	opts   options

	// one pass at a time per process
	mu sync.Mutex
}

func NewDispatcher(repo store.Repository, sender Sender, opts ...Option) *Dispatcher {
	return &Dispatcher{repo: repo, sender: sender, opts: newOptions("notification_dispatcher", opts)}
}

type Result struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// RunOnce delivers due PENDING jobs, oldest run time first. Each job ends up
// SENT or FAILED; failed jobs are not retried.
func (d *Dispatcher) RunOnce(ctx context.Context) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.opts.now().UTC()
	due, err := d.repo.ListDueNotifications(ctx, now, d.opts.batchSize)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sendErr := d.deliver(ctx, n)
		err := d.repo.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			if sendErr != nil {
				return tx.MarkNotificationFailed(ctx, n.ID, sendErr.Error())
			}
			return tx.MarkNotificationSent(ctx, n.ID, d.opts.now().UTC())
		})
		if err != nil {
			return res, err
		}

		res.Processed++
		if sendErr != nil {
			res.Failed++
			d.opts.log.Warn("notification failed",
				slog.String("notification_id", n.ID.String()),
				slog.String("kind", string(n.Kind)),
				slog.Any("err", sendErr),
			)
			continue
		}
		res.Sent++
	}
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) error {
	b, err := d.repo.GetBooking(ctx, n.BookingID)
	if errors.Is(err, store.ErrNotFound) {
		return errors.New("booking not found")
	}
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, n, b)
}

// Run calls RunOnce every interval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("dispatch interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := d.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				d.opts.log.Error("dispatch pass failed", slog.Any("err", err))
				continue
			}
			if res.Processed > 0 {
				d.opts.log.Info("dispatch pass", slog.Int("sent", res.Sent), slog.Int("failed", res.Failed))
			}
		}
	}
}

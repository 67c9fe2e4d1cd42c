package bookings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service"
	"slotbook/backend/internal/store"
)

// RescheduleMinLead keeps customers from moving a booking to right now.
const RescheduleMinLead = 5 * time.Minute

// Notifier is told about every committed create or reschedule.
type Notifier interface {
	OnBookingCommitted(ctx context.Context, bookingID uuid.UUID) error
}

type Service struct {
	repo     store.Repository
	notifier Notifier
	guard    ConflictGuard
	now      func() time.Time
	horizon  time.Duration
	log      *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithHorizon(horizon time.Duration) Option {
	return func(s *Service) { s.horizon = horizon }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService builds the booking service. notifier may be nil.
func NewService(repo store.Repository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
		horizon:  DefaultHorizon,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = NewConflictGuard(s.now, s.horizon)
	s.log = s.log.With("component", "bookings")
	return s
}

type BookingInput struct {
	ServiceID     uuid.UUID
	StartAt       time.Time
	DurationMins  int
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Notes         string
	// IdempotencyKey makes retries of the same request return the booking
	// created by the first one.
	IdempotencyKey string
}

const maxIdempotencyKeyLen = 256

// AttemptBooking reserves [StartAt, StartAt+duration) as a PENDING booking.
// The returned booking carries the manage token.
func (s *Service) AttemptBooking(ctx context.Context, in BookingInput) (domain.Booking, error) {
	if in.ServiceID == uuid.Nil {
		return domain.Booking{}, service.Invalid("service_id", "is required")
	}
	if in.StartAt.IsZero() {
		return domain.Booking{}, service.Invalid("start_at", "is required")
	}
	c, err := validateCustomer(in)
	if err != nil {
		return domain.Booking{}, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return domain.Booking{}, service.Invalid("idempotency_key", "must be at most 256 characters")
	}

	svc, err := s.repo.GetService(ctx, in.ServiceID)
	if err != nil {
		return domain.Booking{}, err
	}
	duration, err := bookingDuration(in.DurationMins, svc.DefaultDuration())
	if err != nil {
		return domain.Booking{}, err
	}
	token, err := newManageToken()
	if err != nil {
		return domain.Booking{}, err
	}

	start := in.StartAt.UTC()
	booking := domain.Booking{
		ServiceID:     svc.ID,
		StartAt:       start,
		EndAt:         start.Add(duration),
		CustomerName:  c.name,
		CustomerEmail: c.email,
		CustomerPhone: c.phone,
		Notes:         c.notes,
		Status:        domain.BookingStatusPending,
		ManageToken:   token,
	}
	if key != "" {
		booking.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotbook:create_booking:"+svc.ID.String()+":"+key))
	}

	replayed := false
	err = s.repo.InProviderTransaction(ctx, svc.ProviderID, func(ctx context.Context, tx store.Tx) error {
		if key != "" {
			existing, err := tx.GetBooking(ctx, booking.ID)
			switch {
			case err == nil:
				if !sameRequest(existing, booking) {
					return store.ErrIdempotencyConflict
				}
				booking, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}
		err := s.guard.Check(ctx, tx, Candidate{
			ServiceID:       svc.ID,
			ProviderID:      svc.ProviderID,
			Interval:        domain.Interval{Start: booking.StartAt, End: booking.EndAt},
			DefaultDuration: svc.DefaultDuration(),
		})
		if err != nil {
			return err
		}
		created, err := tx.CreateBooking(ctx, booking)
		if err != nil {
			return err
		}
		booking = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.rejected("create", svc.ID, err)
	}
	if replayed {
		s.log.Info("booking create replayed", slog.String("booking_id", booking.ID.String()))
		return booking, nil
	}

	s.log.Info("booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("service_id", svc.ID.String()),
		slog.Time("start_at", booking.StartAt),
	)
	s.committed(ctx, booking.ID)
	return booking, nil
}

// sameRequest reports whether a stored booking was created from the same
// input as candidate.
func sameRequest(stored, candidate domain.Booking) bool {
	return stored.ServiceID == candidate.ServiceID &&
		stored.StartAt.Equal(candidate.StartAt) &&
		stored.EndAt.Equal(candidate.EndAt) &&
		stored.CustomerName == candidate.CustomerName &&
		strings.EqualFold(stored.CustomerEmail, candidate.CustomerEmail)
}

type RescheduleInput struct {
	Date       string
	StartLocal string
}

// AttemptReschedule moves a booking to a wall-clock start in the provider's
// zone. The new end is the start plus the service's default duration, so a
// custom length chosen at booking time does not carry over. The cutoff is
// measured from the current start.
func (s *Service) AttemptReschedule(ctx context.Context, bookingID uuid.UUID, token string, in RescheduleInput) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, service.Invalid("booking_id", "is required")
	}
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.Booking{}, service.Invalid("date", err.Error())
	}
	if !domain.IsValidHM(in.StartLocal) {
		return domain.Booking{}, service.Invalid("start_local", "must be HH:MM")
	}

	m, err := s.managed(ctx, bookingID, token)
	if err != nil {
		return domain.Booking{}, err
	}
	loc, err := domain.LoadLocation(m.Provider.Timezone)
	if err != nil {
		return domain.Booking{}, err
	}
	newStart := domain.LocalToUTC(date, domain.ParseHM(in.StartLocal), loc)

	var out domain.Booking
	err = s.repo.InProviderTransaction(ctx, m.Service.ProviderID, func(ctx context.Context, tx store.Tx) error {
		b, err := s.lockedForCustomer(ctx, tx, bookingID, token, m.Service)
		if err != nil {
			return err
		}

		candidate := domain.Interval{Start: newStart, End: newStart.Add(m.Service.DefaultDuration())}
		err = s.guard.Check(ctx, tx, Candidate{
			ServiceID:        m.Service.ID,
			ProviderID:       m.Service.ProviderID,
			Interval:         candidate,
			ExcludeBookingID: b.ID,
			NotBefore:        s.now().UTC().Add(RescheduleMinLead),
			DefaultDuration:  m.Service.DefaultDuration(),
		})
		if err != nil {
			return err
		}

		if err := tx.UpdateBookingTimes(ctx, b.ID, candidate.Start, candidate.End); err != nil {
			return err
		}
		if err := tx.DeletePendingNotifications(ctx, b.ID); err != nil {
			return err
		}
		out, err = tx.GetBooking(ctx, b.ID)
		return err
	})
	if err != nil {
		return domain.Booking{}, s.rejected("reschedule", m.Service.ID, err)
	}

	s.log.Info("booking rescheduled",
		slog.String("booking_id", out.ID.String()),
		slog.Time("start_at", out.StartAt),
	)
	s.committed(ctx, out.ID)
	return out, nil
}

// AttemptCancel cancels a booking on behalf of the customer holding token.
// Unsent notifications of the booking are dropped with it.
func (s *Service) AttemptCancel(ctx context.Context, bookingID uuid.UUID, token, reason string) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, service.Invalid("booking_id", "is required")
	}
	why := service.TrimOptional(&reason)
	if why != nil && utf8.RuneCountInString(*why) > 500 {
		return domain.Booking{}, service.Invalid("reason", "must be at most 500 characters")
	}

	m, err := s.managed(ctx, bookingID, token)
	if err != nil {
		return domain.Booking{}, err
	}

	var out domain.Booking
	err = s.repo.InProviderTransaction(ctx, m.Service.ProviderID, func(ctx context.Context, tx store.Tx) error {
		b, err := s.lockedForCustomer(ctx, tx, bookingID, token, m.Service)
		if err != nil {
			return err
		}
		out, err = s.cancel(ctx, tx, b.ID, why)
		return err
	})
	if err != nil {
		return domain.Booking{}, s.rejected("cancel", m.Service.ID, err)
	}

	s.log.Info("booking cancelled", slog.String("booking_id", out.ID.String()), slog.String("by", "customer"))
	return out, nil
}

// SetStatus applies a provider's status change. Bookings of other providers
// report store.ErrNotFound.
func (s *Service) SetStatus(ctx context.Context, providerID, bookingID uuid.UUID, status domain.BookingStatus) (domain.Booking, error) {
	if providerID == uuid.Nil {
		return domain.Booking{}, service.Invalid("provider_id", "is required")
	}
	if bookingID == uuid.Nil {
		return domain.Booking{}, service.Invalid("booking_id", "is required")
	}
	if _, err := domain.ParseBookingStatus(string(status)); err != nil {
		return domain.Booking{}, service.Invalid("status", err.Error())
	}

	current, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	svc, err := s.repo.GetService(ctx, current.ServiceID)
	if err != nil {
		return domain.Booking{}, err
	}
	if svc.ProviderID != providerID {
		return domain.Booking{}, store.ErrNotFound
	}

	var out domain.Booking
	err = s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransition(status) {
			return ErrInvalidTransition
		}
		if status == domain.BookingStatusCancelled {
			out, err = s.cancel(ctx, tx, b.ID, nil)
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, status, nil, nil); err != nil {
			return err
		}
		out, err = tx.GetBooking(ctx, b.ID)
		return err
	})
	if err != nil {
		return domain.Booking{}, s.rejected("set_status", svc.ID, err)
	}

	s.log.Info("booking status changed", slog.String("booking_id", out.ID.String()), slog.String("status", string(out.Status)))
	return out, nil
}

// ListProviderBookings returns the provider's bookings of every status that
// start between the local dates windowStart and windowEnd inclusive. An empty
// date leaves that side of the window open.
func (s *Service) ListProviderBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd string) ([]domain.Booking, error) {
	if providerID == uuid.Nil {
		return nil, service.Invalid("provider_id", "is required")
	}
	var from, to *time.Time
	if strings.TrimSpace(windowStart) != "" {
		d, err := domain.ParseDate(windowStart)
		if err != nil {
			return nil, service.Invalid("from", err.Error())
		}
		from = &d
	}
	if strings.TrimSpace(windowEnd) != "" {
		d, err := domain.ParseDate(windowEnd)
		if err != nil {
			return nil, service.Invalid("to", err.Error())
		}
		to = &d
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, service.Invalid("to", "must not be before from")
	}

	provider, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	loc, err := domain.LoadLocation(provider.Timezone)
	if err != nil {
		return nil, err
	}
	var start, end time.Time
	if from != nil {
		start = domain.LocalToUTC(*from, domain.HM{}, loc)
	}
	if to != nil {
		end = domain.LocalToUTC(to.AddDate(0, 0, 1), domain.HM{}, loc)
	}
	return s.repo.ListBookings(ctx, providerID, start, end)
}

type ManagedBooking struct {
	Booking  domain.Booking
	Service  domain.Service
	Provider domain.Provider
}

// GetManaged returns the booking behind a manage link.
func (s *Service) GetManaged(ctx context.Context, bookingID uuid.UUID, token string) (ManagedBooking, error) {
	if bookingID == uuid.Nil {
		return ManagedBooking{}, service.Invalid("booking_id", "is required")
	}
	return s.managed(ctx, bookingID, token)
}

// managed resolves a booking and its owners for a token holder. Missing
// bookings and wrong tokens are indistinguishable.
func (s *Service) managed(ctx context.Context, bookingID uuid.UUID, token string) (ManagedBooking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return ManagedBooking{}, ErrUnauthorized
	}
	if err != nil {
		return ManagedBooking{}, err
	}
	if !tokenMatches(b.ManageToken, strings.TrimSpace(token)) {
		return ManagedBooking{}, ErrUnauthorized
	}
	svc, err := s.repo.GetService(ctx, b.ServiceID)
	if err != nil {
		return ManagedBooking{}, err
	}
	provider, err := s.repo.GetProvider(ctx, svc.ProviderID)
	if err != nil {
		return ManagedBooking{}, err
	}
	return ManagedBooking{Booking: b, Service: svc, Provider: provider}, nil
}

// lockedForCustomer re-reads the booking inside the provider transaction and
// checks that the customer may still change it.
func (s *Service) lockedForCustomer(ctx context.Context, tx store.Tx, bookingID uuid.UUID, token string, svc domain.Service) (domain.Booking, error) {
	b, err := tx.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !tokenMatches(b.ManageToken, strings.TrimSpace(token)) {
		return domain.Booking{}, ErrUnauthorized
	}
	if b.Status == domain.BookingStatusCancelled {
		return domain.Booking{}, ErrBookingCancelled
	}
	if !withinCutoff(s.now().UTC(), b.StartAt, svc.CancellationPolicyHours) {
		return domain.Booking{}, ErrCutoffPassed
	}
	return b, nil
}

func (s *Service) cancel(ctx context.Context, tx store.Tx, bookingID uuid.UUID, reason *string) (domain.Booking, error) {
	now := s.now().UTC()
	if err := tx.UpdateBookingStatus(ctx, bookingID, domain.BookingStatusCancelled, &now, reason); err != nil {
		return domain.Booking{}, err
	}
	if err := tx.DeletePendingNotifications(ctx, bookingID); err != nil {
		return domain.Booking{}, err
	}
	return tx.GetBooking(ctx, bookingID)
}

// withinCutoff reports whether now is at least cutoffHours before start.
func withinCutoff(now, start time.Time, cutoffHours int) bool {
	cutoff := start.UTC().Add(-time.Duration(cutoffHours) * time.Hour)
	return !now.After(cutoff)
}

func (s *Service) committed(ctx context.Context, bookingID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.OnBookingCommitted(ctx, bookingID); err != nil {
		s.log.Error("enqueue notifications failed",
			slog.String("booking_id", bookingID.String()),
			slog.Any("err", err),
		)
	}
}

// rejected maps the exclusion constraint to ErrSlotTaken and logs the
// outcome of a failed mutation.
func (s *Service) rejected(op string, serviceID uuid.UUID, err error) error {
	if errors.Is(err, store.ErrConflict) {
		err = ErrSlotTaken
	}
	attrs := []any{slog.String("op", op), slog.String("service_id", serviceID.String()), slog.Any("err", err)}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrUnauthorized):
		s.log.Warn("booking mutation rejected", attrs...)
	case service.IsValidation(err):
		s.log.Warn("booking mutation rejected", attrs...)
	default:
		if _, ok := ConflictReason(err); ok {
			s.log.Info("booking mutation rejected", attrs...)
		} else {
			s.log.Error("booking mutation failed", attrs...)
		}
	}
	return err
}

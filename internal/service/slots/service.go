package slots

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service"
	"slotbook/backend/internal/store"
)

const DefaultLead = 60 * time.Minute

type Params struct {
	// ProviderID defaults to the owner of ServiceID.
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	// TimeZone defaults to the provider's zone.
	TimeZone string
	Date     string
	// DurationMins of 0 uses the service's default duration.
	DurationMins int
	// LeadMinutes overrides the configured lead when set.
	LeadMinutes *int
}

type Service struct {
	repo store.Reader
	lead time.Duration
	now  func() time.Time
	log  *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDefaultLead(lead time.Duration) Option {
	return func(s *Service) {
		if lead >= 0 {
			s.lead = lead
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(repo store.Reader, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		lead: DefaultLead,
		now:  time.Now,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "slots")
	return s
}

// Generate lists the UTC start instants, formatted with domain.SlotLayout, at
// which a booking of the requested duration fits the provider's rules for the
// local date without touching an active booking or time off.
func (s *Service) Generate(ctx context.Context, p Params) ([]string, error) {
	if p.ServiceID == uuid.Nil {
		return nil, service.Invalid("service_id", "is required")
	}
	date, err := domain.ParseDate(p.Date)
	if err != nil {
		return nil, service.Invalid("date", err.Error())
	}
	if p.DurationMins < 0 {
		return nil, service.Invalid("duration_mins", "must be positive")
	}
	lead := s.lead
	if p.LeadMinutes != nil {
		if *p.LeadMinutes < 0 {
			return nil, service.Invalid("lead_minutes", "must not be negative")
		}
		lead = time.Duration(*p.LeadMinutes) * time.Minute
	}

	svc, err := s.repo.GetService(ctx, p.ServiceID)
	if err != nil {
		return nil, err
	}
	providerID := p.ProviderID
	if providerID == uuid.Nil {
		providerID = svc.ProviderID
	}
	if providerID != svc.ProviderID {
		return nil, service.Invalid("service_id", "does not belong to provider")
	}

	tz := p.TimeZone
	if tz == "" {
		provider, err := s.repo.GetProvider(ctx, providerID)
		if err != nil {
			return nil, err
		}
		tz = provider.Timezone
	}
	loc, err := domain.LoadLocation(tz)
	if err != nil {
		return nil, service.Invalid("time_zone", err.Error())
	}

	duration := svc.DefaultDuration()
	if p.DurationMins > 0 {
		duration = time.Duration(p.DurationMins) * time.Minute
	}

	rules, err := s.repo.ListRulesForWeekday(ctx, providerID, domain.LocalWeekday(date, loc))
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return []string{}, nil
	}

	windows := domain.BuildWindows(rules, date, loc)
	bounds, err := domain.Bounds(windows)
	if err != nil {
		return nil, err
	}

	blocks, err := s.blocks(ctx, svc, bounds)
	if err != nil {
		return nil, err
	}

	found := domain.CandidateSlots(domain.SlotRequest{
		Windows:       windows,
		Blocks:        blocks,
		Duration:      duration,
		EarliestStart: s.now().UTC().Add(lead),
	})

	out := make([]string, 0, len(found))
	for _, t := range found {
		out = append(out, domain.FormatSlot(t))
	}
	s.log.Debug("slots generated",
		slog.String("service_id", svc.ID.String()),
		slog.String("date", p.Date),
		slog.Int("rules", len(rules)),
		slog.Int("blocks", len(blocks)),
		slog.Int("slots", len(out)),
	)
	return out, nil
}

// blocks merges active bookings of the service and time off of its provider
// that intersect bounds.
func (s *Service) blocks(ctx context.Context, svc domain.Service, bounds domain.Interval) ([]domain.Interval, error) {
	bookings, err := s.repo.ListActiveBookings(ctx, svc.ID, bounds.Start, bounds.End)
	if err != nil {
		return nil, err
	}
	offs, err := s.repo.ListTimeOff(ctx, svc.ProviderID, bounds.Start, bounds.End)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Interval, 0, len(bookings)+len(offs))
	for _, b := range bookings {
		out = append(out, b.Interval(svc.DefaultDuration()))
	}
	for _, o := range offs {
		out = append(out, o.Interval())
	}
	return out, nil
}

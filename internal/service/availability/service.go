package availability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service"
	"slotbook/backend/internal/store"
)

type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeMerged   Outcome = "merged"
	// OutcomeDropped means the normalized range was empty and nothing was written.
	OutcomeDropped Outcome = "dropped"
)

type RuleInput struct {
	Weekday    int
	StartLocal string
	EndLocal   string
	SlotMins   int
}

type RuleResult struct {
	Outcome  Outcome
	Rule     domain.AvailabilityRule
	Replaced []uuid.UUID
}

type Service struct {
	repo store.Repository
	log  *slog.Logger
}

func NewService(repo store.Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log.With("component", "availability")}
}

// CreateOrMergeRule stores a weekly rule so that the provider's rules for a
// weekday never overlap or touch. Overlapping rules are replaced by one rule
// spanning all of them.
func (s *Service) CreateOrMergeRule(ctx context.Context, providerID uuid.UUID, in RuleInput) (RuleResult, error) {
	if providerID == uuid.Nil {
		return RuleResult{}, service.Invalid("provider_id", "is required")
	}
	if in.Weekday < 0 || in.Weekday > 6 {
		return RuleResult{}, service.Invalid("weekday", "must be between 0 and 6")
	}
	if !domain.IsValidHM(in.StartLocal) {
		return RuleResult{}, service.Invalid("start_local", "must be HH:MM")
	}
	if !domain.IsValidHM(in.EndLocal) {
		return RuleResult{}, service.Invalid("end_local", "must be HH:MM")
	}
	if in.SlotMins <= 0 || in.SlotMins > 24*60 {
		return RuleResult{}, service.Invalid("slot_mins", "must be between 1 and 1440")
	}

	candidate := domain.AvailabilityRule{
		ProviderID: providerID,
		Weekday:    in.Weekday,
		StartLocal: domain.ParseHM(in.StartLocal).String(),
		EndLocal:   domain.ParseHM(in.EndLocal).String(),
		SlotMins:   in.SlotMins,
	}
	if _, ok := domain.PlanRuleMerge(nil, candidate); !ok {
		s.log.Info("rule dropped", slog.String("provider_id", providerID.String()), slog.String("start", candidate.StartLocal), slog.String("end", candidate.EndLocal))
		return RuleResult{Outcome: OutcomeDropped}, nil
	}

	var out RuleResult
	err := s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.ListRulesForWeekday(ctx, providerID, in.Weekday)
		if err != nil {
			return err
		}
		plan, ok := domain.PlanRuleMerge(existing, candidate)
		if !ok {
			out = RuleResult{Outcome: OutcomeDropped}
			return nil
		}
		if err := tx.DeleteRules(ctx, providerID, plan.Delete); err != nil {
			return err
		}
		rule, err := tx.InsertRule(ctx, plan.Insert)
		if err != nil {
			return err
		}

		out = RuleResult{Outcome: OutcomeInserted, Rule: rule, Replaced: plan.Delete}
		if plan.Merged() {
			out.Outcome = OutcomeMerged
		}
		return nil
	})
	if err != nil {
		return RuleResult{}, err
	}
	return out, nil
}

func (s *Service) ListRules(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error) {
	if providerID == uuid.Nil {
		return nil, service.Invalid("provider_id", "is required")
	}
	return s.repo.ListRules(ctx, providerID)
}

// DeleteRule removes one of the provider's rules. Rules of other providers
// report store.ErrNotFound.
func (s *Service) DeleteRule(ctx context.Context, providerID, ruleID uuid.UUID) error {
	if providerID == uuid.Nil {
		return service.Invalid("provider_id", "is required")
	}
	if ruleID == uuid.Nil {
		return service.Invalid("rule_id", "is required")
	}
	return s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteRule(ctx, providerID, ruleID)
	})
}

type TimeOffInput struct {
	Date       string
	StartLocal string
	EndLocal   string
	Reason     string
}

// AddTimeOff blocks [start, end) on one local date of the provider. ok is
// false when the range is empty, in which case nothing is written.
func (s *Service) AddTimeOff(ctx context.Context, providerID uuid.UUID, in TimeOffInput) (off domain.TimeOff, ok bool, err error) {
	if providerID == uuid.Nil {
		return domain.TimeOff{}, false, service.Invalid("provider_id", "is required")
	}
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.TimeOff{}, false, service.Invalid("date", err.Error())
	}
	if !domain.IsValidHM(in.StartLocal) {
		return domain.TimeOff{}, false, service.Invalid("start", "must be HH:MM")
	}
	if !domain.IsValidHM(in.EndLocal) {
		return domain.TimeOff{}, false, service.Invalid("end", "must be HH:MM")
	}

	provider, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return domain.TimeOff{}, false, err
	}
	loc, err := domain.LoadLocation(provider.Timezone)
	if err != nil {
		return domain.TimeOff{}, false, err
	}

	start := domain.LocalToUTC(date, domain.ParseHM(in.StartLocal), loc)
	end := domain.LocalToUTC(date, domain.ParseHM(in.EndLocal), loc)
	if !end.After(start) {
		return domain.TimeOff{}, false, nil
	}

	off = domain.TimeOff{
		ProviderID:   providerID,
		StartTimeUTC: start,
		EndTimeUTC:   end,
		Reason:       service.TrimOptional(&in.Reason),
	}
	if off.Reason != nil && len(*off.Reason) > 500 {
		return domain.TimeOff{}, false, service.Invalid("reason", "too long")
	}

	err = s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		saved, err := tx.InsertTimeOff(ctx, off)
		if err != nil {
			return err
		}
		off = saved
		return nil
	})
	if err != nil {
		return domain.TimeOff{}, false, err
	}
	return off, true, nil
}

func (s *Service) ListTimeOff(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd string) ([]domain.TimeOff, error) {
	if providerID == uuid.Nil {
		return nil, service.Invalid("provider_id", "is required")
	}
	from, err := domain.ParseDate(windowStart)
	if err != nil {
		return nil, service.Invalid("from", err.Error())
	}
	to, err := domain.ParseDate(windowEnd)
	if err != nil {
		return nil, service.Invalid("to", err.Error())
	}
	if to.Before(from) {
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
	start := domain.LocalToUTC(from, domain.HM{}, loc)
	end := domain.LocalToUTC(to.AddDate(0, 0, 1), domain.HM{}, loc)
	return s.repo.ListTimeOff(ctx, providerID, start, end)
}

func (s *Service) DeleteTimeOff(ctx context.Context, providerID, timeOffID uuid.UUID) error {
	if providerID == uuid.Nil {
		return service.Invalid("provider_id", "is required")
	}
	if timeOffID == uuid.Nil {
		return service.Invalid("time_off_id", "is required")
	}
	return s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteTimeOff(ctx, providerID, timeOffID)
	})
}

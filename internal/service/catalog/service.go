// Package catalog manages the services a provider offers.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service"
	"slotbook/backend/internal/store"
)

const (
	MinDurationMins = 15
	MaxDurationMins = 8 * 60

	maxTitleLen    = 50
	maxPriceCents  = 10_000_000
	maxCutoffHours = 30 * 24
)

type ServiceInput struct {
	Title                   string
	PriceCents              int64
	DefaultDurationMins     int
	CancellationPolicyHours int
}

// ServiceUpdate changes only the fields that are set.
type ServiceUpdate struct {
	Title                   *string
	PriceCents              *int64
	DefaultDurationMins     *int
	CancellationPolicyHours *int
}

type Service struct {
	repo store.Repository
	log  *slog.Logger
}

func NewService(repo store.Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log.With("component", "catalog")}
}

func (s *Service) ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error) {
	if providerID == uuid.Nil {
		return nil, service.Invalid("provider_id", "is required")
	}
	return s.repo.ListServices(ctx, providerID)
}

// CreateService adds a service for an existing provider.
func (s *Service) CreateService(ctx context.Context, providerID uuid.UUID, in ServiceInput) (domain.Service, error) {
	if providerID == uuid.Nil {
		return domain.Service{}, service.Invalid("provider_id", "is required")
	}
	svc := domain.Service{
		ProviderID:              providerID,
		Title:                   strings.TrimSpace(in.Title),
		PriceCents:              in.PriceCents,
		DefaultDurationMins:     in.DefaultDurationMins,
		CancellationPolicyHours: in.CancellationPolicyHours,
	}
	if err := validate(svc); err != nil {
		return domain.Service{}, err
	}

	var out domain.Service
	err := s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProvider(ctx, providerID); err != nil {
			return err
		}
		created, err := tx.InsertService(ctx, svc)
		out = created
		return err
	})
	if err != nil {
		return domain.Service{}, err
	}
	s.log.Info("service created", slog.String("provider_id", providerID.String()), slog.String("service_id", out.ID.String()))
	return out, nil
}

// UpdateService applies a partial update. Services of other providers report
// store.ErrNotFound. A new default duration only affects bookings made or
// moved afterwards.
func (s *Service) UpdateService(ctx context.Context, providerID, serviceID uuid.UUID, in ServiceUpdate) (domain.Service, error) {
	if providerID == uuid.Nil {
		return domain.Service{}, service.Invalid("provider_id", "is required")
	}
	if serviceID == uuid.Nil {
		return domain.Service{}, service.Invalid("service_id", "is required")
	}

	var out domain.Service
	err := s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		svc, err := tx.GetService(ctx, serviceID)
		if err != nil {
			return err
		}
		if svc.ProviderID != providerID {
			return store.ErrNotFound
		}
		if in.Title != nil {
			svc.Title = strings.TrimSpace(*in.Title)
		}
		if in.PriceCents != nil {
			svc.PriceCents = *in.PriceCents
		}
		if in.DefaultDurationMins != nil {
			svc.DefaultDurationMins = *in.DefaultDurationMins
		}
		if in.CancellationPolicyHours != nil {
			svc.CancellationPolicyHours = *in.CancellationPolicyHours
		}
		if err := validate(svc); err != nil {
			return err
		}
		if err := tx.UpdateService(ctx, svc); err != nil {
			return err
		}
		out, err = tx.GetService(ctx, serviceID)
		return err
	})
	if err != nil {
		return domain.Service{}, err
	}
	s.log.Info("service updated", slog.String("service_id", serviceID.String()))
	return out, nil
}

// DeleteService removes the service together with its bookings.
func (s *Service) DeleteService(ctx context.Context, providerID, serviceID uuid.UUID) error {
	if providerID == uuid.Nil {
		return service.Invalid("provider_id", "is required")
	}
	if serviceID == uuid.Nil {
		return service.Invalid("service_id", "is required")
	}
	err := s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteService(ctx, providerID, serviceID)
	})
	if err != nil {
		return err
	}
	s.log.Info("service deleted", slog.String("service_id", serviceID.String()))
	return nil
}

func validate(svc domain.Service) error {
	if n := utf8.RuneCountInString(svc.Title); n < 3 || n > maxTitleLen {
		return service.Invalid("title", "must be 3 to 50 characters")
	}
	if svc.PriceCents <= 0 || svc.PriceCents > maxPriceCents {
		return service.Invalid("price_cents", "must be between 1 and 10000000")
	}
	if svc.DefaultDurationMins < MinDurationMins || svc.DefaultDurationMins > MaxDurationMins {
		return service.Invalid("default_duration_mins", "must be between 15 and 480")
	}
	if svc.CancellationPolicyHours < 0 || svc.CancellationPolicyHours > maxCutoffHours {
		return service.Invalid("cancellation_policy_hours", "must be between 0 and 720")
	}
	return nil
}

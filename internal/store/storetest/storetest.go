// Package storetest provides a migrated in-memory SQLite repository and
// seeding helpers for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store/bunstore"
)

type Env struct {
	DB   *bun.DB
	Repo *bunstore.Repo
}

func NewSQLite(t testing.TB) Env {
	t.Helper()

	db, err := bunstore.Open("sqlite::memory:", bunstore.PoolConfig{})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = bunstore.Close(db)
	})

	if err := bunstore.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	return Env{DB: db, Repo: bunstore.NewRepo(db)}
}

func (e Env) SeedProvider(t testing.TB, timezone string) domain.Provider {
	t.Helper()
	p := domain.Provider{Name: "provider", Timezone: timezone}
	if _, err := e.DB.NewInsert().Model(&p).Exec(context.Background()); err != nil {
		t.Fatalf("insert provider: %v", err)
	}
	return p
}

// SeedService inserts a service of the provider with the given default
// duration and cancellation cutoff.
func (e Env) SeedService(t testing.TB, provider domain.Provider, durationMins, cutoffHours int) domain.Service {
	t.Helper()
	s := domain.Service{
		ProviderID:              provider.ID,
		Title:                   "service",
		PriceCents:              5000,
		DefaultDurationMins:     durationMins,
		CancellationPolicyHours: cutoffHours,
	}
	if _, err := e.DB.NewInsert().Model(&s).Exec(context.Background()); err != nil {
		t.Fatalf("insert service: %v", err)
	}
	return s
}

func (e Env) SeedRule(t testing.TB, rule domain.AvailabilityRule) domain.AvailabilityRule {
	t.Helper()
	if _, err := e.DB.NewInsert().Model(&rule).Exec(context.Background()); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	return rule
}

func (e Env) SeedTimeOff(t testing.TB, off domain.TimeOff) domain.TimeOff {
	t.Helper()
	if _, err := e.DB.NewInsert().Model(&off).Exec(context.Background()); err != nil {
		t.Fatalf("insert time off: %v", err)
	}
	return off
}

func (e Env) SeedBooking(t testing.TB, b domain.Booking) domain.Booking {
	t.Helper()
	if b.Status == "" {
		b.Status = domain.BookingStatusConfirmed
	}
	if b.ManageToken == "" {
		b.ManageToken = "token-" + uuid.NewString()
	}
	if b.CustomerName == "" {
		b.CustomerName = "Customer"
	}
	if b.CustomerEmail == "" {
		b.CustomerEmail = "customer@example.com"
	}
	if _, err := e.DB.NewInsert().Model(&b).Exec(context.Background()); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	return b
}

package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"slotbook/backend/internal/domain"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to postgres for postgres:// and postgresql:// URLs and to
// sqlite for sqlite: and file: URLs. SQLite pools are pinned to a single
// connection so that transactions serialize.
func Open(databaseURL string, pool PoolConfig) (*bun.DB, error) {
	driver, dsn, err := driverFor(databaseURL)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		pool = PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if driver == "sqlite" {
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func driverFor(databaseURL string) (driver, dsn string, err error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return "pgx", u, nil
	case strings.HasPrefix(u, "sqlite://"):
		return "sqlite", strings.TrimPrefix(u, "sqlite://"), nil
	case strings.HasPrefix(u, "sqlite:"):
		return "sqlite", strings.TrimPrefix(u, "sqlite:"), nil
	case strings.HasPrefix(u, "file:"):
		return "sqlite", u, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", u)
	}
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// Migrate creates missing tables from the models. Postgres deployments apply
// migrations/ instead, which also installs the booking exclusion constraint.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []any{
		&domain.Provider{},
		&domain.Service{},
		&domain.AvailabilityRule{},
		&domain.TimeOff{},
		&domain.Booking{},
		&domain.Notification{},
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS availability_rules_provider_weekday ON availability_rules (provider_id, weekday)",
		"CREATE INDEX IF NOT EXISTS time_off_provider_start ON time_off (provider_id, start_time_utc)",
		"CREATE INDEX IF NOT EXISTS bookings_service_start ON bookings (service_id, start_at)",
		"CREATE INDEX IF NOT EXISTS notifications_status_run_at ON notifications (status, run_at)",
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

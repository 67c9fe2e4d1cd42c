package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthWatcher mirrors database reachability into the health service.
type HealthWatcher struct {
	health  *health.Server
	db      Pinger
	timeout time.Duration
	log     *slog.Logger
}

func NewHealthWatcher(hs *health.Server, db Pinger, log *slog.Logger) *HealthWatcher {
	if log == nil {
		log = slog.Default()
	}
	return &HealthWatcher{
		health:  hs,
		db:      db,
		timeout: 2 * time.Second,
		log:     log.With(slog.String("component", "health")),
	}
}

// Check pings the database once and returns the status it published.
func (w *HealthWatcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := w.db.PingContext(ctx); err != nil {
		w.log.Warn("database ping failed", slog.Any("err", err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	w.health.SetServingStatus("", st)
	w.health.SetServingStatus(ServiceName, st)
	return st
}

// Run checks every interval until ctx is done, then marks everything as
// shutting down.
func (w *HealthWatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	w.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.health.Shutdown()
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	"slotbook/backend/internal/config"
	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service/availability"
	"slotbook/backend/internal/service/bookings"
	"slotbook/backend/internal/service/catalog"
	"slotbook/backend/internal/service/notifications"
	"slotbook/backend/internal/service/slots"
	"slotbook/backend/internal/store/bunstore"
	grpcTransport "slotbook/backend/internal/transport/grpc"
	"slotbook/backend/internal/transport/rest"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "slotbook-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "slotbook-server"),
	)
	slog.SetDefault(log)

	if err := domain.SetDefaultTimezone(cfg.DefaultTimezone); err != nil {
		log.Error("invalid default timezone", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
	)

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := bunstore.Open(cfg.DatabaseURL, bunstore.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := bunstore.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBAutoMigrate {
		if err := bunstore.Migrate(ctx, db); err != nil {
			log.Error("database migrate failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("database schema ensured")
	}

	repo := bunstore.NewRepo(db)
	scheduler := notifications.NewScheduler(repo, notifications.WithLogger(log))
	dispatcher := notifications.NewDispatcher(repo, notifications.LogSender{Log: log},
		notifications.WithLogger(log),
		notifications.WithBatchSize(cfg.DispatchBatchSize),
	)

	api := rest.NewServer(
		slots.NewService(repo, slots.WithDefaultLead(cfg.LeadTime), slots.WithLogger(log)),
		availability.NewService(repo, log),
		bookings.NewService(repo, scheduler, bookings.WithHorizon(cfg.BookingHorizon), bookings.WithLogger(log)),
		catalog.NewService(repo, log),
		dispatcher,
		rest.Options{
			AppURL:         cfg.AppURL,
			JWTSecret:      cfg.JWTSecret,
			CronSecret:     cfg.CronSecret,
			RequestTimeout: cfg.HTTPRequestTimeout,
		},
		log,
	)
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Warn("jwt secret not set; provider routes reject every request")
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer := grpcTransport.NewServer(grpcTransport.Options{
		RequestTimeout: cfg.GRPCRequestTimeout,
		Log:            log,
	})
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		grpcTransport.NewHealthWatcher(healthServer, db, log).Run(ctx, 15*time.Second)
	}()
	go func() {
		defer workers.Done()
		if err := dispatcher.Run(ctx, cfg.DispatchInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("notification dispatcher stopped", slog.Any("err", err))
		}
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr()))

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", slog.Any("err", err))
			exitCode = 1
		}
		stop()
	}

	shutdownHTTP(log, httpServer, cfg.ShutdownTimeout)
	grpcTransport.Shutdown(log, grpcServer, cfg.ShutdownTimeout)
	workers.Wait()

	if exitCode != 0 {
		_ = bunstore.Close(db)
		os.Exit(exitCode)
	}
}

func shutdownHTTP(log *slog.Logger, s *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	if strings.HasPrefix(u.Scheme, "sqlite") || u.Scheme == "file" {
		return []any{slog.String("db_driver", "sqlite")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_driver", "postgres"),
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}

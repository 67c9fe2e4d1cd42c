package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("addrs = %q %q", cfg.HTTPAddr, cfg.GRPCAddr())
	}
	if cfg.LeadTime != time.Hour {
		t.Fatalf("LeadTime = %s, want 1h", cfg.LeadTime)
	}
	if cfg.BookingHorizon != 90*24*time.Hour {
		t.Fatalf("BookingHorizon = %s, want 90 days", cfg.BookingHorizon)
	}
	if cfg.DefaultTimezone != "America/Edmonton" || cfg.DispatchBatchSize != 50 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvOverridesAndAliases(t *testing.T) {
	t.Setenv("SLOTBOOK_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("DATABASE_URL", "sqlite://slotbook.db")
	t.Setenv("SLOTBOOK_LEAD_MINUTES", "15")
	t.Setenv("SLOTBOOK_APP_URL", "https://book.example.com/")
	t.Setenv("JWT_HMAC_SECRET", "s3cret")
	t.Setenv("SLOTBOOK_DISPATCH_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GRPCHost != "127.0.0.1" || cfg.GRPCPort != 6000 {
		t.Fatalf("grpc = %s:%d", cfg.GRPCHost, cfg.GRPCPort)
	}
	if cfg.DatabaseURL != "sqlite://slotbook.db" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LeadTime != 15*time.Minute {
		t.Fatalf("LeadTime = %s", cfg.LeadTime)
	}
	if cfg.AppURL != "https://book.example.com" {
		t.Fatalf("AppURL = %q", cfg.AppURL)
	}
	if cfg.JWTSecret != "s3cret" || cfg.DispatchInterval != 30*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("SLOTBOOK_SHUTDOWN_TIMEOUT", "soon")
		_, err := Load()
		var kErr *KeyError
		if !errors.As(err, &kErr) || kErr.Key != "shutdown.timeout" {
			t.Fatalf("err = %v, want KeyError for shutdown.timeout", err)
		}
	})
	t.Run("negative lead", func(t *testing.T) {
		t.Setenv("SLOTBOOK_LEAD_MINUTES", "-1")
		if _, err := Load(); !errors.Is(err, errNegative) {
			t.Fatalf("err = %v, want %v", err, errNegative)
		}
	})
}

package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("DASHBOARD_TTL_SECONDS", "-4")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "abc")
	t.Setenv("SCAN_MAX_GAP_MS", "0")
	t.Setenv("SCAN_MIN_LENGTH", "")

	cfg := Load()
	if cfg.DashboardTTL() != 30*time.Second {
		t.Fatalf("expected default dashboard ttl, got %s", cfg.DashboardTTL())
	}
	if cfg.AccessTokenTTL() != 480*time.Minute {
		t.Fatalf("expected default token ttl, got %s", cfg.AccessTokenTTL())
	}
	if cfg.ScanMaxGap() != 50*time.Millisecond || cfg.ScanMinLength != 4 {
		t.Fatalf("expected default scan settings, got %s/%d", cfg.ScanMaxGap(), cfg.ScanMinLength)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("APP_ENV", "Development")
	t.Setenv("SCAN_MAX_GAP_MS", "35")

	cfg := Load()
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if !cfg.AutoMigrate {
		t.Fatalf("expected AUTO_MIGRATE to be parsed")
	}
	if !cfg.Development() {
		t.Fatalf("expected development mode")
	}
	if cfg.ScanMaxGap() != 35*time.Millisecond {
		t.Fatalf("expected 35ms scan gap, got %s", cfg.ScanMaxGap())
	}
}

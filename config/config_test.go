package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CATALOG_TOKEN_URL", "")
	t.Setenv("ENRICH_WORKERS", "")
	t.Setenv("EDIT_REPLY_TIMEOUT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CatalogTokenURL == "" {
		t.Errorf("expected default catalog token url, got empty")
	}
	if cfg.EnrichWorkers != 8 {
		t.Errorf("EnrichWorkers = %d, want 8", cfg.EnrichWorkers)
	}
	if cfg.EditReplyTimeout != 240*time.Second {
		t.Errorf("EditReplyTimeout = %v, want 240s", cfg.EditReplyTimeout)
	}
	if cfg.SummaryTitle != "Table of Contents" {
		t.Errorf("SummaryTitle = %q, want default", cfg.SummaryTitle)
	}
}

func TestLoadTrimsTrailingSlashes(t *testing.T) {
	t.Setenv("PLATFORM_API_BASE", "https://chat.example.com/api/")
	t.Setenv("CATALOG_API_BASE", "https://catalog.example.com/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PlatformAPIBase != "https://chat.example.com/api" {
		t.Errorf("PlatformAPIBase = %q, want trailing slash trimmed", cfg.PlatformAPIBase)
	}
	if cfg.CatalogAPIBase != "https://catalog.example.com" {
		t.Errorf("CatalogAPIBase = %q, want trailing slash trimmed", cfg.CatalogAPIBase)
	}
}

func TestEditReplyTimeoutBareSeconds(t *testing.T) {
	t.Setenv("EDIT_REPLY_TIMEOUT", "90")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.EditReplyTimeout != 90*time.Second {
		t.Errorf("EditReplyTimeout = %v, want 90s", cfg.EditReplyTimeout)
	}
}

func TestInvalidEnrichWorkers(t *testing.T) {
	t.Setenv("ENRICH_WORKERS", "lots")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for non-numeric ENRICH_WORKERS")
	}
}

func TestValidatePlatformReady(t *testing.T) {
	t.Setenv("PLATFORM_API_BASE", "https://chat.example.com/api")
	t.Setenv("PLATFORM_BOT_TOKEN", "token")
	cfg, _ := Load()
	if err := cfg.ValidatePlatformReady(); err != nil {
		t.Errorf("expected valid platform config, got %v", err)
	}
	if err := os.Unsetenv("PLATFORM_BOT_TOKEN"); err != nil {
		t.Fatalf("failed to unset PLATFORM_BOT_TOKEN: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidatePlatformReady(); err == nil {
		t.Errorf("expected error when missing platform envs")
	}
}

func TestValidateCatalogReady(t *testing.T) {
	t.Setenv("CATALOG_CLIENT_ID", "id")
	t.Setenv("CATALOG_CLIENT_SECRET", "secret")
	cfg, _ := Load()
	if err := cfg.ValidateCatalogReady(); err != nil {
		t.Errorf("expected valid catalog config, got %v", err)
	}
	t.Setenv("CATALOG_CLIENT_SECRET", "")
	cfg, _ = Load()
	if err := cfg.ValidateCatalogReady(); err == nil {
		t.Errorf("expected error when missing catalog secret")
	}
}

func TestDriveEnabled(t *testing.T) {
	t.Setenv("DRIVE_CLIENT_ID", "")
	t.Setenv("DRIVE_CLIENT_SECRET", "")
	cfg, _ := Load()
	if cfg.DriveEnabled() {
		t.Errorf("DriveEnabled() = true without creds")
	}
	t.Setenv("DRIVE_CLIENT_ID", "id")
	t.Setenv("DRIVE_CLIENT_SECRET", "secret")
	cfg, _ = Load()
	if !cfg.DriveEnabled() {
		t.Errorf("DriveEnabled() = false with creds set")
	}
}

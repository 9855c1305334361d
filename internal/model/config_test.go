package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.API.BaseURL != "https://api.mail.tm" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if got := cfg.Sync.PollInterval(); got != 5*time.Second {
		t.Fatalf("expected 5s poll interval, got %v", got)
	}
	if !cfg.Sync.PushEnabled {
		t.Fatalf("expected push enabled by default")
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api:\n  base_url: https://mail.example.test\nsync:\n  poll_interval_sec: 12\n  push_enabled: false\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TEMPMAIL_SYNC_POLL_INTERVAL_SEC", "7")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.API.BaseURL != "https://mail.example.test" {
		t.Fatalf("expected base url from file, got %q", cfg.API.BaseURL)
	}
	if cfg.Sync.PollIntervalSec != 7 {
		t.Fatalf("expected env override, got %d", cfg.Sync.PollIntervalSec)
	}
	if cfg.Sync.PushEnabled {
		t.Fatalf("expected push disabled from file")
	}
	if cfg.Sync.AccountRefreshSec != 30 {
		t.Fatalf("expected default account refresh, got %d", cfg.Sync.AccountRefreshSec)
	}
}

func TestSnapshotDefaults(t *testing.T) {
	var s Snapshot
	if !s.IsEmpty() || s.Resumable() {
		t.Fatalf("zero snapshot should be empty and not resumable")
	}
	if s.SessionOrigin() != OriginGenerated {
		t.Fatalf("missing origin should default to generated")
	}

	s = SnapshotOf(Account{ID: "a1", Address: "x@example.test", Token: "tok"}, OriginLogin)
	if !s.Resumable() {
		t.Fatalf("expected resumable snapshot")
	}
	if !s.SessionOrigin().Explicit() {
		t.Fatalf("login origin should be explicit")
	}
}

func TestSplitAddress(t *testing.T) {
	local, domain, ok := SplitAddress("abc123@example.test")
	if !ok || local != "abc123" || domain != "example.test" {
		t.Fatalf("unexpected split: %q %q %v", local, domain, ok)
	}
	if _, _, ok := SplitAddress("@example.test"); ok {
		t.Fatalf("expected empty local part to fail")
	}
	if _, _, ok := SplitAddress("nobody"); ok {
		t.Fatalf("expected missing @ to fail")
	}
}

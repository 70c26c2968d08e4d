package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Session.InactivityHours != 24 {
		t.Errorf("expected default inactivity 24h, got %d", cfg.Session.InactivityHours)
	}
	if cfg.Exec.TimeoutSeconds != 180 {
		t.Errorf("expected default timeout 180s, got %d", cfg.Exec.TimeoutSeconds)
	}
	if cfg.Exec.MaxOutputBytes != 64*1024 {
		t.Errorf("expected default output cap 64KiB, got %d", cfg.Exec.MaxOutputBytes)
	}

	// Defaults should have been written to disk
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected default config file to exist: %v", err)
	}

	// A second load reads the written file
	cfg2, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.Exec.TimeoutSeconds != cfg.Exec.TimeoutSeconds {
		t.Error("expected reload to reproduce defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	t.Setenv("TELEGRAM_BOT_TOKEN", "tok-123")
	t.Setenv("ALLOWED_USERS", "42, 99")
	t.Setenv("TELECODE_WORKSPACE", "/srv/work")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "tok-123" {
		t.Errorf("expected token from env, got %q", cfg.Telegram.Token)
	}
	if len(cfg.AllowedUsers) != 2 || cfg.AllowedUsers[0] != 42 || cfg.AllowedUsers[1] != 99 {
		t.Errorf("expected allowed users [42 99], got %v", cfg.AllowedUsers)
	}
	if cfg.WorkspaceRoot != "/srv/work" {
		t.Errorf("expected workspace root from env, got %q", cfg.WorkspaceRoot)
	}
}

func TestLoadBadUserList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	t.Setenv("ALLOWED_USERS", "42,abc")
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-numeric user list")
	}
}

func TestSetValueRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "exec.timeout_seconds", "60"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Exec.TimeoutSeconds != 60 {
		t.Errorf("expected timeout 60 after set, got %d", cfg.Exec.TimeoutSeconds)
	}

	val, err := GetValue(path, "exec.timeout_seconds")
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := val.(float64); !ok || n != 60 {
		t.Errorf("expected 60 from GetValue, got %v", val)
	}
}

func TestSetValueUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(path, "no.such.key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Loop.MaxIterations != 25 {
		t.Fatalf("max iterations: %d", cfg.Loop.MaxIterations)
	}
	if cfg.Loop.WallClock != 5*time.Minute {
		t.Fatalf("wall clock: %v", cfg.Loop.WallClock)
	}
	if cfg.Permissions.Mode != "manual" {
		t.Fatalf("mode: %q", cfg.Permissions.Mode)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"loop": {"maxIterations": 3},
		"permissions": {"mode": "allowlist", "allowlist": ["file_read", "filesystem"]}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Loop.MaxIterations != 3 {
		t.Fatalf("max iterations: %d", cfg.Loop.MaxIterations)
	}
	if cfg.Permissions.Mode != "allowlist" || len(cfg.Permissions.Allowlist) != 2 {
		t.Fatalf("permissions: %+v", cfg.Permissions)
	}
	// Untouched groups keep their defaults.
	if cfg.Model.MaxTokens != 4096 {
		t.Fatalf("model defaults lost: %+v", cfg.Model)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"loop": {"maxIterations": 3}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HELMSMAN_MAX_ITERATIONS", "7")
	t.Setenv("HELMSMAN_PERMISSION_MODE", "auto")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Loop.MaxIterations != 7 {
		t.Fatalf("env override lost: %d", cfg.Loop.MaxIterations)
	}
	if cfg.Permissions.Mode != "auto" {
		t.Fatalf("mode: %q", cfg.Permissions.Mode)
	}
}

func TestInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.json")

	cfg := Default()
	cfg.Loop.MaxIterations = 11
	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Loop.MaxIterations != 11 {
		t.Fatalf("round trip: %d", loaded.Loop.MaxIterations)
	}
}

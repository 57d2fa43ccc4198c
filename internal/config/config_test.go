package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasUsableRootAndActor(t *testing.T) {
	cfg := Default()
	if cfg.General.Root != defaultRoot {
		t.Fatalf("expected default root %q, got %q", defaultRoot, cfg.General.Root)
	}
	if cfg.General.DefaultActor == "" {
		t.Fatal("expected non-empty default actor")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Root != defaultRoot {
		t.Fatalf("expected default root, got %q", cfg.General.Root)
	}
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roadmapctl.toml")
	body := `
[general]
root = "/srv/roadmap"
default_actor = "agent-spec"

[schema]
current = "0.5.0"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Root != "/srv/roadmap" {
		t.Fatalf("expected root override, got %q", cfg.General.Root)
	}
	if cfg.General.DefaultActor != "agent-spec" {
		t.Fatalf("expected actor override, got %q", cfg.General.DefaultActor)
	}
	if cfg.Schema.Current != "0.5.0" {
		t.Fatalf("expected schema override, got %q", cfg.Schema.Current)
	}
	if cfg.General.LogLevel != defaultLogLvl {
		t.Fatalf("expected log level default to be filled in, got %q", cfg.General.LogLevel)
	}
}

func TestLoadDurationField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roadmapctl.toml")
	body := `
[general]
lock_timeout = "2s"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.LockTimeout.Duration.Seconds() != 2 {
		t.Fatalf("expected 2s lock timeout, got %v", cfg.General.LockTimeout.Duration)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigurationName)
	if err := os.WriteFile(path, []byte(`{"security":{"defaultPolicy":"developer"}}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Security.DefaultPolicy != "developer" {
		t.Fatalf("expected overridden policy, got %q", cfg.Security.DefaultPolicy)
	}
	if cfg.Shell.ThreadPoolSize <= 0 {
		t.Fatal("expected default thread pool size to be populated")
	}
	if cfg.Shell.MaxMemory == 0 {
		t.Fatal("expected default max memory to be populated")
	}
}

func TestLoadAcceptsDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigurationName)
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error loading directory path: %v", err)
	}
	if cfg.Security.DefaultPolicy != "sandbox" {
		t.Fatalf("expected default sandbox policy, got %q", cfg.Security.DefaultPolicy)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigurationName)
	doc := `{"shell":{"enableDebug":true,"bogusKey":123},"bogusTopLevel":"x"}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error tolerating unknown keys: %v", err)
	}
	if !cfg.Shell.EnableDebug {
		t.Fatal("expected enableDebug to be applied")
	}
}

func TestByteSizeUnmarshalsStringSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigurationName)
	doc := `{"shell":{"maxMemory":"100MB"},"performance":{"thresholds":{"memoryWarning":2048}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Shell.MaxMemory != 100*1000*1000 {
		t.Fatalf("expected 100MB parsed as decimal megabytes, got %d", cfg.Shell.MaxMemory)
	}
	if cfg.Performance.Thresholds.MemoryWarning != 2048 {
		t.Fatalf("expected bare integer byte count, got %d", cfg.Performance.Thresholds.MemoryWarning)
	}
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := Default()
	cfg.Security.DefaultPolicy = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown policy")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected default configuration to validate, got %v", err)
	}
}

func TestParseMaxMemoryEnvAcceptsBareAndSpec(t *testing.T) {
	n, err := ParseMaxMemoryEnv("1048576")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1048576 {
		t.Fatalf("expected bare byte count, got %d", n)
	}

	n2, err := ParseMaxMemoryEnv("10MB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n2 != 10*1000*1000 {
		t.Fatalf("expected 10MB parsed, got %d", n2)
	}
}

func TestLoadMissingFileReturnsNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

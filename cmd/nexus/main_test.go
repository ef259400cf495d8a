package main

import (
	"testing"

	"github.com/nexusshell/nexus/internal/config"
)

func TestApplyEnvOverridesParsesDebugAndMemory(t *testing.T) {
	t.Setenv("NEXUS_DEBUG", "true")
	t.Setenv("NEXUS_MAX_MEMORY", "10MB")

	cfg := config.Default()
	applyEnvOverrides(cfg)

	if !cfg.Shell.EnableDebug {
		t.Fatal("expected NEXUS_DEBUG=true to enable debug")
	}
	if cfg.Shell.MaxMemory != 10*1000*1000 {
		t.Fatalf("expected 10MB, got %d", cfg.Shell.MaxMemory)
	}
}

func TestApplyEnvOverridesLeavesDefaultsWhenUnset(t *testing.T) {
	cfg := config.Default()
	want := cfg.Shell.MaxMemory
	applyEnvOverrides(cfg)
	if cfg.Shell.MaxMemory != want {
		t.Fatalf("expected unchanged max memory, got %d", cfg.Shell.MaxMemory)
	}
}

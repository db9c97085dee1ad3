package vconfig

import (
	"path/filepath"
	"testing"
)

func TestNewAppConfigUsesConfigDirEnvVar(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	conf, err := NewAppConfig("vifm-core", "1.0", "deadbeef", "2026-07-31", "test", false)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	if conf.ConfigDir != dir {
		t.Fatalf("Expected ConfigDir %q, got %q", dir, conf.ConfigDir)
	}
	expected := filepath.Join(dir, "config.yml")
	if conf.ConfigFilename() != expected {
		t.Fatalf("Expected ConfigFilename %q, got %q", expected, conf.ConfigFilename())
	}
}

func TestNewAppConfigDebugFlagFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("DEBUG", "TRUE")

	conf, err := NewAppConfig("vifm-core", "1.0", "deadbeef", "2026-07-31", "test", false)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	if !conf.Debug {
		t.Fatal("Expected DEBUG=TRUE env var to set Debug even with debuggingFlag false")
	}
}

func TestNewAppConfigDebugFlagExplicit(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	conf, err := NewAppConfig("vifm-core", "1.0", "deadbeef", "2026-07-31", "test", true)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	if !conf.Debug {
		t.Fatal("Expected debuggingFlag=true to set Debug")
	}
}

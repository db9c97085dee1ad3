package vconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaultConfig(t *testing.T) {
	defaults := GetDefaultConfig()

	if defaults.Engine.TimeoutLenMS != 1000 {
		t.Errorf("Expected Engine.TimeoutLenMS to be 1000, got %d", defaults.Engine.TimeoutLenMS)
	}
	if defaults.Engine.MinTimeoutLenMS != 50 {
		t.Errorf("Expected Engine.MinTimeoutLenMS to be 50, got %d", defaults.Engine.MinTimeoutLenMS)
	}
	if !defaults.Suggestion.Keys {
		t.Error("Expected Suggestion.Keys to default to true")
	}
	if defaults.Suggestion.Normal {
		t.Error("Expected Suggestion.Normal to default to false")
	}

	normal, ok := defaults.Modes["normal"]
	if !ok {
		t.Fatal("Expected a \"normal\" mode entry in the default config")
	}
	if !normal.UsesCount || !normal.UsesRegs {
		t.Errorf("Expected normal mode to use count and registers, got %+v", normal)
	}

	cmdline, ok := defaults.Modes["cmdline"]
	if !ok {
		t.Fatal("Expected a \"cmdline\" mode entry in the default config")
	}
	if !cmdline.UsesInput {
		t.Errorf("Expected cmdline mode to use input, got %+v", cmdline)
	}
}

func TestLoadUserConfigMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "suggestion:\n  delayMs: 250\nmodes:\n  normal:\n    mappings:\n      Q: ZQ\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	base := GetDefaultConfig()
	cfg, err := loadUserConfig(dir, &base)
	if err != nil {
		t.Fatalf("loadUserConfig failed: %v", err)
	}

	if cfg.Suggestion.DelayMS != 250 {
		t.Errorf("Expected overridden DelayMS of 250, got %d", cfg.Suggestion.DelayMS)
	}
	// MaxRegFiles wasn't set in the file, so it must come from the default.
	if cfg.Suggestion.MaxRegFiles != 5 {
		t.Errorf("Expected MaxRegFiles to fall back to default 5, got %d", cfg.Suggestion.MaxRegFiles)
	}
	if cfg.Modes["normal"].Mappings["Q"] != "ZQ" {
		t.Errorf("Expected normal mode mapping Q->ZQ, got %+v", cfg.Modes["normal"].Mappings)
	}
	// Other default modes must survive since mergo fills gaps the file didn't touch.
	if !cfg.Modes["cmdline"].UsesInput {
		t.Errorf("Expected cmdline mode to still use input after merge, got %+v", cfg.Modes["cmdline"])
	}
}

func TestLoadUserConfigCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	base := GetDefaultConfig()

	cfg, err := loadUserConfig(dir, &base)
	if err != nil {
		t.Fatalf("loadUserConfig failed: %v", err)
	}
	if cfg.Engine.TimeoutLenMS != base.Engine.TimeoutLenMS {
		t.Errorf("Expected defaults to be returned unchanged, got %+v", cfg.Engine)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yml")); err != nil {
		t.Errorf("Expected config.yml to be created, got error: %v", err)
	}
}

func TestLoadUserConfigStripsBOM(t *testing.T) {
	dir := t.TempDir()
	content := "\xef\xbb\xbfsuggestion:\n  delayMs: 700\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	base := GetDefaultConfig()
	cfg, err := loadUserConfig(dir, &base)
	if err != nil {
		t.Fatalf("loadUserConfig failed with a leading BOM: %v", err)
	}
	if cfg.Suggestion.DelayMS != 700 {
		t.Errorf("Expected DelayMS of 700 from a BOM-prefixed file, got %d", cfg.Suggestion.DelayMS)
	}
}

func TestLookupResolvesDottedPath(t *testing.T) {
	cfg := GetDefaultConfig()

	v, err := cfg.Lookup("suggestion.delayMs")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if v.Int() != int64(cfg.Suggestion.DelayMS) {
		t.Errorf("Expected suggestion.delayMs to be %d, got %v", cfg.Suggestion.DelayMS, v)
	}
}

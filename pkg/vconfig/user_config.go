package vconfig

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/imdario/mergo"
	yaml "github.com/jesseduffield/yaml"
	lookup "github.com/mcuadros/go-lookup"
	"github.com/spkg/bom"
)

// ModeConfig mirrors spec.md's per-mode flag bits plus the user mappings
// that should be registered into that mode at startup.
type ModeConfig struct {
	// UsesCount, UsesRegs, UsesInput mirror the mode-flag bits of spec.md
	// section 6.
	UsesCount bool `yaml:"usesCount,omitempty"`
	UsesRegs  bool `yaml:"usesRegs,omitempty"`
	UsesInput bool `yaml:"usesInput,omitempty"`

	// Mappings are "lhs: rhs" user mappings registered for this mode via
	// Engine.AddUser at startup.
	Mappings map[string]string `yaml:"mappings,omitempty"`
}

// SuggestionConfig mirrors cfg.sug from the original source: which modes
// show the suggestion box, how long to wait before showing it, and whether
// key sequences and/or registers are suggested.
type SuggestionConfig struct {
	// DelayMS is how many milliseconds of silence after a WaitShort/Wait
	// result must elapse before the suggestion box is shown.
	DelayMS int `yaml:"delayMs,omitempty"`

	Normal      bool `yaml:"normal,omitempty"`
	Visual      bool `yaml:"visual,omitempty"`
	View        bool `yaml:"view,omitempty"`
	Keys        bool `yaml:"keys,omitempty"`
	Registers   bool `yaml:"registers,omitempty"`
	FoldSubkeys bool `yaml:"foldSubkeys,omitempty"`
	OtherPane   bool `yaml:"otherPane,omitempty"`

	// MaxRegFiles caps how many file names are suggested per register.
	MaxRegFiles int `yaml:"maxRegFiles,omitempty"`
}

// EngineConfig carries the timing knobs of the event loop's async input
// wait, matching cfg.timeout_len / cfg.min_timeout_len in event_loop.c.
type EngineConfig struct {
	// TimeoutLenMS is the short-wait disambiguation delay.
	TimeoutLenMS int `yaml:"timeoutLenMs,omitempty"`
	// MinTimeoutLenMS bounds how finely the wait is sliced to interleave
	// IPC/background-job/preview checks.
	MinTimeoutLenMS int `yaml:"minTimeoutLenMs,omitempty"`
}

// UserConfig holds all user-configurable options for vifm-core.
type UserConfig struct {
	Engine     EngineConfig          `yaml:"engine,omitempty"`
	Suggestion SuggestionConfig      `yaml:"suggestion,omitempty"`
	Modes      map[string]ModeConfig `yaml:"modes,omitempty"`
}

// GetDefaultConfig returns the compiled-in configuration defaults. A bool
// that defaults to true here cannot be switched off from config.yml: false
// is the zero value, so loadUserConfig's merge fills it back in from these
// defaults.
func GetDefaultConfig() UserConfig {
	return UserConfig{
		Engine: EngineConfig{
			TimeoutLenMS:    1000,
			MinTimeoutLenMS: 50,
		},
		Suggestion: SuggestionConfig{
			DelayMS:     500,
			Normal:      false,
			Visual:      false,
			View:        false,
			Keys:        true,
			Registers:   true,
			FoldSubkeys: true,
			OtherPane:   false,
			MaxRegFiles: 5,
		},
		Modes: map[string]ModeConfig{
			"normal":  {UsesCount: true, UsesRegs: true},
			"visual":  {UsesCount: true, UsesRegs: true},
			"cmdline": {UsesInput: true},
			"view":    {UsesCount: true},
			"menu":    {UsesCount: true},
		},
	}
}

func loadUserConfigWithDefaults(configDir string) (*UserConfig, error) {
	base := GetDefaultConfig()
	return loadUserConfig(configDir, &base)
}

func loadUserConfig(configDir string, base *UserConfig) (*UserConfig, error) {
	fileName := filepath.Join(configDir, "config.yml")

	content, err := readOrCreate(fileName)
	if err != nil {
		return nil, err
	}

	// Strip a leading UTF-8 BOM some editors write into config.yml before
	// handing the content to the YAML decoder.
	var fromFile UserConfig
	if err := yaml.Unmarshal(bom.Clean(content), &fromFile); err != nil {
		return nil, err
	}

	// fromFile takes priority; gaps (zero-valued fields the user didn't set)
	// are filled in from the compiled-in defaults, the same direction
	// lazydocker's i18n package merges a base locale into the active one.
	if err := mergo.Merge(&fromFile, *base); err != nil {
		return nil, err
	}

	return &fromFile, nil
}

func readOrCreate(fileName string) ([]byte, error) {
	if _, err := os.Stat(fileName); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		file, err := os.Create(fileName)
		if err != nil {
			return nil, err
		}
		file.Close()
		return nil, nil
	}
	return os.ReadFile(fileName)
}

// Lookup resolves a dotted path (e.g. "suggestion.delayMs") against the
// merged configuration tree. It mirrors
// the generic-reflection introspection lazydocker's templating could reach
// for when inspecting nested config.
func (c *UserConfig) Lookup(path string) (reflect.Value, error) {
	return lookup.LookupString(*c, path)
}

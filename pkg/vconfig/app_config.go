// Package vconfig handles vifm-core's own configuration: the set of
// per-mode flags and timing knobs the event loop and key engine need, read
// from a YAML file in the XDG config directory and merged over compiled-in
// defaults. Grounded on lazydocker's pkg/config (app_config.go /
// user_config.go): same NewAppConfig shape, same xdg/yaml/mergo stack.
package vconfig

import (
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
)

// AppConfig carries runtime/build metadata plus the resolved UserConfig.
type AppConfig struct {
	Debug       bool
	Version     string
	Commit      string
	BuildDate   string
	Name        string
	BuildSource string

	UserConfig *UserConfig
	ConfigDir  string
}

// NewAppConfig resolves (creating if necessary) the config directory, loads
// config.yml merged over the compiled-in defaults, and returns the combined
// configuration.
func NewAppConfig(name, version, commit, date, buildSource string, debuggingFlag bool) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	userConfig, err := loadUserConfigWithDefaults(configDir)
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		UserConfig:  userConfig,
		ConfigDir:   configDir,
	}, nil
}

func configDir(projectName string) string {
	if envConfigDir := os.Getenv("CONFIG_DIR"); envConfigDir != "" {
		return envConfigDir
	}
	return xdg.New("", projectName).ConfigHome()
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := configDir(projectName)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", err
	}
	return folder, nil
}

// ConfigFilename returns the filename of the current config file.
func (c *AppConfig) ConfigFilename() string {
	return filepath.Join(c.ConfigDir, "config.yml")
}

// SPDX-License-Identifier: MPL-2.0

// Package config loads tool-level settings for uppies. These are distinct
// from the app registry: the registry says what to manage, settings say how
// uppies itself behaves (self-update source repository, verbosity).
//
// The self-update repository is resolved here exactly once — from the config
// file, the UPPIES_REPO environment variable, or the built-in default — and
// passed into the self-updater as a plain value, so no environment lookups
// leak into the core logic.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for config directory resolution.
	AppName = "uppies"

	// DefaultRepo is the release source used when neither the config file
	// nor UPPIES_REPO provides one.
	DefaultRepo = "bradcypert/uppies"

	configFileName = "config"
	configFileExt  = "toml"
)

//nolint:gochecknoglobals // Test seam for the config directory.
var configDirOverride string

type (
	// Settings holds tool-level configuration.
	Settings struct {
		SelfUpdate SelfUpdateSettings `mapstructure:"self_update"`
		UI         UISettings         `mapstructure:"ui"`
	}

	// SelfUpdateSettings configures the self-update pipeline.
	SelfUpdateSettings struct {
		// Repo is the "owner/name" release source on the hosting provider.
		Repo string `mapstructure:"repo"`
	}

	// UISettings configures output behavior.
	UISettings struct {
		Verbose bool `mapstructure:"verbose"`
	}
)

// SetConfigDirOverride forces ConfigDir to return dir, for tests.
// Pass an empty string to restore the default resolution.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// ConfigDir returns the uppies configuration directory:
// $XDG_CONFIG_HOME/uppies, defaulting to ~/.config/uppies.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, AppName), nil
}

// Load reads settings from the config file and environment. A missing config
// file is not an error; defaults and UPPIES_REPO still apply.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("self_update.repo", DefaultRepo)
	v.SetDefault("ui.verbose", false)

	if err := v.BindEnv("self_update.repo", "UPPIES_REPO"); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}

	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileExt)
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &settings, nil
}

// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package config provides system-level configuration for rehearse
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/rehearse-dev/rehearse/uses"
)

// DefaultFileName is the default file name for the config file
const DefaultFileName = "config.yaml"

// EnvConfigDir overrides the directory the config file is loaded from
const EnvConfigDir = "REHEARSE_CONFIG"

// Config is the system configuration file for rehearse
type Config struct {
	Aliases     map[string]uses.Alias `yaml:"aliases"`
	FetchPolicy uses.FetchPolicy      `yaml:"fetch-policy"`
}

// DefaultDirectory returns the default directory for rehearse configuration ($HOME/.rehearse)
//
// It can be overridden with the $REHEARSE_CONFIG environment variable
func DefaultDirectory() (string, error) {
	if dir, ok := os.LookupEnv(EnvConfigDir); ok && dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".rehearse"), nil
}

// LoadConfig parses a config file from the given reader
func LoadConfig(r io.Reader) (*Config, error) {
	config := &Config{}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// defaults go in after decoding, an empty or null document zeroes the struct
	if config.Aliases == nil {
		config.Aliases = map[string]uses.Alias{}
	}
	if config.FetchPolicy == "" {
		config.FetchPolicy = uses.DefaultFetchPolicy
	}

	return config, nil
}

// FileSystemConfigLoader loads configuration from the file system
type FileSystemConfigLoader struct {
	Fs afero.Fs
}

// LoadConfig loads the configuration from the file system,
// returning defaults when no config file exists
func (l *FileSystemConfigLoader) LoadConfig() (*Config, error) {
	f, err := l.Fs.Open(DefaultFileName)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				Aliases:     map[string]uses.Alias{},
				FetchPolicy: uses.DefaultFetchPolicy,
			}, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return LoadConfig(f)
}

// LoadDefaultConfig loads the configuration from the default directory
func LoadDefaultConfig() (*Config, error) {
	dir, err := DefaultDirectory()
	if err != nil {
		return nil, err
	}

	loader := &FileSystemConfigLoader{Fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}
	return loader.LoadConfig()
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches the current directory for overseer.hjson, then
// overseer.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{"overseer.hjson", "overseer.json"}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for overseer.hjson, overseer.json)")
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 1000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	if cfg.LogViewerSettings.IdleTimeout == "" {
		cfg.LogViewerSettings.IdleTimeout = "5m"
	}

	for i := range cfg.Services {
		if cfg.Services[i].Logging.BufferSize == 0 {
			cfg.Services[i].Logging.BufferSize = 50000
		}
		cfg.Services[i].Logging.ApplyDefaults(&cfg.LoggingDefaults)

		if cfg.Services[i].Restart.Strategy == "" {
			cfg.Services[i].Restart.Strategy = "on-failure"
		}
		if cfg.Services[i].Failure.Strategy == "" {
			cfg.Services[i].Failure.Strategy = "kill_dependents"
		}
		if cfg.Services[i].Termination.Signal == "" {
			cfg.Services[i].Termination.Signal = "SIGTERM"
		}
		if cfg.Services[i].Termination.Wait == "" {
			cfg.Services[i].Termination.Wait = "10s"
		}
		if len(cfg.Services[i].Failure.SuccessfulExitCode) == 0 {
			cfg.Services[i].Failure.SuccessfulExitCode = []int{0}
		}
		if cfg.Services[i].Healthiness.Kind == "" {
			cfg.Services[i].Healthiness.Kind = "none"
		}
	}

	if cfg.Crashes.ReportsDir == "" {
		cfg.Crashes.ReportsDir = ".overseer/crashes"
	}
	if cfg.Crashes.MaxAge == "" {
		cfg.Crashes.MaxAge = "7d"
	}
	if cfg.Crashes.MaxCount == 0 {
		cfg.Crashes.MaxCount = 100
	}
}

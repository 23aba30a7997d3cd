// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate_ValidConfig(t *testing.T) {
	cfg := &Config{
		Version: "1.0",
		Project: ProjectConfig{
			Name: "test-project",
		},
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Services: []ServiceConfig{
			{
				Name:    "api",
				Command: "./bin/api",
			},
		},
	}

	validator := NewValidator()
	err := validator.Validate(cfg)
	assert.NoError(t, err)
}

func TestValidator_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *Config
		errContains string
	}{
		{
			name: "missing version",
			cfg: &Config{
				Project: ProjectConfig{Name: "test"},
			},
			errContains: "version",
		},
		{
			name: "missing project name",
			cfg: &Config{
				Version: "1.0",
				Project: ProjectConfig{},
			},
			errContains: "project.name",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidator_Validate_ServiceConfig(t *testing.T) {
	tests := []struct {
		name        string
		service     ServiceConfig
		errContains string
	}{
		{
			name: "missing service name",
			service: ServiceConfig{
				Command: "./bin/api",
			},
			errContains: "name",
		},
		{
			name: "missing service command",
			service: ServiceConfig{
				Name: "api",
			},
			errContains: "command",
		},
		{
			name: "invalid restart strategy",
			service: ServiceConfig{
				Name:    "api",
				Command: "./bin/api",
				Restart: RestartConfig{Strategy: "invalid"},
			},
			errContains: "restart.strategy",
		},
		{
			name: "invalid failure strategy",
			service: ServiceConfig{
				Name:    "api",
				Command: "./bin/api",
				Failure: FailureConfig{Strategy: "invalid"},
			},
			errContains: "failure.strategy",
		},
		{
			name: "invalid healthiness kind",
			service: ServiceConfig{
				Name:        "api",
				Command:     "./bin/api",
				Healthiness: HealthinessConfig{Kind: "invalid"},
			},
			errContains: "healthiness.kind",
		},
		{
			name: "tcp healthiness missing address",
			service: ServiceConfig{
				Name:        "api",
				Command:     "./bin/api",
				Healthiness: HealthinessConfig{Kind: "tcp"},
			},
			errContains: "healthiness.address",
		},
		{
			name: "http healthiness missing url",
			service: ServiceConfig{
				Name:        "api",
				Command:     "./bin/api",
				Healthiness: HealthinessConfig{Kind: "http"},
			},
			errContains: "healthiness.url",
		},
		{
			name: "exec healthiness missing command",
			service: ServiceConfig{
				Name:        "api",
				Command:     "./bin/api",
				Healthiness: HealthinessConfig{Kind: "exec"},
			},
			errContains: "healthiness.command",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Version: "1.0",
				Project: ProjectConfig{Name: "test"},
				Services: []ServiceConfig{tt.service},
			}
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidator_Validate_DuplicateServiceNames(t *testing.T) {
	cfg := &Config{
		Version: "1.0",
		Project: ProjectConfig{Name: "test"},
		Services: []ServiceConfig{
			{Name: "api", Command: "./bin/api"},
			{Name: "api", Command: "./bin/api-2"},
		},
	}

	validator := NewValidator()
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidator_Validate_UnknownDependsOn(t *testing.T) {
	cfg := &Config{
		Version: "1.0",
		Project: ProjectConfig{Name: "test"},
		Services: []ServiceConfig{
			{Name: "api", Command: "./bin/api", DependsOn: []string{"db", "unknown-service"}},
		},
	}

	validator := NewValidator()
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown-service")
}

func TestValidator_Validate_UnknownDieIfFailed(t *testing.T) {
	cfg := &Config{
		Version: "1.0",
		Project: ProjectConfig{Name: "test"},
		Services: []ServiceConfig{
			{
				Name:        "api",
				Command:     "./bin/api",
				Termination: TerminationConfig{DieIfFailed: []string{"unknown-service"}},
			},
		},
	}

	validator := NewValidator()
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown-service")
}

func TestValidator_Validate_ServerConfig(t *testing.T) {
	tests := []struct {
		name        string
		server      ServerConfig
		errContains string
	}{
		{
			name: "port out of range (negative)",
			server: ServerConfig{
				Port: -1,
				Host: "127.0.0.1",
			},
			errContains: "port",
		},
		{
			name: "port out of range (too high)",
			server: ServerConfig{
				Port: 70000,
				Host: "127.0.0.1",
			},
			errContains: "port",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Version: "1.0",
				Project: ProjectConfig{Name: "test"},
				Server:  tt.server,
			}
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidator_Validate_LoggingConfig(t *testing.T) {
	tests := []struct {
		name        string
		logging     LoggingConfig
		errContains string
	}{
		{
			name: "invalid log level",
			logging: LoggingConfig{
				Level: "invalid",
			},
			errContains: "level",
		},
		{
			name: "invalid log format",
			logging: LoggingConfig{
				Level:  "info",
				Format: "invalid",
			},
			errContains: "format",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Version: "1.0",
				Project: ProjectConfig{Name: "test"},
				Logging: tt.logging,
			}
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidator_Validate_ValidRestartStrategies(t *testing.T) {
	validStrategies := []string{"always", "on_failure", "on-failure", "never", ""}

	validator := NewValidator()
	for _, strategy := range validStrategies {
		t.Run(strategy, func(t *testing.T) {
			cfg := &Config{
				Version: "1.0",
				Project: ProjectConfig{Name: "test"},
				Services: []ServiceConfig{
					{Name: "api", Command: "./api", Restart: RestartConfig{Strategy: strategy}},
				},
			}
			err := validator.Validate(cfg)
			assert.NoError(t, err)
		})
	}
}

func TestValidator_Validate_ValidFailureStrategies(t *testing.T) {
	validStrategies := []string{"shutdown", "kill_dependents", "kill-dependents", "ignore", ""}

	validator := NewValidator()
	for _, strategy := range validStrategies {
		t.Run(strategy, func(t *testing.T) {
			cfg := &Config{
				Version: "1.0",
				Project: ProjectConfig{Name: "test"},
				Services: []ServiceConfig{
					{Name: "api", Command: "./api", Failure: FailureConfig{Strategy: strategy}},
				},
			}
			err := validator.Validate(cfg)
			assert.NoError(t, err)
		})
	}
}

func TestValidator_Validate_DurationFormats(t *testing.T) {
	tests := []struct {
		name      string
		duration  string
		wantError bool
	}{
		{"valid ms", "500ms", false},
		{"valid seconds", "30s", false},
		{"valid minutes", "5m", false},
		{"valid hours", "1h", false},
		{"valid combined", "1h30m", false},
		{"invalid format", "5minutes", true},
		{"negative", "-5s", true},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Version: "1.0",
				Project: ProjectConfig{Name: "test"},
				Services: []ServiceConfig{
					{Name: "api", Command: "./api", Restart: RestartConfig{Backoff: tt.duration}},
				},
			}
			err := validator.Validate(cfg)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "version", Message: "is required"},
			{Field: "project.name", Message: "is required"},
		},
	}

	errStr := err.Error()
	assert.Contains(t, errStr, "version")
	assert.Contains(t, errStr, "project.name")
}

func TestValidationError_IsEmpty(t *testing.T) {
	err := &ValidationError{}
	assert.True(t, err.IsEmpty())

	err.Errors = append(err.Errors, FieldError{Field: "test", Message: "error"})
	assert.False(t, err.IsEmpty())
}

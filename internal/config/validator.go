// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateServer(cfg, errs)
	v.validateServices(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if cfg.Version == "" {
		errs.Add("version", "is required")
	}
	if cfg.Project.Name == "" {
		errs.Add("project.name", "is required")
	}
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port != 0 && (cfg.Server.Port < 0 || cfg.Server.Port > 65535) {
		errs.Add("server.port", "must be between 0 and 65535")
	}
}

func (v *Validator) validateServices(cfg *Config, errs *ValidationError) {
	seenNames := make(map[string]bool)
	validRestart := map[string]bool{"": true, "always": true, "on_failure": true, "on-failure": true, "never": true}
	validFailure := map[string]bool{"": true, "shutdown": true, "kill_dependents": true, "kill-dependents": true, "ignore": true}
	validHealth := map[string]bool{"": true, "none": true, "tcp": true, "http": true, "exec": true}

	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("services[%d]", i)

		if svc.Name == "" {
			errs.Add(prefix+".name", "is required")
		} else if seenNames[svc.Name] {
			errs.Add(prefix+".name", fmt.Sprintf("duplicate service name '%s'", svc.Name))
		} else {
			seenNames[svc.Name] = true
		}

		if svc.Command == nil || svc.Command == "" {
			errs.Add(prefix+".command", "is required")
		}

		if !validRestart[svc.Restart.Strategy] {
			errs.Add(prefix+".restart.strategy", fmt.Sprintf("invalid strategy '%s', must be one of: always, on-failure, never", svc.Restart.Strategy))
		}
		if !validFailure[svc.Failure.Strategy] {
			errs.Add(prefix+".failure.strategy", fmt.Sprintf("invalid strategy '%s', must be one of: shutdown, kill_dependents, ignore", svc.Failure.Strategy))
		}
		if !validHealth[svc.Healthiness.Kind] {
			errs.Add(prefix+".healthiness.kind", fmt.Sprintf("invalid kind '%s', must be one of: none, tcp, http, exec", svc.Healthiness.Kind))
		}
		if svc.Healthiness.Kind == "tcp" && svc.Healthiness.Address == "" {
			errs.Add(prefix+".healthiness.address", "is required for kind tcp")
		}
		if svc.Healthiness.Kind == "http" && svc.Healthiness.URL == "" {
			errs.Add(prefix+".healthiness.url", "is required for kind http")
		}
		if svc.Healthiness.Kind == "exec" && len(svc.Healthiness.Command) == 0 {
			errs.Add(prefix+".healthiness.command", "is required for kind exec")
		}
	}

	serviceNames := make(map[string]bool, len(cfg.Services))
	for _, svc := range cfg.Services {
		serviceNames[svc.Name] = true
	}
	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("services[%d]", i)
		for _, dep := range svc.DependsOn {
			if !serviceNames[dep] {
				errs.Add(prefix+".depends_on", fmt.Sprintf("references unknown service '%s'", dep))
			}
		}
		for _, dep := range svc.Termination.DieIfFailed {
			if !serviceNames[dep] {
				errs.Add(prefix+".termination.die_if_failed", fmt.Sprintf("references unknown service '%s'", dep))
			}
		}
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.Logging.Level] {
			errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
		}
	}
	if cfg.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[cfg.Logging.Format] {
			errs.Add("logging.format", fmt.Sprintf("invalid format '%s', must be one of: json, text", cfg.Logging.Format))
		}
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	if cfg.Events.History.MaxAge != "" {
		if d, err := time.ParseDuration(cfg.Events.History.MaxAge); err != nil {
			errs.Add("events.history.max_age", fmt.Sprintf("invalid duration format: %s", err))
		} else if d < 0 {
			errs.Add("events.history.max_age", "must be positive")
		}
	}

	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("services[%d]", i)
		if svc.Restart.Backoff != "" {
			if d, err := time.ParseDuration(svc.Restart.Backoff); err != nil {
				errs.Add(prefix+".restart.backoff", fmt.Sprintf("invalid duration format: %s", err))
			} else if d < 0 {
				errs.Add(prefix+".restart.backoff", "must be positive")
			}
		}
		if svc.Termination.Wait != "" {
			if d, err := time.ParseDuration(svc.Termination.Wait); err != nil {
				errs.Add(prefix+".termination.wait", fmt.Sprintf("invalid duration format: %s", err))
			} else if d < 0 {
				errs.Add(prefix+".termination.wait", "must be positive")
			}
		}
		if svc.Healthiness.Interval != "" {
			if d, err := time.ParseDuration(svc.Healthiness.Interval); err != nil {
				errs.Add(prefix+".healthiness.interval", fmt.Sprintf("invalid duration format: %s", err))
			} else if d < 0 {
				errs.Add(prefix+".healthiness.interval", "must be positive")
			}
		}
	}
}

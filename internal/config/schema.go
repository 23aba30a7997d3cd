// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the supervisor:
// project metadata, the admin HTTP server, the service set, and the
// read-only log/event/crash viewing surfaces.
package config

import "strings"

// Config is the root configuration structure.
type Config struct {
	Version           string                `json:"version"`
	Project           ProjectConfig         `json:"project"`
	Server            ServerConfig          `json:"server"`
	Services          []ServiceConfig       `json:"services"`
	Events            EventsConfig          `json:"events"`
	Logging           LoggingConfig         `json:"logging"`
	LoggingDefaults   LoggingDefaultsConfig `json:"logging_defaults"`
	LogViewers        []LogViewerConfig     `json:"log_viewers"`
	LogViewerSettings LogViewerSettings     `json:"log_viewer_settings"`
	Crashes           CrashesConfig         `json:"crashes"`
}

// LogViewerConfig defines a standalone log viewer reading from an external
// source (file, SSH host, command, Docker/Kubernetes container) rather than
// a supervised service's own captured output.
type LogViewerConfig struct {
	Name   string                  `json:"name"`
	Source LogSourceConfig         `json:"source"`
	Parser LogParserConfig         `json:"parser"`
	Derive map[string]DeriveConfig `json:"derive"`
	Layout []LayoutColumnConfig    `json:"layout"`
	Buffer LogBufferConfig         `json:"buffer"`
}

// LogSourceConfig defines where a standalone log viewer's logs come from.
type LogSourceConfig struct {
	Type           string   `json:"type"` // "ssh", "file", "command", "docker", "kubernetes"
	Host           string   `json:"host"`
	Path           string   `json:"path"`
	Current        string   `json:"current"`
	RotatedPattern string   `json:"rotated_pattern"`
	Decompress     string   `json:"decompress"`
	Command        []string `json:"command"`
	Container      string   `json:"container"`
	Namespace      string   `json:"namespace"`
	Pod            string   `json:"pod"`
	Follow         *bool    `json:"follow"`
	Since          string   `json:"since"`
}

// IsFollow returns whether to follow log output, defaulting to true.
func (s *LogSourceConfig) IsFollow() bool {
	if s.Follow == nil {
		return true
	}
	return *s.Follow
}

// LogBufferConfig defines in-memory buffer settings for a log viewer.
type LogBufferConfig struct {
	MaxEntries int  `json:"max_entries"`
	Persist    bool `json:"persist"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	TLSCert      string `json:"tls_cert"`
	TLSKey       string `json:"tls_key"`
	TLSTailscale bool   `json:"tls_tailscale"`
}

// ServiceConfig defines one supervised service (SPEC_FULL.md §3).
type ServiceConfig struct {
	Name        string              `json:"name"`
	Command     interface{}         `json:"command"` // string or []string
	Args        []string            `json:"args"`
	Env         map[string]string   `json:"env"`
	DependsOn   []string            `json:"depends_on"`
	Healthiness HealthinessConfig   `json:"healthiness"`
	Restart     RestartConfig       `json:"restart"`
	Failure     FailureConfig       `json:"failure"`
	Termination TerminationConfig  `json:"termination"`
	Logging     ServiceLoggingConfig `json:"logging"`
	LogBufferSize int               `json:"log_buffer_size"`
}

// HealthinessConfig is the service's healthiness{} block.
type HealthinessConfig struct {
	Kind     string   `json:"kind"` // "none", "tcp", "http", "exec"
	Address  string   `json:"address"`
	URL      string   `json:"url"`
	Command  []string `json:"command"`
	Interval string   `json:"interval"`
	Retries  int      `json:"retries"`
}

// RestartConfig is the service's restart{} block.
type RestartConfig struct {
	Strategy string `json:"strategy"` // "never", "on-failure", "always"
	Attempts int    `json:"attempts"`
	Backoff  string `json:"backoff"`
}

// FailureConfig is the service's failure{} block.
type FailureConfig struct {
	Strategy           string `json:"strategy"` // "shutdown", "kill_dependents", "ignore"
	SuccessfulExitCode []int  `json:"successful_exit_codes"`
}

// TerminationConfig is the service's termination{} block.
type TerminationConfig struct {
	Signal      string   `json:"signal"`
	Wait        string   `json:"wait"`
	DieIfFailed []string `json:"die_if_failed"`
}

// ServiceLoggingConfig configures per-service log capture and parsing.
type ServiceLoggingConfig struct {
	BufferSize int                     `json:"buffer_size"`
	Parser     LogParserConfig         `json:"parser"`
	Derive     map[string]DeriveConfig `json:"derive"`
	Layout     []LayoutColumnConfig    `json:"layout"`
}

// LoggingDefaultsConfig provides shared parser/derive/layout defaults for
// every service's logging block.
type LoggingDefaultsConfig struct {
	Parser LogParserConfig         `json:"parser"`
	Derive map[string]DeriveConfig `json:"derive"`
	Layout []LayoutColumnConfig    `json:"layout"`
}

// LogViewerSettings configures the log-viewing admin surface.
type LogViewerSettings struct {
	IdleTimeout string `json:"idle_timeout"`
}

// LogParserConfig defines how to parse a service's log lines.
type LogParserConfig struct {
	Type            string `json:"type"` // "json", "logfmt", "regex", "syslog", "none"
	Timestamp       string `json:"timestamp"`
	Level           string `json:"level"`
	Message         string `json:"message"`
	TimestampFormat string `json:"timestamp_format"`
	Pattern         string `json:"pattern"`
	ID              string `json:"id,omitempty"`
	Stack           string `json:"stack,omitempty"`
}

// DeriveConfig defines a derived field computed from parsed fields.
type DeriveConfig struct {
	From string                 `json:"from,omitempty"`
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args"`
}

// LayoutColumnConfig defines a column in the log display layout.
type LayoutColumnConfig struct {
	Field    string `json:"field,omitempty"`
	MinWidth int    `json:"min_width,omitempty"`
	MaxWidth int    `json:"max_width,omitempty"`
	Align    string `json:"align,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// EventsConfig configures the admin event history/stream surface.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// LoggingConfig configures the supervisor's own structured logging.
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "json", "text"
}

// CrashesConfig configures crash-report retention.
type CrashesConfig struct {
	ReportsDir string `json:"reports_dir"`
	MaxAge     string `json:"max_age"`
	MaxCount   int    `json:"max_count"`
}

// ApplyDefaults fills in missing parser/derive/layout from defaults.
func (c *ServiceLoggingConfig) ApplyDefaults(defaults *LoggingDefaultsConfig) {
	if defaults == nil {
		return
	}
	if c.Parser.Type == "" {
		c.Parser = mergeParserConfig(c.Parser, defaults.Parser)
	}
	if len(defaults.Derive) > 0 {
		if c.Derive == nil {
			c.Derive = make(map[string]DeriveConfig)
		}
		for k, v := range defaults.Derive {
			if _, exists := c.Derive[k]; !exists {
				c.Derive[k] = v
			}
		}
	}
	if len(c.Layout) == 0 && len(defaults.Layout) > 0 {
		c.Layout = defaults.Layout
	}
}

func mergeParserConfig(cfg, defaults LogParserConfig) LogParserConfig {
	if cfg.Type == "" {
		cfg.Type = defaults.Type
	}
	if cfg.Timestamp == "" {
		cfg.Timestamp = defaults.Timestamp
	}
	if cfg.Level == "" {
		cfg.Level = defaults.Level
	}
	if cfg.Message == "" {
		cfg.Message = defaults.Message
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = defaults.TimestampFormat
	}
	if cfg.Pattern == "" {
		cfg.Pattern = defaults.Pattern
	}
	if cfg.ID == "" {
		cfg.ID = defaults.ID
	}
	return cfg
}

// GetCommand returns the command as a slice of strings, honoring both the
// string and []string forms HJSON may produce.
func (s *ServiceConfig) GetCommand() []string {
	switch cmd := s.Command.(type) {
	case string:
		return splitCommand(cmd)
	case []interface{}:
		result := make([]string, 0, len(cmd))
		for _, v := range cmd {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	case []string:
		return cmd
	default:
		return nil
	}
}

// BuildServiceIDFields builds a map of service name to ID field for
// correlating log lines back to a request/job across a service boundary.
// Each service's logging config is merged with defaults to determine the
// ID field.
func BuildServiceIDFields(services []ServiceConfig, defaults *LoggingDefaultsConfig) map[string]string {
	result := make(map[string]string)
	for _, svc := range services {
		logging := svc.Logging
		logging.ApplyDefaults(defaults)
		if logging.Parser.ID != "" {
			result[svc.Name] = logging.Parser.ID
		}
	}
	return result
}

// splitCommand splits a command string on whitespace, respecting quoted
// substrings and backslash escapes.
func splitCommand(cmd string) []string {
	var result []string
	var current strings.Builder
	var inQuote rune
	var escape bool

	for _, r := range cmd {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}
		if r == '\\' && inQuote != '\'' {
			escape = true
			continue
		}
		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
			continue
		}
		if r == '"' || r == '\'' {
			inQuote = r
			continue
		}
		if r == ' ' || r == '\t' {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package crashes captures a postmortem log bundle whenever a supervised
// service lands in FinishedFailed (SPEC_FULL.md §4.4) or a service.failed
// event is published, so an
// operator can inspect what happened without having kept a terminal open.
package crashes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/groupsio/overseer/internal/events"
	"github.com/groupsio/overseer/internal/logs"
)

const crashReportVersion = "1.0"

// Config holds configuration for crash storage.
type Config struct {
	ReportsDir string        // Directory to store crash files
	MaxAge     time.Duration // Max age of crashes to keep
	MaxCount   int           // Max number of crashes to keep
}

// LogProvider exposes a supervised service's recently captured output so
// a crash report can be assembled around the line that killed it.
type LogProvider interface {
	ServiceLogs(name string, n int) ([]string, error)
}

// Manager handles crash capture and storage.
type Manager struct {
	mu              sync.RWMutex
	config          Config
	logProvider     LogProvider
	eventBus        events.EventBus
	defaultIDField  string            // Default field name for trace IDs
	serviceIDFields map[string]string // Per-service ID field overrides
	stackField      string            // Field name containing stack trace
}

// NewManager creates a new crash manager. logProvider and bus may be nil
// in tests that only exercise storage (Save/List/Get/Delete/Clear).
func NewManager(cfg Config, logProvider LogProvider, bus events.EventBus, defaultIDField string, serviceIDFields map[string]string, stackField string) (*Manager, error) {
	if cfg.ReportsDir == "" {
		cfg.ReportsDir = ".overseer/crashes"
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	if cfg.MaxCount == 0 {
		cfg.MaxCount = 100
	}

	if err := os.MkdirAll(cfg.ReportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create crashes directory: %w", err)
	}

	if serviceIDFields == nil {
		serviceIDFields = make(map[string]string)
	}

	return &Manager{
		config:          cfg,
		logProvider:     logProvider,
		eventBus:        bus,
		defaultIDField:  defaultIDField,
		serviceIDFields: serviceIDFields,
		stackField:      stackField,
	}, nil
}

// Subscribe subscribes to service-failure events on the bus.
func (m *Manager) Subscribe() error {
	if m.eventBus == nil {
		return nil
	}

	for _, eventType := range []string{events.EventServiceFailed, events.EventServiceFinished} {
		if _, err := m.eventBus.Subscribe(eventType, func(ctx context.Context, e events.Event) error {
			m.handleFailureEvent(e)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// handleFailureEvent processes a service.failed/service.finished event,
// capturing a crash report only when the service actually failed.
func (m *Manager) handleFailureEvent(e events.Event) {
	failed, ok := e.Payload["failed"].(bool)
	if (ok && !failed) || (!ok && e.Type == events.EventServiceFinished) {
		return
	}

	serviceName := e.Service
	if serviceName == "" {
		return
	}

	crash := Crash{
		Version:   crashReportVersion,
		ID:        generateCrashID(),
		Service:   serviceName,
		Timestamp: e.Timestamp,
		Trigger:   e.Type,
	}

	if exitCode, ok := e.Payload["exit_code"].(int); ok {
		crash.ExitCode = exitCode
	}
	if status, ok := e.Payload["status"].(string); ok {
		crash.Status = status
	}
	if reason, ok := e.Payload["reason"].(string); ok {
		crash.Error = reason
	}
	if dependents, ok := e.Payload["dependents"].([]string); ok {
		crash.Dependents = dependents
	}

	allLogs := m.collectParsedLogs(serviceName)

	if m.stackField != "" {
		if svcLogs, ok := allLogs[serviceName]; ok && len(svcLogs) > 0 {
			for i := len(svcLogs) - 1; i >= 0; i-- {
				if stackTrace := getFieldAsString(svcLogs[i].Fields, m.stackField); stackTrace != "" {
					if crash.Error != "" {
						crash.Error = crash.Error + "\n\n" + stackTrace
					} else {
						crash.Error = stackTrace
					}
					break
				}
			}
		}
	}

	crash.TraceID = m.findRequestTraceIDFromEntries(allLogs, serviceName)

	var entries []CrashEntry
	if crash.TraceID != "" {
		entries = m.filterEntriesByTraceID(allLogs, crash.TraceID)
	} else if svcLogs, ok := allLogs[serviceName]; ok {
		for _, entry := range svcLogs {
			entries = append(entries, logEntryToCrashEntry(entry, serviceName))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	crash.Entries = entries
	crash.Summary = m.buildSummary(entries)

	if err := m.Save(crash); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save crash: %v\n", err)
	}

	m.cleanup()
}

// collectParsedLogs fetches the most recent captured lines of the one
// service a crash is being captured for and wraps each as a log entry.
// Lines are not run through a parser, so each entry carries only Raw and
// Message (no timestamp, level or fields).
func (m *Manager) collectParsedLogs(serviceName string) map[string][]*logs.LogEntry {
	const recentLines = 100
	result := make(map[string][]*logs.LogEntry)
	if m.logProvider == nil {
		return result
	}
	lines, err := m.logProvider.ServiceLogs(serviceName, recentLines)
	if err != nil {
		return result
	}
	for _, line := range lines {
		result[serviceName] = append(result[serviceName], &logs.LogEntry{Message: line, Raw: line})
	}
	return result
}

// filterEntriesByTraceID filters parsed log entries to only include those matching the trace ID.
func (m *Manager) filterEntriesByTraceID(allLogs map[string][]*logs.LogEntry, traceID string) []CrashEntry {
	var result []CrashEntry

	for serviceName, entries := range allLogs {
		idField := m.getIDFieldForService(serviceName)

		for _, entry := range entries {
			if entryID := getFieldAsString(entry.Fields, idField); entryID == traceID {
				result = append(result, logEntryToCrashEntry(entry, serviceName))
			}
		}
	}

	return result
}

// findRequestTraceIDFromEntries scans service logs to find the request trace ID.
func (m *Manager) findRequestTraceIDFromEntries(allLogs map[string][]*logs.LogEntry, crashedService string) string {
	entries, ok := allLogs[crashedService]
	if !ok || len(entries) == 0 {
		return ""
	}

	idField := m.getIDFieldForService(crashedService)

	lastEntry := entries[len(entries)-1]
	crashTraceID := getFieldAsString(lastEntry.Fields, idField)

	for i := len(entries) - 2; i >= 0; i-- {
		lineTraceID := getFieldAsString(entries[i].Fields, idField)
		if lineTraceID != "" {
			if crashTraceID == "" || lineTraceID != crashTraceID {
				return lineTraceID
			}
		}
	}

	return crashTraceID
}

func logEntryToCrashEntry(entry *logs.LogEntry, source string) CrashEntry {
	return CrashEntry{
		Timestamp: entry.Timestamp,
		Source:    source,
		Level:     string(entry.Level),
		Message:   entry.Message,
		Fields:    entry.Fields,
		Raw:       entry.Raw,
	}
}

func getFieldAsString(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if val, ok := fields[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// buildSummary builds summary statistics from crash entries.
func (m *Manager) buildSummary(entries []CrashEntry) CrashStats {
	summary := CrashStats{
		TotalEntries: len(entries),
		BySource:     make(map[string]int),
		ByLevel:      make(map[string]int),
	}

	for _, e := range entries {
		summary.BySource[e.Source]++
		if e.Level != "" {
			summary.ByLevel[e.Level]++
		}
	}

	return summary
}

// getIDFieldForService returns the ID field name for a specific service.
// Uses per-service override if available, otherwise falls back to default.
func (m *Manager) getIDFieldForService(serviceName string) string {
	if idField, ok := m.serviceIDFields[serviceName]; ok && idField != "" {
		return idField
	}
	if m.defaultIDField != "" {
		return m.defaultIDField
	}
	return "id"
}

// extractTraceID extracts a trace ID from a raw log line (used for tests).
func extractTraceID(logLine, idField string) string {
	var logEntry map[string]interface{}
	if err := json.Unmarshal([]byte(logLine), &logEntry); err == nil {
		if id, ok := logEntry[idField].(string); ok {
			return id
		}
	}

	pattern := regexp.MustCompile(fmt.Sprintf(`"%s"\s*:\s*"([^"]+)"`, regexp.QuoteMeta(idField)))
	if matches := pattern.FindStringSubmatch(logLine); len(matches) >= 2 {
		return matches[1]
	}

	return ""
}

// generateCrashID generates a unique crash ID based on timestamp.
func generateCrashID() string {
	return time.Now().Format("20060102-150405.000")
}

// Save saves a crash to disk.
func (m *Manager) Save(crash Crash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filename := filepath.Join(m.config.ReportsDir, crash.ID+".json")
	data, err := json.MarshalIndent(crash, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal crash: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write crash file: %w", err)
	}

	return nil
}

// List returns all crashes, sorted by timestamp (newest first).
func (m *Manager) List() ([]CrashSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.config.ReportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read crashes directory: %w", err)
	}

	var summaries []CrashSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		crash, err := m.loadCrash(entry.Name())
		if err != nil {
			continue
		}

		summaries = append(summaries, CrashSummary{
			ID:        crash.ID,
			Service:   crash.Service,
			Timestamp: crash.Timestamp,
			TraceID:   crash.TraceID,
			ExitCode:  crash.ExitCode,
			Error:     crash.Error,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})

	return summaries, nil
}

// Get retrieves a specific crash by ID.
func (m *Manager) Get(id string) (*Crash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.loadCrash(id + ".json")
}

// Newest returns the most recent crash.
func (m *Manager) Newest() (*Crash, error) {
	summaries, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	return m.Get(summaries[0].ID)
}

// Delete removes a crash by ID.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filename := filepath.Join(m.config.ReportsDir, id+".json")
	if err := os.Remove(filename); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("crash not found: %s", id)
		}
		return fmt.Errorf("failed to delete crash: %w", err)
	}
	return nil
}

// Clear removes all crashes.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.config.ReportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read crashes directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		os.Remove(filepath.Join(m.config.ReportsDir, entry.Name()))
	}

	return nil
}

// loadCrash loads a crash from disk.
func (m *Manager) loadCrash(filename string) (*Crash, error) {
	data, err := os.ReadFile(filepath.Join(m.config.ReportsDir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read crash file: %w", err)
	}

	var crash Crash
	if err := json.Unmarshal(data, &crash); err != nil {
		return nil, fmt.Errorf("failed to unmarshal crash: %w", err)
	}

	return &crash, nil
}

// cleanup removes old crashes based on age and count limits.
func (m *Manager) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.config.ReportsDir)
	if err != nil {
		return
	}

	type crashFile struct {
		name      string
		timestamp time.Time
	}

	var files []crashFile
	cutoff := time.Now().Add(-m.config.MaxAge)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		idPart := strings.TrimSuffix(entry.Name(), ".json")
		ts, err := time.ParseInLocation("20060102-150405.000", idPart, time.Local)
		if err != nil {
			continue
		}

		if ts.Before(cutoff) {
			os.Remove(filepath.Join(m.config.ReportsDir, entry.Name()))
			continue
		}

		files = append(files, crashFile{name: entry.Name(), timestamp: ts})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].timestamp.After(files[j].timestamp)
	})

	if len(files) > m.config.MaxCount {
		for _, f := range files[m.config.MaxCount:] {
			os.Remove(filepath.Join(m.config.ReportsDir, f.name))
		}
	}
}

// UpdateServiceIDFields updates the per-service ID field mappings.
func (m *Manager) UpdateServiceIDFields(serviceIDFields map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if serviceIDFields == nil {
		m.serviceIDFields = make(map[string]string)
	} else {
		m.serviceIDFields = serviceIDFields
	}
}

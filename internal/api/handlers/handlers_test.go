// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/groupsio/overseer/internal/bus"
	"github.com/groupsio/overseer/internal/events"
	"github.com/groupsio/overseer/internal/supervisor"
)

// Test fixtures

func newTestRepo() *supervisor.Repo {
	b := bus.New()
	api := &supervisor.Service{Name: "api", Dependencies: map[string]struct{}{}}
	db := &supervisor.Service{Name: "db", Dependencies: map[string]struct{}{}}
	return supervisor.NewRepo(b, []*supervisor.Service{api, db})
}

type mockLogProvider struct {
	lines map[string][]string
}

func (m *mockLogProvider) ServiceLogs(name string, n int) ([]string, error) {
	return m.lines[name], nil
}

type mockEventBus struct {
	events []events.Event
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events: []events.Event{
			{ID: "1", Type: events.EventServiceStarted, Timestamp: time.Now()},
			{ID: "2", Type: events.EventServiceExited, Timestamp: time.Now()},
		},
	}
}

func (m *mockEventBus) Publish(ctx context.Context, event events.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventBus) Subscribe(pattern string, handler events.EventHandler) (events.SubscriptionID, error) {
	return "sub-1", nil
}

func (m *mockEventBus) SubscribeAsync(pattern string, handler events.EventHandler, bufferSize int) (events.SubscriptionID, error) {
	return "sub-1", nil
}

func (m *mockEventBus) Unsubscribe(id events.SubscriptionID) error {
	return nil
}

func (m *mockEventBus) History(filter events.EventFilter) ([]events.Event, error) {
	return m.events, nil
}

func (m *mockEventBus) Close() error {
	return nil
}

// Tests

func TestServiceHandler_List(t *testing.T) {
	handler := NewServiceHandler(newTestRepo())

	req := httptest.NewRequest("GET", "/api/v1/services", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotNil(t, resp.Data)
}

func TestServiceHandler_Get(t *testing.T) {
	handler := NewServiceHandler(newTestRepo())

	req := httptest.NewRequest("GET", "/api/v1/services/api", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "api"})
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceHandler_Get_NotFound(t *testing.T) {
	handler := NewServiceHandler(newTestRepo())

	req := httptest.NewRequest("GET", "/api/v1/services/unknown", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "unknown"})
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServiceLogsHandler_Logs(t *testing.T) {
	provider := &mockLogProvider{lines: map[string][]string{"api": {"log line 1", "log line 2"}}}
	handler := NewServiceLogsHandler(newTestRepo(), provider)

	req := httptest.NewRequest("GET", "/api/v1/services/api/logs", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "api"})
	rec := httptest.NewRecorder()

	handler.Logs(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceLogsHandler_Logs_NotFound(t *testing.T) {
	provider := &mockLogProvider{lines: map[string][]string{}}
	handler := NewServiceLogsHandler(newTestRepo(), provider)

	req := httptest.NewRequest("GET", "/api/v1/services/unknown/logs", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "unknown"})
	rec := httptest.NewRecorder()

	handler.Logs(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventHandler_History(t *testing.T) {
	handler := NewEventHandler(newMockEventBus())

	req := httptest.NewRequest("GET", "/api/v1/events", nil)
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventHandler_History_WithFilters(t *testing.T) {
	handler := NewEventHandler(newMockEventBus())

	req := httptest.NewRequest("GET", "/api/v1/events?type=service.started&limit=10", nil)
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSON(rec, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotNil(t, resp.Data)
	assert.NotNil(t, resp.Meta)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, http.StatusNotFound, ErrNotFound, "resource not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, ErrNotFound, resp.Error.Code)
	assert.Equal(t, "resource not found", resp.Error.Message)
}

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	details := map[string]interface{}{
		"field": "name",
		"value": "test",
	}
	WriteErrorWithDetails(rec, http.StatusBadRequest, ErrBadRequest, "validation failed", details)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp Response
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

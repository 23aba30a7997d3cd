// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/groupsio/overseer/internal/supervisor"
)

// ServiceStatus is the JSON projection of a ServiceHandler for the admin
// API: every field the scheduler tracks per spec.md §3.3, minus the
// unexported plumbing.
type ServiceStatus struct {
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	PID             int      `json:"pid,omitempty"`
	RestartAttempts int      `json:"restart_attempts"`
	Dependencies    []string `json:"dependencies,omitempty"`
}

// ServiceHandler serves read-only service status. The supervisor core has
// no remote start/stop/restart surface (SPEC_FULL.md Non-goals); lifecycle
// is driven entirely by the config and the scheduler itself.
type ServiceHandler struct {
	repo *supervisor.Repo
}

// NewServiceHandler creates a new service handler.
func NewServiceHandler(repo *supervisor.Repo) *ServiceHandler {
	return &ServiceHandler{repo: repo}
}

func toServiceStatus(sh *supervisor.ServiceHandler) ServiceStatus {
	out := ServiceStatus{
		Name:            sh.Name(),
		Status:          sh.Status().String(),
		RestartAttempts: sh.RestartAttempts(),
	}
	if pid, ok := sh.PID(); ok {
		out.PID = pid
	}
	for dep := range sh.Service().Dependencies {
		out.Dependencies = append(out.Dependencies, dep)
	}
	return out
}

func (h *ServiceHandler) findHandler(name string) *supervisor.ServiceHandler {
	for _, sh := range h.repo.Handlers() {
		if sh.Name() == name {
			return sh
		}
	}
	return nil
}

// List returns every supervised service's current status.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	handlers := h.repo.Handlers()
	out := make([]ServiceStatus, 0, len(handlers))
	for _, sh := range handlers {
		out = append(out, toServiceStatus(sh))
	}
	WriteJSON(w, http.StatusOK, out)
}

// Get returns a single service's status by name.
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	sh := h.findHandler(name)
	if sh == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "service not found")
		return
	}

	WriteJSON(w, http.StatusOK, toServiceStatus(sh))
}

// LogProvider exposes a service's recently captured output lines,
// implemented by process.LineBuffer.
type LogProvider interface {
	ServiceLogs(name string, n int) ([]string, error)
}

// ServiceLogsHandler serves a supervised service's captured stdout/stderr.
type ServiceLogsHandler struct {
	repo     *supervisor.Repo
	provider LogProvider
}

// NewServiceLogsHandler creates a new service-logs handler.
func NewServiceLogsHandler(repo *supervisor.Repo, provider LogProvider) *ServiceLogsHandler {
	return &ServiceLogsHandler{repo: repo, provider: provider}
}

func (h *ServiceLogsHandler) findHandler(name string) *supervisor.ServiceHandler {
	for _, sh := range h.repo.Handlers() {
		if sh.Name() == name {
			return sh
		}
	}
	return nil
}

// Logs returns the recent captured output lines for a service.
func (h *ServiceLogsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	if h.findHandler(name) == nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "service not found")
		return
	}

	lines := 100
	if linesStr := r.URL.Query().Get("lines"); linesStr != "" {
		if n, err := strconv.Atoi(linesStr); err == nil && n > 0 {
			lines = n
		}
	}

	out, err := h.provider.ServiceLogs(name, lines)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"service": name,
		"lines":   out,
		"as_of":   time.Now(),
	})
}

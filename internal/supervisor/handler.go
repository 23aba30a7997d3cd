// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"time"

	"github.com/groupsio/overseer/internal/bus"
)

// ServiceHandler is the supervisor's per-service mutable record
// (spec.md §3.3). Exactly one goroutine — the Scheduler — ever mutates a
// given handler; every other component sees only the read accessors.
type ServiceHandler struct {
	service *Service

	status             bus.ServiceStatus
	pid                int
	hasPID             bool
	restartAttempts    int
	shuttingDownStart  time.Time
	hasShuttingDownStart bool
}

// NewServiceHandler constructs a handler in the Initial status for the
// given immutable service spec.
func NewServiceHandler(svc *Service) *ServiceHandler {
	return &ServiceHandler{service: svc, status: bus.Initial}
}

func (h *ServiceHandler) Name() string       { return h.service.Name }
func (h *ServiceHandler) Service() *Service  { return h.service }
func (h *ServiceHandler) Status() bus.ServiceStatus { return h.status }

// PID returns the last observed PID and whether one is currently set
// (invariant I1: present only while status is Starting/Started/Running/
// InKilling).
func (h *ServiceHandler) PID() (int, bool) { return h.pid, h.hasPID }

func (h *ServiceHandler) RestartAttempts() int { return h.restartAttempts }

// ShuttingDownStart returns the instant InKilling was entered, if any
// (invariant I2).
func (h *ServiceHandler) ShuttingDownStart() (time.Time, bool) {
	return h.shuttingDownStart, h.hasShuttingDownStart
}

func (h *ServiceHandler) IsInitial() bool   { return h.status == bus.Initial }
func (h *ServiceHandler) IsStarting() bool  { return h.status == bus.Starting }
func (h *ServiceHandler) IsStarted() bool   { return h.status == bus.Started }
func (h *ServiceHandler) IsRunning() bool   { return h.status == bus.Running }
func (h *ServiceHandler) IsInKilling() bool { return h.status == bus.InKilling }

// ShuttingDownStarted records the instant of entry into InKilling
// (invariant I2), mirroring horust's shutting_down_started().
func (h *ServiceHandler) ShuttingDownStarted() {
	h.shuttingDownStart = time.Now()
	h.hasShuttingDownStart = true
}

// RestartAttemptsAreOver reports whether restart_attempts has exceeded the
// configured budget (invariant I3).
func (h *ServiceHandler) RestartAttemptsAreOver() bool {
	return h.restartAttempts > h.service.Restart.Attempts
}

// setStatus is the only mutator of status; it is unexported so every
// transition flows through the StateMachine's guarded table or the
// Scheduler's apply-event handlers.
func (h *ServiceHandler) setStatus(s bus.ServiceStatus) { h.status = s }

func (h *ServiceHandler) setPID(pid int) {
	h.pid = pid
	h.hasPID = true
}

func (h *ServiceHandler) clearPID() {
	h.pid = 0
	h.hasPID = false
}

func (h *ServiceHandler) clearShuttingDownStart() {
	h.shuttingDownStart = time.Time{}
	h.hasShuttingDownStart = false
}

func (h *ServiceHandler) resetRestartAttempts() { h.restartAttempts = 0 }

func (h *ServiceHandler) incrementRestartAttempts() { h.restartAttempts++ }

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package supervisor implements the per-service state machine, the Repo of
// ServiceHandlers, and the event-driven Scheduler that together form the
// supervision core (spec.md §2-§5).
package supervisor

import "time"

// RestartStrategy governs whether and how a service relaunches after
// reaching Success or Failed (spec.md §3.1).
type RestartStrategy int

const (
	RestartNever RestartStrategy = iota
	RestartOnFailure
	RestartAlways
)

// FailureStrategy governs what happens to a service's dependents when it
// fails (spec.md §3.1).
type FailureStrategy int

const (
	FailureShutdown FailureStrategy = iota
	FailureKillDependents
	FailureIgnore
)

// HealthKind selects which external health-check probe implementation
// prepares and monitors a service (SPEC_FULL.md §4.6).
type HealthKind int

const (
	HealthNone HealthKind = iota
	HealthTCP
	HealthHTTP
	HealthExec
)

// Restart is the restart{} block of a service spec.
type Restart struct {
	Strategy RestartStrategy
	Attempts int
	Backoff  time.Duration
}

// Failure is the failure{} block of a service spec.
type Failure struct {
	Strategy           FailureStrategy
	SuccessfulExitCode map[int]struct{}
}

// Termination is the termination{} block of a service spec.
type Termination struct {
	Signal      string // named OS signal, e.g. "SIGTERM"
	Wait        time.Duration
	DieIfFailed map[string]struct{}
}

// Healthiness is the healthiness{} block of a service spec (SPEC_FULL.md §3).
type Healthiness struct {
	Kind     HealthKind
	Address  string        // tcp: host:port
	URL      string        // http: full URL
	Command  []string      // exec: argv
	Interval time.Duration
	Retries  int
}

// Service is the immutable input record of spec.md §3.1. Once constructed,
// a Service is never mutated; ServiceHandlers hold a shared reference to
// it.
type Service struct {
	Name         string
	Command      []string
	Dependencies map[string]struct{}
	Healthiness  Healthiness
	Restart      Restart
	Failure      Failure
	Termination  Termination
}

// IsSuccessfulExit reports whether code is in the service's configured set
// of successful exit codes.
func (s *Service) IsSuccessfulExit(code int) bool {
	_, ok := s.Failure.SuccessfulExitCode[code]
	return ok
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/groupsio/overseer/internal/supervisor"
)

// ToServices converts the config file's service list into the immutable
// supervisor.Service records the core state machine operates on.
func ToServices(cfgs []ServiceConfig) ([]*supervisor.Service, error) {
	out := make([]*supervisor.Service, 0, len(cfgs))
	for _, c := range cfgs {
		svc, err := toService(c)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", c.Name, err)
		}
		out = append(out, svc)
	}
	return out, nil
}

func toService(c ServiceConfig) (*supervisor.Service, error) {
	deps := make(map[string]struct{}, len(c.DependsOn))
	for _, d := range c.DependsOn {
		deps[d] = struct{}{}
	}

	dieIfFailed := make(map[string]struct{}, len(c.Termination.DieIfFailed))
	for _, d := range c.Termination.DieIfFailed {
		dieIfFailed[d] = struct{}{}
	}

	successCodes := make(map[int]struct{}, len(c.Failure.SuccessfulExitCode))
	for _, code := range c.Failure.SuccessfulExitCode {
		successCodes[code] = struct{}{}
	}
	if len(successCodes) == 0 {
		successCodes[0] = struct{}{}
	}

	restartStrategy, err := parseRestartStrategy(c.Restart.Strategy)
	if err != nil {
		return nil, err
	}
	failureStrategy, err := parseFailureStrategy(c.Failure.Strategy)
	if err != nil {
		return nil, err
	}
	healthKind, err := parseHealthKind(c.Healthiness.Kind)
	if err != nil {
		return nil, err
	}

	backoff, err := parseDurationDefault(c.Restart.Backoff, time.Second)
	if err != nil {
		return nil, fmt.Errorf("restart.backoff: %w", err)
	}
	wait, err := parseDurationDefault(c.Termination.Wait, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("termination.wait: %w", err)
	}
	interval, err := parseDurationDefault(c.Healthiness.Interval, time.Second)
	if err != nil {
		return nil, fmt.Errorf("healthiness.interval: %w", err)
	}

	command := c.GetCommand()
	command = append(append([]string{}, command...), c.Args...)

	return &supervisor.Service{
		Name:         c.Name,
		Command:      command,
		Dependencies: deps,
		Healthiness: supervisor.Healthiness{
			Kind:     healthKind,
			Address:  c.Healthiness.Address,
			URL:      c.Healthiness.URL,
			Command:  c.Healthiness.Command,
			Interval: interval,
			Retries:  c.Healthiness.Retries,
		},
		Restart: supervisor.Restart{
			Strategy: restartStrategy,
			Attempts: c.Restart.Attempts,
			Backoff:  backoff,
		},
		Failure: supervisor.Failure{
			Strategy:           failureStrategy,
			SuccessfulExitCode: successCodes,
		},
		Termination: supervisor.Termination{
			Signal:      c.Termination.Signal,
			Wait:        wait,
			DieIfFailed: dieIfFailed,
		},
	}, nil
}

func parseRestartStrategy(s string) (supervisor.RestartStrategy, error) {
	switch s {
	case "", "on-failure", "on_failure":
		return supervisor.RestartOnFailure, nil
	case "never":
		return supervisor.RestartNever, nil
	case "always":
		return supervisor.RestartAlways, nil
	default:
		return 0, fmt.Errorf("unknown restart strategy %q", s)
	}
}

func parseFailureStrategy(s string) (supervisor.FailureStrategy, error) {
	switch s {
	case "", "kill_dependents", "kill-dependents":
		return supervisor.FailureKillDependents, nil
	case "shutdown":
		return supervisor.FailureShutdown, nil
	case "ignore":
		return supervisor.FailureIgnore, nil
	default:
		return 0, fmt.Errorf("unknown failure strategy %q", s)
	}
}

func parseHealthKind(s string) (supervisor.HealthKind, error) {
	switch s {
	case "", "none":
		return supervisor.HealthNone, nil
	case "tcp":
		return supervisor.HealthTCP, nil
	case "http":
		return supervisor.HealthHTTP, nil
	case "exec":
		return supervisor.HealthExec, nil
	default:
		return 0, fmt.Errorf("unknown healthiness kind %q", s)
	}
}

func parseDurationDefault(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

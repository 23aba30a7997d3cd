// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupsio/overseer/internal/supervisor"
)

func TestToServices_BasicConversion(t *testing.T) {
	cfgs := []ServiceConfig{
		{
			Name:      "db",
			Command:   "./bin/db",
			DependsOn: nil,
		},
		{
			Name:      "api",
			Command:   []string{"./bin/api"},
			Args:      []string{"-port", "8080"},
			DependsOn: []string{"db"},
			Healthiness: HealthinessConfig{
				Kind:    "tcp",
				Address: "localhost:8080",
			},
			Restart: RestartConfig{
				Strategy: "always",
				Attempts: 3,
				Backoff:  "2s",
			},
			Failure: FailureConfig{
				Strategy:           "kill_dependents",
				SuccessfulExitCode: []int{0, 2},
			},
			Termination: TerminationConfig{
				Signal: "SIGINT",
				Wait:   "5s",
			},
		},
	}

	services, err := ToServices(cfgs)
	require.NoError(t, err)
	require.Len(t, services, 2)

	api := services[1]
	assert.Equal(t, "api", api.Name)
	assert.Equal(t, []string{"./bin/api", "-port", "8080"}, api.Command)
	_, hasDep := api.Dependencies["db"]
	assert.True(t, hasDep)
	assert.Equal(t, supervisor.HealthTCP, api.Healthiness.Kind)
	assert.Equal(t, "localhost:8080", api.Healthiness.Address)
	assert.Equal(t, supervisor.RestartAlways, api.Restart.Strategy)
	assert.Equal(t, 3, api.Restart.Attempts)
	assert.Equal(t, 2*time.Second, api.Restart.Backoff)
	assert.Equal(t, supervisor.FailureKillDependents, api.Failure.Strategy)
	_, hasZero := api.Failure.SuccessfulExitCode[0]
	_, hasTwo := api.Failure.SuccessfulExitCode[2]
	assert.True(t, hasZero)
	assert.True(t, hasTwo)
	assert.Equal(t, "SIGINT", api.Termination.Signal)
	assert.Equal(t, 5*time.Second, api.Termination.Wait)
}

func TestToServices_DefaultSuccessfulExitCode(t *testing.T) {
	cfgs := []ServiceConfig{{Name: "api", Command: "./bin/api"}}

	services, err := ToServices(cfgs)
	require.NoError(t, err)

	_, ok := services[0].Failure.SuccessfulExitCode[0]
	assert.True(t, ok)
}

func TestToServices_UnknownRestartStrategy(t *testing.T) {
	cfgs := []ServiceConfig{
		{Name: "api", Command: "./bin/api", Restart: RestartConfig{Strategy: "bogus"}},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart strategy")
}

func TestToServices_UnknownFailureStrategy(t *testing.T) {
	cfgs := []ServiceConfig{
		{Name: "api", Command: "./bin/api", Failure: FailureConfig{Strategy: "bogus"}},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure strategy")
}

func TestToServices_UnknownHealthKind(t *testing.T) {
	cfgs := []ServiceConfig{
		{Name: "api", Command: "./bin/api", Healthiness: HealthinessConfig{Kind: "bogus"}},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "healthiness kind")
}

func TestToServices_InvalidBackoffDuration(t *testing.T) {
	cfgs := []ServiceConfig{
		{Name: "api", Command: "./bin/api", Restart: RestartConfig{Backoff: "not-a-duration"}},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restart.backoff")
}

func TestToServices_InvalidTerminationWait(t *testing.T) {
	cfgs := []ServiceConfig{
		{Name: "api", Command: "./bin/api", Termination: TerminationConfig{Wait: "not-a-duration"}},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "termination.wait")
}

func TestToServices_InvalidHealthinessInterval(t *testing.T) {
	cfgs := []ServiceConfig{
		{
			Name:        "api",
			Command:     "./bin/api",
			Healthiness: HealthinessConfig{Kind: "tcp", Address: "x", Interval: "not-a-duration"},
		},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "healthiness.interval")
}

func TestToServices_ErrorIncludesServiceName(t *testing.T) {
	cfgs := []ServiceConfig{
		{Name: "flaky-api", Command: "./bin/api", Restart: RestartConfig{Strategy: "bogus"}},
	}

	_, err := ToServices(cfgs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"flaky-api"`)
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the read-only event history and pub/sub surface
// the admin API exposes over the supervisor's bus traffic.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types   []string  // Event types to match (supports wildcards)
	Service string    // Filter by service name
	Since   time.Time // Events after this time
	Until   time.Time // Events before this time
	Limit   int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types, mirrored from supervisor.Event/ServiceStatus
// transitions (SPEC_FULL.md §4) onto the admin-facing history record.
const (
	EventServiceStarting = "service.starting"
	EventServiceStarted  = "service.started"
	EventServiceRunning  = "service.running"
	EventServiceKilling  = "service.killing"
	EventServiceExited   = "service.exited"
	EventServiceFailed   = "service.failed"
	EventServiceFinished = "service.finished"

	EventSupervisorShutdown = "supervisor.shutdown"
)

// RestartTrigger indicates why a service was restarted.
type RestartTrigger string

const (
	RestartTriggerStartupCrash RestartTrigger = "startup_crash"
	RestartTriggerManual       RestartTrigger = "manual"
)

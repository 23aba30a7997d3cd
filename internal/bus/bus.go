// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bus implements the supervisor's broadcast event channel: one
// fan-in, N fan-out, publisher identity tracked for optional self-delivery
// suppression (spec.md §4.1).
package bus

import "sync"

// Event is the tagged-union payload carried by the bus. Only the fields
// relevant to Kind are meaningful for a given value.
type Event struct {
	Kind EventKind

	// ServiceName is set for every kind except ShuttingDownInitiated and Exited.
	ServiceName string

	// Status is set for StatusChanged.
	Status ServiceStatus

	// ExitCode is set for ServiceExited.
	ExitCode int

	// PID is set for PidChanged.
	PID int

	// ComponentName and Success are set for Exited.
	ComponentName string
	Success       bool
}

// EventKind enumerates the members of the Event tagged union (spec.md §3.4).
type EventKind int

const (
	StatusChanged EventKind = iota
	ServiceExited
	Run
	Kill
	ForceKill
	PidChanged
	ShuttingDownInitiated
	Exited
)

func (k EventKind) String() string {
	switch k {
	case StatusChanged:
		return "StatusChanged"
	case ServiceExited:
		return "ServiceExited"
	case Run:
		return "Run"
	case Kill:
		return "Kill"
	case ForceKill:
		return "ForceKill"
	case PidChanged:
		return "PidChanged"
	case ShuttingDownInitiated:
		return "ShuttingDownInitiated"
	case Exited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// Constructors mirror horust's Event::new_* helpers so call sites read the
// same way the state machine and scheduler reason about events.

func NewStatusChanged(name string, status ServiceStatus) Event {
	return Event{Kind: StatusChanged, ServiceName: name, Status: status}
}

func NewServiceExited(name string, exitCode int) Event {
	return Event{Kind: ServiceExited, ServiceName: name, ExitCode: exitCode}
}

func NewRun(name string) Event { return Event{Kind: Run, ServiceName: name} }

func NewKill(name string) Event { return Event{Kind: Kill, ServiceName: name} }

func NewForceKill(name string) Event { return Event{Kind: ForceKill, ServiceName: name} }

func NewPidChanged(name string, pid int) Event {
	return Event{Kind: PidChanged, ServiceName: name, PID: pid}
}

func NewShuttingDownInitiated() Event { return Event{Kind: ShuttingDownInitiated} }

func NewExited(componentName string, success bool) Event {
	return Event{Kind: Exited, ComponentName: componentName, Success: success}
}

// message wraps an Event with the sender_id of its publisher.
type message struct {
	senderID uint64
	payload  Event
}

// Bus is a single fan-in, multi fan-out broadcast channel. A freshly
// created Bus has no subscribers; callers join via JoinBus before Run
// starts dispatching.
type Bus struct {
	input chan message

	mu       sync.Mutex
	subs     map[uint64]chan message
	nextID   uint64
	forward  bool // forward_to_sender
	joined   sync.WaitGroup
	live     int
	closeOne sync.Once
}

// New creates a bus with self-delivery enabled (forward_to_sender = true),
// the mode the supervisor relies on so the scheduler observes its own
// StatusChanged emissions (spec.md §9).
func New() *Bus {
	return &Bus{
		input:   make(chan message, 4096),
		subs:    make(map[uint64]chan message),
		forward: true,
	}
}

// NewSuppressingSelf creates a bus that does not forward a message back to
// the connector that sent it. Provided for completeness; the supervisor's
// scheduler requires the default forwarding mode.
func NewSuppressingSelf() *Bus {
	b := New()
	b.forward = false
	return b
}

// JoinBus returns a new Connector with a unique, monotonically assigned
// sender_id.
func (b *Bus) JoinBus() *Connector {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan message, 4096)
	b.subs[id] = ch
	b.live++
	b.joined.Add(1)

	return &Connector{id: id, bus: b, recv: ch}
}

// drop removes a connector's fan-out leg and closes its receive channel.
// Called once by Connector.Close. When the last connector drops, the
// shared input channel is closed so Run returns, mirroring horust's
// "channel closes when every BusConnector is dropped" termination rule.
func (b *Bus) drop(id uint64) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
		b.live--
	}
	closeInput := ok && b.live == 0
	b.mu.Unlock()

	if closeInput {
		b.closeOne.Do(func() { close(b.input) })
	}
	if ok {
		b.joined.Done()
	}
}

// publish fans a message out to every current subscriber except, when
// self-delivery is suppressed, the sender itself. A subscriber whose
// buffer is full is delivered to in its own goroutine so a slow reader
// never blocks the other subscribers (spec.md §4.1's "blocked/slow
// subscriber applies backpressure to all publishers" is honored only at
// the aggregate memory-growth level, not as head-of-line blocking across
// distinct subscribers).
func (b *Bus) publish(msg message) {
	b.mu.Lock()
	targets := make([]chan message, 0, len(b.subs))
	for id, ch := range b.subs {
		if !b.forward && id == msg.senderID {
			continue
		}
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
			go func(ch chan message, m message) { ch <- m }(ch, msg)
		}
	}
}

// Run dispatches messages from the shared input until every Connector has
// called Close, closing the bus. It blocks the calling goroutine.
func (b *Bus) Run() {
	for msg := range b.input {
		b.publish(msg)
	}
}

// Wait blocks until every joined Connector has been closed. Tests use this
// to observe Run's natural termination without a sentinel channel.
func (b *Bus) Wait() {
	b.joined.Wait()
}

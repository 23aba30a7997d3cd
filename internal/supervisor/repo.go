// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"

	"github.com/groupsio/overseer/internal/bus"
)

// Repo owns every ServiceHandler for the lifetime of the supervisor and
// wraps a single BusConnector (spec.md §3.5, §4.3).
type Repo struct {
	b        *bus.Bus
	conn     *bus.Connector
	handlers map[string]*ServiceHandler
	order    []string // insertion order, for deterministic iteration
}

// NewRepo constructs a Repo from a Bus and the list of service specs,
// joining the bus once for the Scheduler's own connector and creating one
// ServiceHandler per service.
func NewRepo(b *bus.Bus, services []*Service) *Repo {
	r := &Repo{
		b:        b,
		conn:     b.JoinBus(),
		handlers: make(map[string]*ServiceHandler, len(services)),
	}
	for _, svc := range services {
		r.handlers[svc.Name] = NewServiceHandler(svc)
		r.order = append(r.order, svc.Name)
	}
	return r
}

// GetSH returns the handler for name. It panics if the name is unknown:
// service names are fixed at startup, so a miss is an invariant violation
// (spec.md §7's "only fatal condition").
func (r *Repo) GetSH(name string) *ServiceHandler {
	h, ok := r.handlers[name]
	if !ok {
		panic(fmt.Sprintf("supervisor: unknown service %q", name))
	}
	return h
}

// Handlers returns every handler in deterministic (insertion) order.
func (r *Repo) Handlers() []*ServiceHandler {
	out := make([]*ServiceHandler, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name])
	}
	return out
}

// IsServiceRunnable reports whether sh is Initial and every dependency is
// Running or Started (spec.md §3.5).
func (r *Repo) IsServiceRunnable(sh *ServiceHandler) bool {
	if sh.Status() != bus.Initial {
		return false
	}
	for dep := range sh.Service().Dependencies {
		depHandler, ok := r.handlers[dep]
		if !ok {
			return false
		}
		st := depHandler.Status()
		if st != bus.Running && st != bus.Started {
			return false
		}
	}
	return true
}

// GetDependents returns the names of services that list name as a
// dependency (spec.md §3.5).
func (r *Repo) GetDependents(name string) []string {
	var out []string
	for _, svcName := range r.order {
		h := r.handlers[svcName]
		if _, ok := h.Service().Dependencies[name]; ok {
			out = append(out, svcName)
		}
	}
	return out
}

// GetDieIfFailed returns the names of services whose termination.die_if_failed
// set contains name (spec.md §3.5).
func (r *Repo) GetDieIfFailed(name string) []string {
	var out []string
	for _, svcName := range r.order {
		h := r.handlers[svcName]
		if _, ok := h.Service().Termination.DieIfFailed[name]; ok {
			out = append(out, svcName)
		}
	}
	return out
}

// AllHaveFinished reports whether every handler is in a terminal status.
func (r *Repo) AllHaveFinished() bool {
	for _, name := range r.order {
		if !r.handlers[name].Status().IsTerminal() {
			return false
		}
	}
	return true
}

// AnyFinishedFailed reports whether at least one handler is FinishedFailed.
func (r *Repo) AnyFinishedFailed() bool {
	for _, name := range r.order {
		if r.handlers[name].Status() == bus.FinishedFailed {
			return true
		}
	}
	return false
}

// SendEv publishes an event on the Repo's bus connector.
func (r *Repo) SendEv(ev bus.Event) { r.conn.SendEvent(ev) }

// GetEvents drains buffered events without blocking.
func (r *Repo) GetEvents() []bus.Event { return r.conn.GetEvents() }

// GetNEventsBlocking blocks for at least one event, then drains up to n.
func (r *Repo) GetNEventsBlocking(n int) []bus.Event { return r.conn.GetNEventsBlocking(n) }

// NewConnector joins the underlying bus afresh, giving a spawner or probe
// goroutine its own publishing handle without sharing the Scheduler's
// receive leg (spec.md §9: the spawner receives a clone of the bus
// connector, never a handler reference).
func (r *Repo) NewConnector() *bus.Connector { return r.b.JoinBus() }

// Close releases the Repo's own bus connector. Callers that also joined
// the bus themselves (spawner, health probes) must close their own
// connectors; the bus's Run goroutine returns once every joined connector,
// including this one, has been closed.
func (r *Repo) Close() { r.conn.Close() }

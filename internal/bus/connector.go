// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bus

import "sync"

// Connector is a subscriber/publisher handle to the bus, identified by a
// monotonically assigned sender_id (spec.md §3.4, §4.1).
type Connector struct {
	id   uint64
	bus  *Bus
	recv chan message

	closeOnce sync.Once
}

// SenderID returns the connector's sender_id, assigned at JoinBus time.
func (c *Connector) SenderID() uint64 { return c.id }

// SendEvent publishes an event onto the bus tagged with this connector's
// sender_id.
func (c *Connector) SendEvent(ev Event) {
	c.bus.input <- message{senderID: c.id, payload: ev}
}

// GetEvents drains every event currently buffered for this connector
// without blocking (horust's try_get_events).
func (c *Connector) GetEvents() []Event {
	var out []Event
	for {
		select {
		case m, ok := <-c.recv:
			if !ok {
				return out
			}
			out = append(out, m.payload)
		default:
			return out
		}
	}
}

// GetNEventsBlocking blocks until at least one event has arrived, then
// drains up to n events (horust's get_n_events_blocking). Used by the
// scheduler only when the prior tick emitted outbound events, so it is
// guaranteed not to block forever waiting on an echo that will never
// arrive.
func (c *Connector) GetNEventsBlocking(n int) []Event {
	if n <= 0 {
		return c.GetEvents()
	}

	first, ok := <-c.recv
	if !ok {
		return nil
	}
	out := []Event{first.payload}

	for len(out) < n {
		select {
		case m, ok := <-c.recv:
			if !ok {
				return out
			}
			out = append(out, m.payload)
		default:
			return out
		}
	}
	return out
}

// Close drops this connector from the bus's fan-out set. Once every
// joined Connector has been closed, the bus's Run goroutine returns.
func (c *Connector) Close() {
	c.closeOnce.Do(func() { c.bus.drop(c.id) })
}

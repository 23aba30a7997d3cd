// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"log"

	"github.com/groupsio/overseer/internal/bus"
)

// allowedPredecessors maps a target status to the set of statuses a
// service may transition from to reach it (spec.md §4.4's guarded
// transition table).
var allowedPredecessors = map[bus.ServiceStatus]map[bus.ServiceStatus]struct{}{
	bus.Initial:        set(bus.Success, bus.Failed),
	bus.Starting:       set(bus.Initial),
	bus.Started:        set(bus.Starting),
	bus.Running:        set(bus.Started),
	bus.InKilling:      set(bus.Running, bus.Started),
	bus.Success:        set(bus.Starting, bus.Running),
	bus.Failed:         set(bus.Starting, bus.Running),
	bus.FinishedFailed: set(bus.Failed, bus.InKilling),
	bus.Finished:       set(bus.Success, bus.InKilling, bus.Initial),
}

func set(statuses ...bus.ServiceStatus) map[bus.ServiceStatus]struct{} {
	m := make(map[bus.ServiceStatus]struct{}, len(statuses))
	for _, s := range statuses {
		m[s] = struct{}{}
	}
	return m
}

// TryTransition applies the guarded transition table of spec.md §4.4: move
// sh's current status to target iff current is an allowed predecessor of
// target; otherwise the transition is discarded and logged at debug. On a
// successful entry to Started, restart_attempts is cleared.
func TryTransition(sh *ServiceHandler, target bus.ServiceStatus) {
	allowed, ok := allowedPredecessors[target]
	if !ok {
		log.Printf("supervisor: %s: no guard defined for target %s, ignoring", sh.Name(), target)
		return
	}
	if _, ok := allowed[sh.Status()]; !ok {
		log.Printf("supervisor: %s: illegal transition %s -> %s, ignoring", sh.Name(), sh.Status(), target)
		return
	}

	sh.setStatus(target)
	if target == bus.Started {
		sh.resetRestartAttempts()
	}
}

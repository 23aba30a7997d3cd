// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "github.com/groupsio/overseer/internal/bus"

// failureStrategyEvents derives the events to emit for a failed service's
// dependents, according to its configured failure strategy (spec.md §4.5's
// failure-strategy function). dependents is applied to both Failed and
// FinishedFailed services per spec.md §4.5.
func failureStrategyEvents(dependents []string, svc *Service) []bus.Event {
	switch svc.Failure.Strategy {
	case FailureShutdown:
		return []bus.Event{bus.NewShuttingDownInitiated()}
	case FailureKillDependents:
		out := make([]bus.Event, 0, len(dependents)*2)
		for _, dep := range dependents {
			out = append(out,
				bus.NewStatusChanged(dep, bus.InKilling),
				bus.NewKill(dep),
			)
		}
		return out
	case FailureIgnore:
		return nil
	default:
		return nil
	}
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import "github.com/groupsio/overseer/internal/bus"

// restartStrategyEvent derives the next StatusChanged event for a service
// that has just reached Success, or reached Failed with restart attempts
// still left; a Failed service whose budget is spent goes straight to
// FinishedFailed in the Scheduler (spec.md §4.5's restart-strategy function).
func restartStrategyEvent(svc *Service, isFailed bool) bus.Event {
	switch svc.Restart.Strategy {
	case RestartNever:
		if isFailed {
			return bus.NewStatusChanged(svc.Name, bus.FinishedFailed)
		}
		return bus.NewStatusChanged(svc.Name, bus.Finished)
	case RestartOnFailure:
		if isFailed {
			return bus.NewStatusChanged(svc.Name, bus.Initial)
		}
		return bus.NewStatusChanged(svc.Name, bus.Finished)
	case RestartAlways:
		return bus.NewStatusChanged(svc.Name, bus.Initial)
	default:
		return bus.NewStatusChanged(svc.Name, bus.Finished)
	}
}

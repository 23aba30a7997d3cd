// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"time"

	"github.com/groupsio/overseer/internal/bus"
)

// tick is the scheduler's idle poll interval (spec.md §4.5).
const tick = 300 * time.Millisecond

// ExitStatus is the supervisor's process-level exit classification
// (spec.md §4.5).
type ExitStatus int

const (
	Successful ExitStatus = iota
	SomeServiceFailed
)

// SignalSource reports whether a termination signal has been latched,
// decoupling the scheduler from any particular signal-intake
// implementation (spec.md §6).
type SignalSource interface {
	IsSIGTERMReceived() bool
}

// Scheduler is the supervisor's single control loop: ingest events, apply
// them to the state machine, derive the next outbound events per handler,
// publish, sleep, repeat until every service has finished (spec.md §4.5).
type Scheduler struct {
	repo    *Repo
	signals SignalSource

	shuttingDown bool
	lastEmitted  int
}

// NewScheduler constructs a Scheduler over repo, polling signals for
// shutdown requests.
func NewScheduler(repo *Repo, signals SignalSource) *Scheduler {
	return &Scheduler{repo: repo, signals: signals}
}

// Run drives the scheduler to completion and returns the process exit
// classification. It blocks the calling goroutine until every service has
// reached a terminal status.
func (s *Scheduler) Run() ExitStatus {
	for {
		s.ingest()

		if s.signals.IsSIGTERMReceived() && !s.shuttingDown {
			s.shuttingDown = true
			s.repo.SendEv(bus.NewShuttingDownInitiated())
		}

		emitted := 0
		for _, sh := range s.repo.Handlers() {
			for _, ev := range s.nextEvents(sh) {
				s.repo.SendEv(ev)
				emitted++
			}
		}
		s.lastEmitted = emitted

		if s.repo.AllHaveFinished() {
			break
		}
	}

	s.repo.SendEv(bus.NewExited("Scheduler", !s.repo.AnyFinishedFailed()))

	if s.repo.AnyFinishedFailed() {
		return SomeServiceFailed
	}
	return Successful
}

// ingest drains inbound events: a blocking drain when the previous tick
// emitted events (a self-delivered echo is guaranteed to arrive), a
// non-blocking drain followed by a sleep otherwise, so an idle supervisor
// polls at tick rather than spinning.
func (s *Scheduler) ingest() {
	var events []bus.Event
	if s.lastEmitted > 0 {
		events = s.repo.GetNEventsBlocking(s.lastEmitted)
	} else {
		events = s.repo.GetEvents()
		time.Sleep(tick)
	}

	for _, ev := range events {
		s.applyEvent(ev)
	}
}

// applyEvent mutates the state machine per spec.md §4.4. Kill, ForceKill
// and Exited carry no state-machine side effect of their own: Kill/ForceKill
// are consumed by the spawner goroutine that owns the OS process, and
// Exited is the runtime's own shutdown-coordination signal.
func (s *Scheduler) applyEvent(ev bus.Event) {
	switch ev.Kind {
	case bus.StatusChanged:
		sh := s.repo.GetSH(ev.ServiceName)
		TryTransition(sh, ev.Status)
		switch ev.Status {
		case bus.InKilling:
			sh.ShuttingDownStarted()
		case bus.Success, bus.Failed:
			sh.clearPID()
		case bus.Finished, bus.FinishedFailed:
			sh.clearPID()
			sh.clearShuttingDownStart()
		}

	case bus.ServiceExited:
		// ServiceExited's target is assigned directly rather than run
		// through TryTransition's guard: the guard only allows Success/
		// Failed from {Starting, Running}, which would reject a routine
		// exit from Started and wedge the service there forever
		// (spec.md §4.4).
		sh := s.repo.GetSH(ev.ServiceName)
		prev := sh.Status()
		success := sh.Service().IsSuccessfulExit(ev.ExitCode)

		// InKilling only guards directly to Finished/FinishedFailed, never
		// through the Success/Failed intermediate statuses (spec.md §4.4's
		// transition table).
		var target bus.ServiceStatus
		switch {
		case prev == bus.InKilling && success:
			target = bus.Finished
		case prev == bus.InKilling:
			target = bus.FinishedFailed
		case success:
			target = bus.Success
		case prev == bus.Started || prev == bus.Initial:
			// Failed during startup: count the attempt and loop back to
			// Initial for a retry, unless the restart budget is spent
			// (spec.md §4.4's startup-failure branch).
			sh.incrementRestartAttempts()
			if sh.RestartAttemptsAreOver() {
				target = bus.Failed
			} else {
				target = bus.Initial
			}
		default:
			target = bus.Failed
		}
		sh.setStatus(target)
		sh.clearPID()
		sh.clearShuttingDownStart()

	case bus.Run:
		TryTransition(s.repo.GetSH(ev.ServiceName), bus.Starting)

	case bus.PidChanged:
		sh := s.repo.GetSH(ev.ServiceName)
		sh.setPID(ev.PID)
		if sh.IsInKilling() {
			// Kill arrived before the pid did: restart the shutdown clock
			// now that there's a process to signal (spec.md §4.4).
			sh.ShuttingDownStarted()
		}

	case bus.ShuttingDownInitiated:
		s.shuttingDown = true

	case bus.Kill, bus.ForceKill, bus.Exited:
		// consumed elsewhere; no state-machine effect.
	}
}

// nextEvents derives the outbound events for a single handler, given the
// current tick's shutdown state (spec.md §4.5's next() function). The
// runnable check always takes priority over the status switch below it.
func (s *Scheduler) nextEvents(sh *ServiceHandler) []bus.Event {
	if s.repo.IsServiceRunnable(sh) {
		if s.shuttingDown {
			return []bus.Event{bus.NewStatusChanged(sh.Name(), bus.Finished)}
		}
		return []bus.Event{bus.NewRun(sh.Name())}
	}

	switch sh.Status() {
	case bus.Initial:
		if s.shuttingDown {
			return []bus.Event{bus.NewStatusChanged(sh.Name(), bus.Finished)}
		}

	case bus.Running, bus.Started:
		if s.shuttingDown {
			return []bus.Event{
				bus.NewStatusChanged(sh.Name(), bus.InKilling),
				bus.NewKill(sh.Name()),
			}
		}

	case bus.Success:
		return []bus.Event{restartStrategyEvent(sh.Service(), false)}

	case bus.Failed:
		dependents := s.repo.GetDependents(sh.Name())

		var events []bus.Event
		if sh.RestartAttemptsAreOver() {
			events = append(events, bus.NewStatusChanged(sh.Name(), bus.FinishedFailed))
		} else {
			events = append(events, restartStrategyEvent(sh.Service(), true))
		}
		events = append(events, failureStrategyEvents(dependents, sh.Service())...)

		// Every peer that lists this service in its termination.die_if_failed
		// set is killed alongside it (spec.md §4.5).
		for _, peer := range s.repo.GetDieIfFailed(sh.Name()) {
			events = append(events,
				bus.NewStatusChanged(peer, bus.InKilling),
				bus.NewKill(peer),
			)
		}
		return events

	case bus.FinishedFailed:
		return failureStrategyEvents(s.repo.GetDependents(sh.Name()), sh.Service())

	case bus.InKilling:
		if shouldForceKill(sh) {
			return []bus.Event{bus.NewForceKill(sh.Name())}
		}
	}

	return nil
}

// shouldForceKill reports whether sh has spent longer than its configured
// termination wait in InKilling without exiting (spec.md §4.5).
func shouldForceKill(sh *ServiceHandler) bool {
	start, ok := sh.ShuttingDownStart()
	if !ok {
		return false
	}
	return time.Since(start) > sh.Service().Termination.Wait
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package process implements the supervisor's spawner external interface
// (spec.md §6): it watches the bus for Run/Kill/ForceKill and turns them
// into real OS processes, publishing PidChanged/StatusChanged/
// ServiceExited back onto its own bus connector. One goroutine is spawned
// per running process (plus two copying its stdout/stderr) and one per
// health probe (spec.md §5); no state is
// shared with the Scheduler except through the bus.
package process

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/groupsio/overseer/internal/bus"
	"github.com/groupsio/overseer/internal/health"
	"github.com/groupsio/overseer/internal/supervisor"
)

// OutputSink receives a spawned service's captured stdout/stderr lines.
// Implementations must not block; this package's LineBuffer is the
// production sink.
type OutputSink interface {
	Write(serviceName, line string)
}

type discardSink struct{}

func (discardSink) Write(string, string) {}

// Spawner owns every live *exec.Cmd for the supervisor's services.
type Spawner struct {
	repo *supervisor.Repo
	conn *bus.Connector
	sink OutputSink

	mu    sync.Mutex
	procs map[string]*runningProcess
}

type runningProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// New constructs a Spawner. Pass nil for sink to discard captured output.
func New(repo *supervisor.Repo, sink OutputSink) *Spawner {
	if sink == nil {
		sink = discardSink{}
	}
	return &Spawner{
		repo:  repo,
		conn:  repo.NewConnector(),
		sink:  sink,
		procs: make(map[string]*runningProcess),
	}
}

// Run drains Run/Kill/ForceKill events until the bus closes. Intended to
// run in its own goroutine for the lifetime of the supervisor process.
func (s *Spawner) Run() {
	for {
		events := s.conn.GetNEventsBlocking(1)
		if events == nil {
			return
		}
		for _, ev := range events {
			switch ev.Kind {
			case bus.Run:
				go s.spawn(ev.ServiceName)
			case bus.Kill:
				s.signal(ev.ServiceName, false)
			case bus.ForceKill:
				s.signal(ev.ServiceName, true)
			}
		}
	}
}

func (s *Spawner) spawn(name string) {
	svc := s.repo.GetSH(name).Service()
	if len(svc.Command) == 0 {
		log.Printf("process: %s: empty command, marking failed", name)
		s.conn.SendEvent(bus.NewServiceExited(name, -1))
		return
	}

	// Linear restart backoff: base × restart attempts so far (zero on the
	// first launch).
	if backoff := svc.Restart.Backoff * time.Duration(s.repo.GetSH(name).RestartAttempts()); backoff > 0 {
		time.Sleep(backoff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, svc.Command[0], svc.Command[1:]...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		log.Printf("process: %s: stdout pipe: %v", name, err)
		s.conn.SendEvent(bus.NewServiceExited(name, -1))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		log.Printf("process: %s: stderr pipe: %v", name, err)
		s.conn.SendEvent(bus.NewServiceExited(name, -1))
		return
	}

	if err := cmd.Start(); err != nil {
		cancel()
		log.Printf("process: %s: fork/exec failed: %v", name, err)
		s.conn.SendEvent(bus.NewServiceExited(name, -1))
		return
	}

	s.mu.Lock()
	s.procs[name] = &runningProcess{cmd: cmd, cancel: cancel}
	s.mu.Unlock()

	s.conn.SendEvent(bus.NewPidChanged(name, cmd.Process.Pid))
	s.conn.SendEvent(bus.NewStatusChanged(name, bus.Started))

	go captureLines(stdout, name, s.sink)
	go captureLines(stderr, name, s.sink)

	go s.awaitHealthy(name, svc)

	err = cmd.Wait()
	cancel()

	s.mu.Lock()
	delete(s.procs, name)
	s.mu.Unlock()

	s.conn.SendEvent(bus.NewServiceExited(name, exitCodeOf(err)))
}

// awaitHealthy runs the configured readiness probe and emits
// StatusChanged(Running) once it succeeds. With HealthNone the probe
// succeeds immediately.
func (s *Spawner) awaitHealthy(name string, svc *supervisor.Service) {
	prober := health.New(svc.Healthiness)
	if err := health.Await(context.Background(), prober, svc.Healthiness); err != nil {
		log.Printf("process: %s: health probe never succeeded: %v", name, err)
		return
	}
	s.conn.SendEvent(bus.NewStatusChanged(name, bus.Running))
}

// signal delivers the service's configured stop signal, or SIGKILL when
// force is true, to the entire process group. A vanished process (ESRCH)
// is silently ignored, matching spec.md §7's kill-to-vanished-process
// taxonomy entry.
func (s *Spawner) signal(name string, force bool) {
	s.mu.Lock()
	rp, ok := s.procs[name]
	s.mu.Unlock()
	if !ok {
		return
	}

	sig := resolveSignal(s.repo.GetSH(name).Service().Termination.Signal)
	if force {
		sig = syscall.SIGKILL
	}

	pgid := rp.cmd.Process.Pid
	if err := syscall.Kill(-pgid, sig); err != nil && err != syscall.ESRCH {
		log.Printf("process: %s: kill: %v", name, err)
	}
}

func resolveSignal(name string) syscall.Signal {
	switch name {
	case "SIGKILL":
		return syscall.SIGKILL
	case "SIGINT":
		return syscall.SIGINT
	case "SIGHUP":
		return syscall.SIGHUP
	case "SIGQUIT":
		return syscall.SIGQUIT
	default:
		return syscall.SIGTERM
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func captureLines(r io.Reader, name string, sink OutputSink) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			const maxLineLen = 1024 * 1024
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "... [truncated]"
			}
			sink.Write(name, line)
		}
		if err != nil {
			return
		}
	}
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groupsio/overseer/internal/api"
	"github.com/groupsio/overseer/internal/bus"
	"github.com/groupsio/overseer/internal/config"
	"github.com/groupsio/overseer/internal/crashes"
	"github.com/groupsio/overseer/internal/events"
	"github.com/groupsio/overseer/internal/logs"
	"github.com/groupsio/overseer/internal/process"
	"github.com/groupsio/overseer/internal/signalintake"
	"github.com/groupsio/overseer/internal/supervisor"
)

// eventForwardPoll is how often forwardBusEvents drains the supervisor
// bus onto the admin event bus. It has no bearing on the supervisor's
// own tick (spec.md §4.5) and can be shorter, since it only feeds a
// read-only history surface.
const eventForwardPoll = 50 * time.Millisecond

// App wires the supervisor core (bus, repo, scheduler), the process
// spawner, and the read-only admin API into one running process
// (SPEC_FULL.md §1).
type App struct {
	mu sync.Mutex

	configPath string
	version    string
	config     *config.Config

	repo      *supervisor.Repo
	scheduler *supervisor.Scheduler
	signals   *signalintake.Latch
	spawner   *process.Spawner
	logBuffer *process.LineBuffer

	eventBus     events.EventBus
	logManager   *logs.Manager
	crashManager *crashes.Manager
	apiServer    *api.Server

	exitStatus supervisor.ExitStatus
	done       chan struct{}
	stopOnce   sync.Once
}

// Options holds the command-line-supplied overrides for a run.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New loads configuration and constructs the supervisor core. The only
// goroutine it starts is the signal-intake latch's; call Run or
// Initialize/Start to start the rest.
func New(opts Options) (*App, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	services, err := config.ToServices(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}

	b := bus.New()
	repo := supervisor.NewRepo(b, services)
	signals := signalintake.New()

	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		config:     cfg,
		repo:       repo,
		scheduler:  supervisor.NewScheduler(repo, signals),
		signals:    signals,
		eventBus: events.NewMemoryEventBus(events.MemoryBusConfig{
			HistoryMaxEvents: cfg.Events.History.MaxEvents,
			HistoryMaxAge:    parseDuration(cfg.Events.History.MaxAge, time.Hour),
		}),
		done: make(chan struct{}),
	}

	return app, nil
}

// Initialize sets up the process spawner, log capture, crash reporting
// and the admin API on top of the supervisor core built by New.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	bufSize := 1000
	for _, svc := range cfg.Services {
		if svc.LogBufferSize > bufSize {
			bufSize = svc.LogBufferSize
		}
	}
	app.logBuffer = process.NewLineBuffer(bufSize)
	app.spawner = process.New(app.repo, app.logBuffer)

	if len(cfg.LogViewers) > 0 || len(cfg.Services) > 0 {
		app.logManager = logs.NewManager(app.eventBus, cfg.LogViewerSettings)
		if len(cfg.LogViewers) > 0 {
			if err := app.logManager.Initialize(cfg.LogViewers); err != nil {
				log.Printf("Warning: failed to initialize log viewers: %v", err)
			} else {
				log.Printf("Initialized %d log viewers", len(cfg.LogViewers))
			}
		}
		app.createServiceLogViewers(cfg)
	}

	crashDir := cfg.Crashes.ReportsDir
	if crashDir == "" {
		crashDir = ".overseer/crashes"
	}
	crashMaxAge := parseDuration(cfg.Crashes.MaxAge, 7*24*time.Hour)
	crashMaxCount := cfg.Crashes.MaxCount
	if crashMaxCount == 0 {
		crashMaxCount = 100
	}
	serviceIDFields := config.BuildServiceIDFields(cfg.Services, &cfg.LoggingDefaults)
	crashMgr, err := crashes.NewManager(
		crashes.Config{
			ReportsDir: crashDir,
			MaxAge:     crashMaxAge,
			MaxCount:   crashMaxCount,
		},
		app.logBuffer,
		app.eventBus,
		cfg.LoggingDefaults.Parser.ID,
		serviceIDFields,
		cfg.LoggingDefaults.Parser.Stack,
	)
	if err != nil {
		log.Printf("Warning: failed to initialize crash manager: %v", err)
	} else {
		app.crashManager = crashMgr
		if err := app.crashManager.Subscribe(); err != nil {
			log.Printf("Warning: failed to subscribe crash manager to events: %v", err)
		} else {
			log.Printf("Initialized crash manager: %s", crashDir)
		}
	}

	app.apiServer = api.NewServer(
		api.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			TLSCert:      cfg.Server.TLSCert,
			TLSKey:       cfg.Server.TLSKey,
			TLSTailscale: cfg.Server.TLSTailscale,
		},
		api.Dependencies{
			Repo:         app.repo,
			LogProvider:  app.logBuffer,
			EventBus:     app.eventBus,
			LogManager:   app.logManager,
			CrashManager: app.crashManager,
			Version:      app.version,
		},
	)

	return nil
}

// createServiceLogViewers creates svc:* log viewers backed by each
// service's own captured-output ring buffer, for services that have a
// parser configured (after applying logging_defaults).
func (app *App) createServiceLogViewers(cfg *config.Config) {
	for _, svcCfg := range cfg.Services {
		logging := svcCfg.Logging
		logging.ApplyDefaults(&cfg.LoggingDefaults)
		if logging.Parser.Type == "" {
			continue
		}

		viewerCfg := config.LogViewerConfig{
			Name:   "svc:" + svcCfg.Name,
			Parser: logging.Parser,
			Derive: logging.Derive,
			Layout: logging.Layout,
		}
		source := logs.NewServiceSource(svcCfg.Name, app.logBuffer)
		viewer, err := logs.NewViewerWithSource(viewerCfg, source)
		if err != nil {
			log.Printf("Warning: failed to create service log viewer for %s: %v", svcCfg.Name, err)
			continue
		}
		app.logManager.AddViewer(viewer)
	}
}

// forwardBusEvents polls the supervisor bus for traffic and republishes
// each event as an events.Event, so the admin API's history and
// websocket surfaces see service lifecycle transitions without depending
// on the supervisor's internal wire format (bus.Event). Returns when ctx
// is cancelled.
func (app *App) forwardBusEvents(ctx context.Context, conn *bus.Connector) error {
	ticker := time.NewTicker(eventForwardPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, ev := range conn.GetEvents() {
				evt := busEventToAPIEvent(ev)
				if evt == nil {
					continue
				}
				if err := app.eventBus.Publish(context.Background(), *evt); err != nil {
					log.Printf("Warning: failed to publish event: %v", err)
				}
			}
		}
	}
}

// busEventToAPIEvent maps a supervisor bus.Event onto the admin-facing
// events.Event record. Run/Kill/ForceKill are internal spawner commands
// with no admin-visible meaning and are dropped.
func busEventToAPIEvent(ev bus.Event) *events.Event {
	out := &events.Event{
		Version:   "1.0",
		Timestamp: time.Now(),
		Service:   ev.ServiceName,
		Payload:   map[string]interface{}{},
	}

	switch ev.Kind {
	case bus.StatusChanged:
		switch ev.Status {
		case bus.Started:
			out.Type = events.EventServiceStarting
		case bus.InKilling:
			out.Type = events.EventServiceKilling
		case bus.Success, bus.Failed:
			return nil // intermediate pre-restart-decision statuses, not admin-visible
		case bus.Finished:
			out.Type = events.EventServiceFinished
		case bus.FinishedFailed:
			out.Type = events.EventServiceFinished
			out.Payload["failed"] = true
		default:
			return nil
		}
	case bus.PidChanged:
		out.Type = events.EventServiceStarted
		out.Payload["pid"] = ev.PID
	case bus.ServiceExited:
		out.Type = events.EventServiceExited
		out.Payload["exit_code"] = ev.ExitCode
	case bus.Exited:
		out.Type = events.EventSupervisorShutdown
		out.Service = ev.ComponentName
		out.Payload["success"] = ev.Success
	default:
		return nil
	}

	return out
}

// Start runs the supervisor scheduler, the process spawner, the bus
// event forwarder, and the admin API server, and blocks until the
// scheduler reaches a terminal state or a shutdown signal arrives.
//
// The event forwarder and API server are supervised as one errgroup: an
// unexpected API server error cancels the forwarder, and both are torn
// down together on Shutdown. The scheduler is not part of the group
// since it (not ctx) is the supervisor's own exit authority.
func (app *App) Start(ctx context.Context) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	group, groupCtx := errgroup.WithContext(runCtx)

	go app.spawner.Run()

	eventConn := app.repo.NewConnector()
	group.Go(func() error {
		return app.forwardBusEvents(groupCtx, eventConn)
	})

	if app.logManager != nil {
		if err := app.logManager.Start(ctx); err != nil {
			log.Printf("Warning: failed to start log viewers: %v", err)
		}
	}

	group.Go(func() error {
		log.Printf("API server listening on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	schedDone := make(chan supervisor.ExitStatus, 1)
	go func() {
		schedDone <- app.scheduler.Run()
	}()

	select {
	case status := <-schedDone:
		app.exitStatus = status
	case <-ctx.Done():
	case <-app.done:
	}

	err := app.Shutdown(context.Background())
	cancelRun()
	eventConn.Close()
	if groupErr := group.Wait(); groupErr != nil {
		log.Printf("API server error: %v", groupErr)
	}
	return err
}

// Run loads config, initializes every component and blocks until the
// supervisor exits, then tears everything down.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	return app.Start(ctx)
}

// ExitStatus reports the supervisor's process-level exit classification
// after Run/Start has returned.
func (app *App) ExitStatus() supervisor.ExitStatus {
	return app.exitStatus
}

// Shutdown gracefully stops the admin API, signal intake and the event
// bus. Safe to call once, concurrently with an in-flight Start.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.logManager != nil {
		app.logManager.Stop()
	}

	if app.signals != nil {
		app.signals.Stop()
	}

	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals a running App to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/groupsio/overseer/internal/api/handlers"
	"github.com/groupsio/overseer/internal/api/middleware"
	"github.com/groupsio/overseer/internal/api/version"
	"github.com/groupsio/overseer/internal/crashes"
	"github.com/groupsio/overseer/internal/events"
	"github.com/groupsio/overseer/internal/logs"
	"github.com/groupsio/overseer/internal/supervisor"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host         string
	Port         int
	TLSCert      string // Path to TLS certificate file
	TLSKey       string // Path to TLS private key file
	TLSTailscale bool   // Fetch certificates from the local Tailscale daemon instead
}

// Dependencies holds all dependencies for API handlers. The admin API is
// read-only (SPEC_FULL.md Non-goals: no remote control plane) — it
// reports what the supervisor core is doing, it never drives it.
type Dependencies struct {
	Repo         *supervisor.Repo
	LogProvider  handlers.LogProvider // recent captured output per service
	EventBus     events.EventBus
	LogManager   *logs.Manager    // external log viewer manager (optional)
	CrashManager *crashes.Manager // crash history manager (optional)
	Version      string
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	r.HandleFunc("/healthz", healthHandler).Methods("GET")

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	serviceHandler := handlers.NewServiceHandler(deps.Repo)
	apiRouter.HandleFunc("/services", serviceHandler.List).Methods("GET")
	apiRouter.HandleFunc("/services/{name}", serviceHandler.Get).Methods("GET")

	if deps.LogProvider != nil {
		serviceLogsHandler := handlers.NewServiceLogsHandler(deps.Repo, deps.LogProvider)
		apiRouter.HandleFunc("/services/{name}/logs", serviceLogsHandler.Logs).Methods("GET")
	}

	eventHandler := handlers.NewEventHandler(deps.EventBus)
	apiRouter.HandleFunc("/events", eventHandler.History).Methods("GET")
	apiRouter.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	if deps.LogManager != nil {
		logHandler := handlers.NewLogHandler(deps.LogManager)
		apiRouter.HandleFunc("/logs", logHandler.List).Methods("GET")
		apiRouter.HandleFunc("/logs/{name}", logHandler.Get).Methods("GET")
		apiRouter.HandleFunc("/logs/{name}/entries", logHandler.GetEntries).Methods("GET")
		apiRouter.HandleFunc("/logs/{name}/history", logHandler.GetHistory).Methods("GET")
		apiRouter.HandleFunc("/logs/{name}/files", logHandler.ListRotatedFiles).Methods("GET")
		apiRouter.HandleFunc("/logs/{name}/stream", logHandler.Stream).Methods("GET")
		apiRouter.HandleFunc("/logs/{name}/stream/sse", logHandler.StreamSSE).Methods("GET")
	}

	if deps.CrashManager != nil {
		crashHandler := handlers.NewCrashesHandler(deps.CrashManager)
		apiRouter.HandleFunc("/crashes", crashHandler.List).Methods("GET")
		apiRouter.HandleFunc("/crashes", crashHandler.Clear).Methods("DELETE")
		apiRouter.HandleFunc("/crashes/newest", crashHandler.Newest).Methods("GET")
		apiRouter.HandleFunc("/crashes/{id}", crashHandler.Get).Methods("GET")
		apiRouter.HandleFunc("/crashes/{id}", crashHandler.Delete).Methods("DELETE")
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok"}`)
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server.
// With tls_tailscale set, certificates come from the local Tailscale
// daemon. Otherwise, if tls_cert and tls_key are both set, uses HTTPS with
// those files; a missing file, or only one of the two set, is an error.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	if s.cfg.TLSTailscale {
		s.server.TLSConfig = tailscaleTLSConfig()
		log.Printf("API server listening on https://%s (Tailscale TLS)", addr)
		return s.server.ListenAndServeTLS("", "")
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}

// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package health implements the pluggable readiness probes a spawned
// service may declare under its healthiness{} block (SPEC_FULL.md §4.6):
// tcp, http, exec, or none. A probe decides when a Started process has
// become Running.
package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"time"

	"github.com/groupsio/overseer/internal/supervisor"
)

// Prober reports whether a service is ready. Probe returns nil once the
// service is considered Running.
type Prober interface {
	Probe(ctx context.Context) error
}

// New builds the Prober configured by h. HealthNone returns a prober that
// always succeeds immediately, so services with no healthiness block
// transition to Running as soon as the process starts.
func New(h supervisor.Healthiness) Prober {
	switch h.Kind {
	case supervisor.HealthTCP:
		return &tcpProbe{address: h.Address}
	case supervisor.HealthHTTP:
		return &httpProbe{url: h.URL, client: &http.Client{Timeout: 5 * time.Second}}
	case supervisor.HealthExec:
		return &execProbe{command: h.Command}
	default:
		return noneProbe{}
	}
}

// Await polls p at h.Interval until it succeeds, ctx is cancelled, or
// h.Retries is exhausted (0 means unlimited retries, bounded only by ctx).
func Await(ctx context.Context, p Prober, h supervisor.Healthiness) error {
	interval := h.Interval
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	attempt := 0
	for {
		if err := p.Probe(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		attempt++
		if h.Retries > 0 && attempt >= h.Retries {
			return fmt.Errorf("health probe did not succeed after %d attempts: %w", attempt, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

type noneProbe struct{}

func (noneProbe) Probe(context.Context) error { return nil }

type tcpProbe struct{ address string }

func (t *tcpProbe) Probe(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return fmt.Errorf("tcp probe %s: %w", t.address, err)
	}
	return conn.Close()
}

type httpProbe struct {
	url    string
	client *http.Client
}

func (h *httpProbe) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("http probe %s: %w", h.url, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http probe %s: %w", h.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http probe %s: status %d", h.url, resp.StatusCode)
	}
	return nil
}

type execProbe struct{ command []string }

func (e *execProbe) Probe(ctx context.Context) error {
	if len(e.command) == 0 {
		return fmt.Errorf("exec probe: empty command")
	}
	cmd := exec.CommandContext(ctx, e.command[0], e.command[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exec probe %v: %w", e.command, err)
	}
	return nil
}

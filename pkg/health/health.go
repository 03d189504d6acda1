// Package health runs named dependency probes and serves liveness and
// readiness endpoints. Probes run concurrently, each under its own deadline,
// and the overall status is the worst component status.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultCheckTimeout bounds a single probe when none is configured.
const DefaultCheckTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type Checker struct {
	mu           sync.RWMutex
	checks       map[string]Check
	last         map[string]Status
	checkTimeout time.Duration
	started      time.Time
	logger       *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:       make(map[string]Check),
		last:         make(map[string]Status),
		checkTimeout: DefaultCheckTimeout,
		started:      time.Now(),
		logger:       slog.Default().With("component", "health"),
	}
}

// SetCheckTimeout changes the per-probe deadline. Non-positive values are
// ignored.
func (c *Checker) SetCheckTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.checkTimeout = d
	c.mu.Unlock()
}

// Register adds or replaces a named probe.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every probe and aggregates the results. A probe that misses
// its deadline is reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	slices.Sort(names)
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	timeout := c.checkTimeout
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			results[i] = probe(ctx, checks[i], timeout)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, name := range names {
		comp := results[i]
		report.Components[name] = comp
		switch {
		case comp.Status == StatusDown:
			report.Status = StatusDown
		case comp.Status == StatusDegraded && report.Status == StatusUp:
			report.Status = StatusDegraded
		}
	}
	c.recordTransitions(report.Components)
	return report
}

func probe(ctx context.Context, check Check, timeout time.Duration) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan ComponentHealth, 1)
	go func() { done <- check(ctx) }()

	var result ComponentHealth
	select {
	case result = <-done:
	case <-ctx.Done():
		result = ComponentHealth{Status: StatusDown, Message: "check timed out"}
	}
	result.Latency = time.Since(start).Round(time.Millisecond).String()
	return result
}

func (c *Checker) recordTransitions(components map[string]ComponentHealth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, comp := range components {
		prev, seen := c.last[name]
		c.last[name] = comp.Status
		if !seen && comp.Status == StatusUp || prev == comp.Status {
			continue
		}
		if comp.Status == StatusUp {
			c.logger.Info("component recovered", "name", name)
		} else {
			c.logger.Warn("component unhealthy", "name", name, "status", comp.Status, "message", comp.Message)
		}
	}
}

// LiveHandler answers liveness probes. It never runs the checks.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler answers readiness probes with the full Report. Anything but
// StatusUp is 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status != StatusUp {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package health runs registered dependency checks concurrently and serves
// liveness and readiness endpoints. Readiness stays down until the owner
// calls MarkReady, which the server does once the index is built.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/resilience"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const checkTimeout = 2 * time.Second

// Check tests one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency string         `json:"latency,omitempty"`
}

type Report struct {
	Status     Status                     `json:"status"`
	Ready      bool                       `json:"ready"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
	ready  atomic.Bool
	logger *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
		logger: slog.Default().With("component", "health"),
	}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// MarkReady flips readiness on. It is called once, after startup work.
func (c *Checker) MarkReady() {
	c.ready.Store(true)
	c.logger.Info("service ready")
}

func (c *Checker) Ready() bool {
	return c.ready.Load()
}

// Run executes every check concurrently, each bounded by a short timeout.
// The overall status is the worst component status; a service that is not
// ready yet is reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()
	sort.Strings(names)

	report := Report{
		Status:     StatusUp,
		Ready:      c.Ready(),
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			start := time.Now()
			out := make(chan ComponentHealth, 1)
			err := resilience.WithTimeout(ctx, checkTimeout, "health-check", func(ctx context.Context) error {
				out <- check(ctx)
				return nil
			})
			var result ComponentHealth
			if err != nil {
				result = ComponentHealth{Status: StatusDown, Message: err.Error()}
			} else {
				result = <-out
			}
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			results[i] = result
		}(i, checks[name])
	}
	wg.Wait()

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
	if !report.Ready {
		report.Status = StatusDown
	}
	return report
}

// LiveHandler answers 200 while the process is running.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 200 only when the service is ready and no component
// is down. Degraded optional dependencies still count as ready.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
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

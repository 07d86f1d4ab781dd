// Package health aggregates dependency health for orchestration probes.
//
// Registered checks run in parallel on every probe, each bounded by its
// own timeout; results are never cached between probes. Liveness is a
// separate, dependency-free process-alive signal.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fabrichq/fabric/internal/infrastructure/logging"
	"github.com/fabrichq/fabric/internal/infrastructure/monitoring"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Result is the outcome of a single check.
type Result struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Status is the aggregate verdict. Overall health requires every check
// to pass.
type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]Result `json:"checks"`
}

// Checker runs a registered set of named checks.
type Checker struct {
	timeout time.Duration
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a checker; timeout bounds each individual check.
func NewChecker(timeout time.Duration, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{
		timeout: timeout,
		logger:  logger,
		checks:  make(map[string]CheckFunc),
	}
}

// WithMetrics attaches a metrics collector.
func (c *Checker) WithMetrics(m *monitoring.Metrics) *Checker {
	c.metrics = m
	return c
}

// Register adds a named check. Registering an existing name replaces it.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Unregister removes a check.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Liveness reports that the process is alive. It deliberately checks no
// dependencies and is safe to call at high frequency.
func (c *Checker) Liveness() bool {
	return true
}

// Check runs every registered check in parallel and aggregates the
// verdict. A check exceeding the timeout is reported unhealthy with an
// explicit timeout error instead of hanging the probe.
func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]Result, len(checks))
	)

	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			result := c.run(ctx, name, fn)

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	status := Status{Healthy: true, Checks: results}
	for _, result := range results {
		if !result.Healthy {
			status.Healthy = false
			break
		}
	}
	return status
}

// run executes one check under its timeout. The check runs in its own
// goroutine so a probe that ignores its context cannot block the
// aggregate; it is abandoned once the deadline passes.
func (c *Checker) run(ctx context.Context, name string, fn CheckFunc) Result {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- fn(cctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = fmt.Errorf("timeout after %s", c.timeout)
		}
	}

	result := Result{
		Name:    name,
		Healthy: err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	if c.metrics != nil {
		c.metrics.RecordHealthCheck(name, result.Latency, result.Healthy)
	}
	return result
}

// Package client is the resilient call facade: it resolves a service
// name to an endpoint, gates the call through a per-service circuit
// breaker, and re-attempts classified-transient failures through the
// shared retry executor.
//
// Composition order is breaker outside, retry inside:
//
//	breaker.Execute(func() { return retryer.Do(invoke) })
//
// Each top-level Call counts as one breaker request. A breaker that
// opens mid-flight does not abort an in-progress bounded retry loop, but
// the next Call fails fast. A call never fails over to a second endpoint
// within the same invocation; rotation happens on the next Call.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fabrichq/fabric/internal/clock"
	"github.com/fabrichq/fabric/internal/infrastructure/logging"
	"github.com/fabrichq/fabric/internal/infrastructure/monitoring"
	"github.com/fabrichq/fabric/internal/infrastructure/resilience"
	"github.com/fabrichq/fabric/internal/registry"
)

// Request is a transport-neutral outgoing request.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Response is a transport-neutral downstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Invoker performs the actual network invocation against one endpoint.
type Invoker interface {
	Invoke(ctx context.Context, endpoint registry.Endpoint, req *Request) (*Response, error)
}

// Client composes the registry, breaker, and retry layers for callers.
type Client struct {
	resolver *registry.Client
	invoker  Invoker
	retryer  *resilience.Retryer

	picker      Picker
	retryable   func(error) bool
	breakerTmpl resilience.Settings
	callTimeout time.Duration
	limiter     *rate.Limiter
	clock       clock.Clock
	logger      *logging.Logger
	metrics     *monitoring.Metrics

	// Lazily populated per-service breakers. Keyed by service name, not
	// endpoint: downstream health is a property of the service, so
	// endpoint rotation must not reset breaker state.
	mu       sync.RWMutex
	breakers map[string]*resilience.Breaker
}

// New creates a resilient client.
func New(resolver *registry.Client, invoker Invoker, retryer *resilience.Retryer, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		resolver:  resolver,
		invoker:   invoker,
		retryer:   retryer,
		picker:    NewRoundRobin(),
		retryable: DefaultRetryable,
		clock:     clock.New(),
		logger:    logger,
		breakers:  make(map[string]*resilience.Breaker),
	}
}

// WithPicker overrides the endpoint selection strategy.
func (c *Client) WithPicker(p Picker) *Client {
	c.picker = p
	return c
}

// WithRetryable overrides the retry classification predicate.
func (c *Client) WithRetryable(fn func(error) bool) *Client {
	c.retryable = fn
	return c
}

// WithBreakerSettings sets the template used for lazily created
// per-service breakers. Name, Clock, and OnStateChange are managed by
// the client.
func (c *Client) WithBreakerSettings(settings resilience.Settings) *Client {
	c.breakerTmpl = settings
	return c
}

// WithCallTimeout sets the overall deadline applied to calls whose
// context carries none. The deadline spans the whole retry loop.
func (c *Client) WithCallTimeout(d time.Duration) *Client {
	c.callTimeout = d
	return c
}

// WithRateLimit caps outgoing calls per second across all services.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithClock overrides the clock, used by tests.
func (c *Client) WithClock(clk clock.Clock) *Client {
	c.clock = clk
	return c
}

// WithMetrics attaches a metrics collector.
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// Call resolves the service and performs one invocation through the
// breaker and retry layers. The caller sees exactly one of: a response,
// a breaker-open error, the untouched non-retryable cause, or an
// exhaustion error wrapping the last cause.
func (c *Client) Call(ctx context.Context, service string, req *Request) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoints, err := c.resolver.Resolve(ctx, service)
	if err != nil {
		return nil, err
	}
	endpoint := c.picker.Pick(service, endpoints)

	callID := uuid.NewString()
	start := time.Now()
	attempts := 0

	var resp *Response
	_, err = c.breaker(service).Execute(func() (interface{}, error) {
		return nil, c.retryer.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts > 1 && c.metrics != nil {
				c.metrics.RecordRetry(service)
			}
			r, invokeErr := c.invoker.Invoke(ctx, endpoint, req)
			if invokeErr != nil {
				return invokeErr
			}
			resp = r
			return nil
		}, c.retryable)
	})

	elapsed := time.Since(start)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordCall(service, Classify(err).String(), elapsed)
		}
		c.logger.Debug("call failed",
			zap.String("call_id", callID),
			zap.String("service", service),
			zap.String("endpoint", endpoint.Addr()),
			zap.Int("attempts", attempts),
			zap.String("kind", Classify(err).String()),
			zap.Error(err),
		)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("service %s: %w", service, err)
		}
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordCall(service, "success", elapsed)
	}
	c.logger.Debug("call succeeded",
		zap.String("call_id", callID),
		zap.String("service", service),
		zap.String("endpoint", endpoint.Addr()),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

// BreakerState returns the breaker phase for a service, and whether a
// breaker exists for it yet.
func (c *Client) BreakerState(service string) (resilience.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	breaker, ok := c.breakers[service]
	if !ok {
		return resilience.StateClosed, false
	}
	return breaker.State(), true
}

// BreakerSnapshot describes one breaker for introspection endpoints.
type BreakerSnapshot struct {
	Service  string            `json:"service"`
	State    string            `json:"state"`
	Counts   resilience.Counts `json:"counts"`
	OpenedAt time.Time         `json:"opened_at,omitempty"`
}

// Breakers returns a snapshot of all live breakers.
func (c *Client) Breakers() []BreakerSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(c.breakers))
	for service, breaker := range c.breakers {
		out = append(out, BreakerSnapshot{
			Service:  service,
			State:    breaker.State().String(),
			Counts:   breaker.Counts(),
			OpenedAt: breaker.OpenedAt(),
		})
	}
	return out
}

// breaker returns the service's breaker, creating it on first use.
// Read-locked fast path, double-checked under the write lock.
func (c *Client) breaker(service string) *resilience.Breaker {
	c.mu.RLock()
	breaker, ok := c.breakers[service]
	c.mu.RUnlock()
	if ok {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if breaker, ok := c.breakers[service]; ok {
		return breaker
	}

	settings := c.breakerTmpl
	settings.Clock = c.clock
	userCallback := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to resilience.State) {
		c.logger.Info("breaker state change",
			zap.String("service", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if c.metrics != nil {
			c.metrics.RecordBreakerTransition(name, from.String(), to.String())
		}
		if userCallback != nil {
			userCallback(name, from, to)
		}
	}

	breaker = resilience.New(service, settings)
	c.breakers[service] = breaker
	return breaker
}

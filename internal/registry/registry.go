// Package registry resolves logical service names to network endpoints.
//
// Resolution goes through a TTL cache backed by an external registry
// (etcd in production). When the backend is unreachable but a cached
// entry exists, the stale entry is served instead of an error, trading
// freshness for availability. A background task refreshes all
// known names so steady-state calls rarely touch the network
// synchronously.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fabrichq/fabric/internal/clock"
	"github.com/fabrichq/fabric/internal/infrastructure/logging"
	"github.com/fabrichq/fabric/internal/infrastructure/monitoring"
)

// ErrNoEndpoints is returned when a lookup succeeds but yields nothing.
var ErrNoEndpoints = errors.New("no endpoints registered")

// Endpoint is one network address of a service instance. Endpoint slices
// are replaced wholesale on refresh, never mutated in place.
type Endpoint struct {
	Address         string    `json:"address"`
	Port            int       `json:"port"`
	LastSeenHealthy time.Time `json:"last_seen_healthy,omitempty"`
}

// Addr returns the host:port form of the endpoint.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Backend is the external registry collaborator.
type Backend interface {
	LookupService(ctx context.Context, name string) ([]Endpoint, error)
}

// LookupError reports a resolution failure with no cached fallback.
type LookupError struct {
	Service string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("registry lookup for %q failed: %v", e.Service, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Config holds cache and refresh tuning.
type Config struct {
	// TTL is how long a cached entry is considered fresh.
	TTL time.Duration
	// RefreshInterval is the period of the background refresh task.
	RefreshInterval time.Duration
	// LookupTimeout bounds each background backend lookup.
	LookupTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:             30 * time.Second,
		RefreshInterval: 10 * time.Second,
		LookupTimeout:   3 * time.Second,
	}
}

// entry is a cached descriptor. Its endpoint slice is never empty; an
// empty lookup result is treated as a failed lookup instead of cached.
type entry struct {
	endpoints []Endpoint
	cachedAt  time.Time
	ttl       time.Duration
}

// Client is the caching registry client.
type Client struct {
	backend Backend
	cfg     Config
	clock   clock.Clock
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.RWMutex
	cache map[string]*entry

	stopOnce sync.Once
	started  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewClient creates a registry client. Call Start to begin background
// refresh and Close to stop it.
func NewClient(backend Backend, cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		backend: backend,
		cfg:     cfg,
		clock:   clock.New(),
		logger:  logger,
		cache:   make(map[string]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
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

// Resolve returns the endpoints for a service name.
//
// A fresh cache entry is served without touching the backend. On a miss
// or expiry the backend is queried and the cache entry replaced
// atomically. If the backend fails while any entry exists, even an
// expired one, the stale entry is served and the degradation logged;
// only a failure with no cached entry surfaces a *LookupError.
func (c *Client) Resolve(ctx context.Context, name string) ([]Endpoint, error) {
	if name == "" {
		return nil, &LookupError{Service: name, Err: errors.New("empty service name")}
	}

	c.mu.RLock()
	cached, ok := c.cache[name]
	if ok && c.clock.Since(cached.cachedAt) < cached.ttl {
		endpoints := copyEndpoints(cached.endpoints)
		c.mu.RUnlock()
		c.record(name, "hit")
		return endpoints, nil
	}
	c.mu.RUnlock()

	endpoints, err := c.lookup(ctx, name)
	if err == nil {
		c.record(name, "refresh")
		return copyEndpoints(endpoints), nil
	}

	// Stale fallback: keep serving the last known endpoints.
	c.mu.RLock()
	cached, ok = c.cache[name]
	c.mu.RUnlock()
	if ok {
		c.record(name, "stale")
		c.logger.Warn("registry degraded, serving stale endpoints",
			zap.String("service", name),
			zap.Duration("age", c.clock.Since(cached.cachedAt)),
			zap.Error(err),
		)
		return copyEndpoints(cached.endpoints), nil
	}

	c.record(name, "error")
	return nil, &LookupError{Service: name, Err: err}
}

// lookup queries the backend and replaces the cache entry on success.
func (c *Client) lookup(ctx context.Context, name string) ([]Endpoint, error) {
	endpoints, err := c.backend.LookupService(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	c.mu.Lock()
	c.cache[name] = &entry{
		endpoints: endpoints,
		cachedAt:  c.clock.Now(),
		ttl:       c.cfg.TTL,
	}
	c.mu.Unlock()

	return endpoints, nil
}

// Evict drops the cache entry for a service.
func (c *Client) Evict(name string) {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
}

// Services returns the currently cached service names.
func (c *Client) Services() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.cache))
	for name := range c.cache {
		names = append(names, name)
	}
	return names
}

// Start launches the background refresh task. It re-resolves all known
// names every RefreshInterval; failures are swallowed and the stale cache
// retained, surfaced only through metrics and debug logs.
func (c *Client) Start() {
	c.started = true
	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.stop:
				return
			case <-c.clock.After(c.cfg.RefreshInterval):
				c.refreshAll()
			}
		}
	}()
}

// Close stops the background refresh task and waits for it to exit.
// Safe to call multiple times.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
		if c.started {
			<-c.done
		}
	})
}

func (c *Client) refreshAll() {
	for _, name := range c.Services() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LookupTimeout)
		_, err := c.lookup(ctx, name)
		cancel()
		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordRefreshFailure()
			}
			c.logger.Debug("background refresh failed, stale cache retained",
				zap.String("service", name),
				zap.Error(err),
			)
		}
	}
}

func (c *Client) record(name, result string) {
	if c.metrics != nil {
		c.metrics.RecordLookup(name, result)
	}
}

func copyEndpoints(endpoints []Endpoint) []Endpoint {
	out := make([]Endpoint, len(endpoints))
	copy(out, endpoints)
	return out
}

// Package http exposes the fabric's ops API: health probes, breaker
// introspection, and an HTTP proxy through the resilient client.
package http

import (
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/fabrichq/fabric/internal/client"
	"github.com/fabrichq/fabric/internal/health"
	"github.com/fabrichq/fabric/internal/infrastructure/logging"
	"github.com/fabrichq/fabric/internal/registry"
)

// Handlers bundles the dependencies the ops API serves from.
type Handlers struct {
	fabric   *client.Client
	checker  *health.Checker
	resolver *registry.Client
	logger   *logging.Logger
}

// NewHandlers creates the ops API handlers.
func NewHandlers(fabric *client.Client, checker *health.Checker, resolver *registry.Client, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		fabric:   fabric,
		checker:  checker,
		resolver: resolver,
		logger:   logger,
	}
}

// Root reports service identity.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "fabric",
		"status":  "running",
	})
}

// Liveness answers whether the process is alive. It never consults
// dependencies, so a wedged downstream cannot get the process killed.
func (h *Handlers) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": h.checker.Liveness()})
}

// Readiness runs every registered check and reports per-dependency
// detail. Unhealthy dependencies yield 503 so load balancers stop
// routing here.
func (h *Handlers) Readiness(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Breakers lists every live circuit breaker and its counts.
func (h *Handlers) Breakers(c *gin.Context) {
	snapshots := h.fabric.Breakers()
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Service < snapshots[j].Service
	})
	c.JSON(http.StatusOK, gin.H{"breakers": snapshots})
}

// Services lists the services currently held in the registry cache.
func (h *Handlers) Services(c *gin.Context) {
	names := h.resolver.Services()
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"services": names})
}

// Proxy forwards the request body and method to the named service
// through the resilient client, surfacing the classified failure as an
// HTTP status.
func (h *Handlers) Proxy(c *gin.Context) {
	service := c.Param("service")
	path := c.Param("path")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	resp, err := h.fabric.Call(c.Request.Context(), service, &client.Request{
		Method: c.Request.Method,
		Path:   path,
		Header: c.Request.Header,
		Body:   body,
	})
	if err != nil {
		c.JSON(proxyErrorStatus(err), gin.H{
			"error": err.Error(),
			"kind":  client.Classify(err).String(),
		})
		return
	}

	for key, values := range resp.Header {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Data(resp.Status, c.Writer.Header().Get("Content-Type"), resp.Body)
}

func proxyErrorStatus(err error) int {
	var lookupErr *registry.LookupError
	if errors.As(err, &lookupErr) {
		return http.StatusBadGateway
	}

	switch client.Classify(err) {
	case client.KindBreakerOpen:
		return http.StatusServiceUnavailable
	case client.KindClient:
		return http.StatusBadRequest
	case client.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

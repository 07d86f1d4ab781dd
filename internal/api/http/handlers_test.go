package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrichq/fabric/internal/client"
	"github.com/fabrichq/fabric/internal/health"
	"github.com/fabrichq/fabric/internal/infrastructure/logging"
	"github.com/fabrichq/fabric/internal/infrastructure/resilience"
	"github.com/fabrichq/fabric/internal/registry"
)

type echoInvoker struct {
	err error
}

func (i *echoInvoker) Invoke(ctx context.Context, ep registry.Endpoint, req *client.Request) (*client.Response, error) {
	if i.err != nil {
		return nil, i.err
	}
	return &client.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"echo":"` + req.Path + `"}`),
	}, nil
}

type fixedBackend map[string][]registry.Endpoint

func (b fixedBackend) LookupService(ctx context.Context, name string) ([]registry.Endpoint, error) {
	return b[name], nil
}

func newTestRouter(t *testing.T, invoker client.Invoker) (*gin.Engine, *Handlers, *health.Checker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNop()
	resolver := registry.NewClient(
		fixedBackend{"orders": {{Address: "10.0.0.1", Port: 8080}}},
		registry.DefaultConfig(),
		logger,
	)
	retryer, err := resilience.NewRetryer(resilience.DefaultPolicy(), nil)
	require.NoError(t, err)
	fabric := client.New(resolver, invoker, retryer, logger)
	checker := health.NewChecker(time.Second, logger)

	h := NewHandlers(fabric, checker, resolver, logger)
	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health/live", h.Liveness)
	router.GET("/health/ready", h.Readiness)
	router.GET("/breakers", h.Breakers)
	router.GET("/services", h.Services)
	router.Any("/proxy/:service/*path", h.Proxy)
	return router, h, checker
}

func perform(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	router.ServeHTTP(w, req)
	return w
}

func TestLiveness(t *testing.T) {
	router, _, checker := newTestRouter(t, &echoInvoker{})
	checker.Register("down", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})

	w := perform(router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"alive":true}`, w.Body.String())
}

func TestReadinessHealthy(t *testing.T) {
	router, _, checker := newTestRouter(t, &echoInvoker{})
	checker.Register("db", func(ctx context.Context) error { return nil })

	w := perform(router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy":true`)
}

func TestReadinessUnhealthy(t *testing.T) {
	router, _, checker := newTestRouter(t, &echoInvoker{})
	checker.Register("db", func(ctx context.Context) error { return nil })
	checker.Register("cache", func(ctx context.Context) error {
		return assert.AnError
	})

	w := perform(router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"cache"`)
}

func TestProxyForwards(t *testing.T) {
	router, _, _ := newTestRouter(t, &echoInvoker{})

	w := perform(router, http.MethodGet, "/proxy/orders/v1/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"echo":"/v1/orders"}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestProxyUnknownService(t *testing.T) {
	router, _, _ := newTestRouter(t, &echoInvoker{})

	w := perform(router, http.MethodGet, "/proxy/nowhere/v1/x", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProxyClientErrorStatus(t *testing.T) {
	invoker := &echoInvoker{err: &client.StatusError{Code: http.StatusNotFound, Status: "404 Not Found"}}
	router, _, _ := newTestRouter(t, invoker)

	w := perform(router, http.MethodGet, "/proxy/orders/v1/missing", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"client"`)
}

func TestBreakersListing(t *testing.T) {
	router, _, _ := newTestRouter(t, &echoInvoker{})

	w := perform(router, http.MethodGet, "/breakers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"breakers":[]}`, w.Body.String())

	perform(router, http.MethodGet, "/proxy/orders/v1/orders", "")
	w = perform(router, http.MethodGet, "/breakers", "")
	assert.Contains(t, w.Body.String(), `"service":"orders"`)
	assert.Contains(t, w.Body.String(), `"state":"closed"`)
}

func TestServicesListing(t *testing.T) {
	router, _, _ := newTestRouter(t, &echoInvoker{})

	perform(router, http.MethodGet, "/proxy/orders/v1/orders", "")
	w := perform(router, http.MethodGet, "/services", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"services":["orders"]}`, w.Body.String())
}

func TestRoot(t *testing.T) {
	router, _, _ := newTestRouter(t, &echoInvoker{})

	w := perform(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fabric")
}

// Package server wires the fabric together: discovery, resilience
// layers, health checks, and the ops HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/fabrichq/fabric/internal/api/http"
	"github.com/fabrichq/fabric/internal/api/middleware"
	"github.com/fabrichq/fabric/internal/client"
	"github.com/fabrichq/fabric/internal/health"
	"github.com/fabrichq/fabric/internal/infrastructure/config"
	"github.com/fabrichq/fabric/internal/infrastructure/logging"
	"github.com/fabrichq/fabric/internal/infrastructure/monitoring"
	"github.com/fabrichq/fabric/internal/infrastructure/resilience"
	"github.com/fabrichq/fabric/internal/registry"
)

// Server bundles the fabric's long-lived components and the ops API.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	backend    *registry.EtcdBackend
	resolver   *registry.Client
	fabric     *client.Client
	checker    *health.Checker
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// New builds a server from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("initializing fabric",
		zap.String("port", cfg.Server.Port),
		zap.Strings("registry_endpoints", cfg.Registry.Endpoints),
	)

	metrics := monitoring.NewMetrics()

	backend, err := registry.NewEtcdBackend(cfg.Registry.Endpoints, cfg.Registry.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect registry backend: %w", err)
	}

	resolver := registry.NewClient(backend, registry.Config{
		TTL:             cfg.Registry.CacheTTL,
		RefreshInterval: cfg.Registry.RefreshInterval,
		LookupTimeout:   cfg.Registry.LookupTimeout,
	}, logger).WithMetrics(metrics)
	resolver.Start()

	retryer, err := resilience.NewRetryer(resilience.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialDelay:   cfg.Retry.InitialDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		Multiplier:     cfg.Retry.Multiplier,
		JitterFraction: cfg.Retry.JitterFraction,
	}, nil)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("build retryer: %w", err)
	}

	fabric := client.New(resolver, client.NewHTTPInvoker(cfg.Client.AttemptTimeout), retryer, logger).
		WithBreakerSettings(resilience.Settings{
			MaxRequests: cfg.Breaker.HalfOpenRequests,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.OpenTimeout,
			ReadyToTrip: resilience.Trip(cfg.Breaker.FailureThreshold, cfg.Breaker.FailureRate, cfg.Breaker.MinRequests),
		}).
		WithCallTimeout(cfg.Client.CallTimeout).
		WithMetrics(metrics)
	if cfg.RateLimit.Enabled {
		fabric = fabric.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	checker := health.NewChecker(cfg.Health.CheckTimeout, logger).WithMetrics(metrics)
	checker.Register("registry-backend", func(ctx context.Context) error {
		_, err := backend.LookupService(ctx, "healthz")
		return err
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	handlers := apihttp.NewHandlers(fabric, checker, resolver, logger)

	router.GET("/", handlers.Root)
	router.GET("/health/live", handlers.Liveness)
	router.GET("/health/ready", handlers.Readiness)
	router.GET("/breakers", handlers.Breakers)
	router.GET("/services", handlers.Services)
	router.Any("/proxy/:service/*path", handlers.Proxy)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		router:     router,
		backend:    backend,
		resolver:   resolver,
		fabric:     fabric,
		checker:    checker,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
	}, nil
}

// Fabric exposes the resilient client, letting embedding programs call
// downstream services directly instead of going through the proxy route.
func (s *Server) Fabric() *client.Client {
	return s.fabric
}

// Checker exposes the health checker for registering extra dependency
// checks before Run.
func (s *Server) Checker() *health.Checker {
	return s.checker
}

// Run serves the ops API until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases long-lived
// resources in dependency order.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown", zap.Error(err))
	}
	s.resolver.Close()
	if err := s.backend.Close(); err != nil {
		s.logger.Error("close registry backend", zap.Error(err))
	}
	s.logger.Sync()
	return nil
}

// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reviewsift/review-sift/internal/bus"
	"github.com/reviewsift/review-sift/internal/classifier"
	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/dataset"
	"github.com/reviewsift/review-sift/internal/metrics"
	"github.com/reviewsift/review-sift/internal/pkg/logger"
	"github.com/reviewsift/review-sift/internal/pkg/middleware"
	"github.com/reviewsift/review-sift/internal/settings"
	"github.com/reviewsift/review-sift/internal/web"
)

// Server is the main HTTP server that wires all services together.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	version string

	httpServer *http.Server

	// Services
	metricsSvc  *metrics.Metrics
	eventBus    bus.Bus
	engine      *classifier.Engine
	cache       *classifier.PredictionCache
	labeler     *dataset.Labeler
	datasets    *dataset.Store
	settingsSvc *settings.Service
	rateLimiter *middleware.RateLimiter
	webHandler  *web.Handler

	inFlight int64
	ready    atomic.Bool

	mu      sync.Mutex
	started bool
}

// ShutdownTimeout bounds graceful shutdown including in-flight draining.
const ShutdownTimeout = 30 * time.Second

// New creates a server with all dependencies built from the application
// config. The model is loaded here, so New fails fast on a broken model
// directory.
func New(appCfg *config.Config, version string, log *logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     appCfg,
		log:     log.WithComponent("server"),
		version: version,
	}

	// Metrics first: the bus and cache wiring need them.
	if appCfg.Metrics.RedisURL != "" {
		s.metricsSvc = metrics.NewWithRedis(appCfg.Metrics.RedisURL)
	} else {
		s.metricsSvc = metrics.New()
	}

	innerBus, err := bus.NewBus(appCfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	s.eventBus = bus.NewInstrumentedBus(innerBus, s.metricsSvc)

	subscriber := metrics.NewEventSubscriber(s.metricsSvc, s.eventBus)
	if err := subscriber.SubscribeAll(context.Background()); err != nil {
		log.Warn("failed to subscribe metrics to events", "error", err)
	}

	engine, err := classifier.NewEngine(appCfg.Model, log)
	if err != nil {
		s.eventBus.Close()
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	s.engine = engine

	if appCfg.Cache.Enabled {
		s.cache = classifier.NewPredictionCache(appCfg.Cache.Size, time.Duration(appCfg.Cache.TTL)*time.Second)
		s.cache.SetMetrics(s.metricsSvc)
		engine.SetCache(s.cache)
	}

	s.labeler = dataset.NewLabeler(engine, log)

	datasets, err := dataset.NewStore(appCfg.Datasets.Dir, log)
	if err != nil {
		engine.Close()
		s.eventBus.Close()
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	s.datasets = datasets

	settingsSvc, err := settings.NewService(settings.ServiceConfig{
		StoragePath:  appCfg.Datasets.Dir,
		AuditEnabled: true,
		Defaults:     settingsDefaults(appCfg),
	}, s.eventBus, log)
	if err != nil {
		engine.Close()
		s.eventBus.Close()
		return nil, fmt.Errorf("failed to create settings service: %w", err)
	}
	s.settingsSvc = settingsSvc

	// Persisted runtime settings win over the static config once the
	// deployment has them; changes apply without a restart.
	s.applyCacheSettings(settingsSvc.Get())
	err = s.eventBus.Subscribe(context.Background(), bus.EventSettingsChanged, func(ctx context.Context, _ bus.Event) error {
		s.applyCacheSettings(s.settingsSvc.Get())
		return nil
	})
	if err != nil {
		log.Warn("failed to subscribe to settings changes", "error", err)
	}

	if appCfg.Security.RateLimit > 0 {
		s.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(appCfg.Security.RateLimit),
			Burst:             appCfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
		log.Info("Rate limiting enabled", "requests_per_second", appCfg.Security.RateLimit)
	}

	if appCfg.EnableWeb {
		s.webHandler = web.NewHandler(engine, s.labeler, s.datasets, log)
	}

	return s, nil
}

// settingsDefaults derives first-boot runtime settings from the static
// config. Once settings.json exists on disk it takes precedence.
func settingsDefaults(appCfg *config.Config) *settings.RuntimeSettings {
	rs := settings.Defaults()
	rs.TextColumn = appCfg.Eval.TextColumn
	rs.LabelColumn = appCfg.Eval.LabelColumn
	rs.BatchSize = appCfg.Eval.BatchSize
	rs.Workers = appCfg.Eval.Workers
	rs.MaxUploadMB = appCfg.Datasets.MaxUploadMB
	rs.CacheEnabled = appCfg.Cache.Enabled
	rs.CacheTTLSeconds = appCfg.Cache.TTL
	return &rs
}

// applyCacheSettings pushes the runtime cache knobs into the prediction
// cache. A nil cache means caching was disabled in the static config and
// stays off for the process lifetime.
func (s *Server) applyCacheSettings(rs settings.RuntimeSettings) {
	if s.cache == nil {
		return
	}
	s.cache.SetTTL(time.Duration(rs.CacheTTLSeconds) * time.Second)
	s.cache.SetEnabled(rs.CacheEnabled)
}

// Handler builds the full route table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	classifyHandler := NewClassifyHandler(s.engine, s.eventBus, s.log)
	classifyHandler.RegisterRoutes(mux)

	datasetHandler := NewDatasetHandler(s.labeler, s.datasets, s.settingsSvc, s.eventBus, s.cfg.Datasets, s.log)
	datasetHandler.RegisterRoutes(mux)

	settingsHandler := NewSettingsHandler(s.settingsSvc)
	settingsHandler.RegisterRoutes(mux)

	s.registerHealthRoutes(mux)

	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.metricsSvc.Handler())
		mux.Handle("GET /v1/metrics", s.metricsSvc.JSONHandler())
	}

	if s.webHandler != nil {
		s.webHandler.RegisterRoutes(mux)
	}

	// Middleware chain, innermost first.
	handler := http.Handler(mux)
	handler = ResponseWrapperMiddleware(handler)
	handler = s.inFlightMiddleware(handler)
	handler = metrics.HTTPMiddleware(s.metricsSvc, handler)
	handler = s.loggingMiddleware(handler)
	handler = s.corsMiddleware(handler)
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
	}
	handler = s.recoveryMiddleware(handler)

	return handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	addr := s.cfg.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.ready.Store(true)
	s.log.Info("Starting HTTP server",
		"addr", addr,
		"model", s.engine.ModelName(),
		"web_ui", s.webHandler != nil,
	)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server: readiness flips first so load
// balancers stop routing, then in-flight requests drain, then services
// close.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("Shutting down server...")
	s.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	if s.drainInFlight(ShutdownTimeout) {
		s.log.Info("All in-flight requests completed")
	} else {
		s.log.Warn("Shutdown timeout reached with pending requests",
			"remaining", atomic.LoadInt64(&s.inFlight))
	}

	if err := s.settingsSvc.Close(); err != nil {
		s.log.Warn("Error closing settings service", "error", err)
	}
	if err := s.engine.Close(); err != nil {
		s.log.Warn("Error closing classifier", "error", err)
	}
	if err := s.eventBus.Close(); err != nil {
		s.log.Warn("Error closing event bus", "error", err)
	}
	if err := s.metricsSvc.Close(); err != nil {
		s.log.Warn("Error closing metrics", "error", err)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	s.started = false
	s.log.Info("Server stopped")
	return nil
}

// Ready reports whether the server accepts traffic.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/captchaview/internal/api/http"
	"github.com/GriffinCanCode/captchaview/internal/api/middleware"
	"github.com/GriffinCanCode/captchaview/internal/api/ws"
	"github.com/GriffinCanCode/captchaview/internal/document"
	"github.com/GriffinCanCode/captchaview/internal/domain/preview"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/config"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/logging"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/captchaview/internal/infrastructure/upstream"
	"github.com/GriffinCanCode/captchaview/internal/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	pool    *sandbox.Pool
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing captchaview server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("script_domain", cfg.Provider.ScriptDomain),
		zap.Int("sandbox_pool", cfg.Sandbox.PoolSize),
	)

	diagnostics, err := document.ParseDiagnosticMode(cfg.Render.Diagnostics)
	if err != nil {
		return nil, fmt.Errorf("invalid render config: %w", err)
	}

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	tracer := tracing.New("captchaview", logger.Component("tracing").Logger)

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Sandbox.Timeout
	sandboxCfg.AcquireTimeout = cfg.Sandbox.AcquireTimeout
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}
	metrics.SetPoolAvailable(cfg.Sandbox.PoolSize)
	logger.Info("Sandbox pool initialized", zap.Int("size", cfg.Sandbox.PoolSize))

	breakerLog := logger.Component("breaker")
	breaker := resilience.New("sandbox", resilience.Settings{
		Timeout:      cfg.Sandbox.BreakerCooldown,
		ReadyToTrip:  resilience.TripAfter(cfg.Sandbox.BreakerFailures),
		IsSuccessful: preview.IsSandboxHealthy,
		OnStateChange: func(name string, from, to resilience.State) {
			breakerLog.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerOpen(to == resilience.StateOpen)
		},
	})

	renderer := preview.NewRenderer(
		document.Endpoints{
			ScriptDomain: cfg.Provider.ScriptDomain,
			StaticDomain: cfg.Provider.StaticDomain,
		},
		document.Flags{
			Enterprise:     cfg.Render.Enterprise,
			HideBadge:      cfg.Render.HideBadge,
			StringifyUnset: cfg.Render.StringifyUnset,
			Diagnostics:    diagnostics,
		},
	).WithMetrics(metrics).WithLogger(logger.Component("renderer").Logger)

	simulator := preview.NewSimulator(renderer, pool, breaker).
		WithMetrics(metrics).
		WithTracer(tracer).
		WithLogger(logger.Component("simulator").Logger)

	var prober *upstream.Prober
	if cfg.Provider.ProbeTTL > 0 {
		clientCfg := upstream.DefaultConfig()
		clientCfg.Timeout = cfg.Provider.ProbeTimeout
		clientCfg.RetryCount = cfg.Provider.ProbeRetries
		prober = upstream.NewProber(upstream.NewClient(clientCfg), renderer.Endpoints(), cfg.Provider.ProbeTTL).
			WithLogger(logger.Component("upstream").Logger)
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	api.NewHandlers(renderer, simulator, metrics, logger.Component("api").Logger).
		WithProber(prober).
		Register(router)
	stream := ws.NewHandler(simulator, ws.OriginChecker(cfg.Server.AllowOrigins), logger.Component("ws").Logger)
	router.GET("/v1/stream", stream.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:    cfg.Server.Addr(),
			Handler: router,
		},
		pool:    pool,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. A server stopped by
// Shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the sandbox pool and tracer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sandbox pool: %w", err))
	}
	s.tracer.Close()

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}

// Close shuts the server down within the configured timeout.
func (s *Server) Close() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.Default().Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/questioncrawler/wikidata-cache/internal/api/middleware"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/observability"
)

// Server is the HTTP facade. It owns the echo instance, the middleware stack
// and the routes.
type Server struct {
	echo       *echo.Echo
	config     *Config
	controller *Controller
	metrics    *observability.Metrics
	log        logger.Logger
	startTime  time.Time

	store   Pinger
	version string
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithStore enables the store ping in /api/health.
func WithStore(p Pinger) ServerOption {
	return func(s *Server) {
		s.store = p
	}
}

// WithMetrics installs the request metrics middleware and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithVersion sets the version reported by /api/health.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger overrides the api module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the HTTP server for the cache service.
func New(settings *conf.Settings, svc CacheService, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, errors.Newf("invalid server configuration: %w", err).
			Category(errors.CategoryConfiguration).
			Component("api").
			Build()
	}
	if svc == nil {
		return nil, errors.NewStd("api: cache service is required")
	}

	s := &Server{
		config:    config,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.controller = NewController(svc, s.store, s.log)
	s.controller.Version = s.version

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("metrics", s.metrics != nil),
		logger.Int("cors_origins", len(config.AllowedOrigins)))

	return s, nil
}

// setupMiddleware configures the echo middleware stack. Recover sits inside
// the logger and metrics middleware so that a recovered panic is still
// logged and counted as a 500.
func (s *Server) setupMiddleware() {
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLogger(s.log))

	var rec mw.HTTPRecorder
	if s.metrics != nil {
		rec = s.metrics.HTTP
	}
	s.echo.Use(mw.NewMetrics(rec))

	s.echo.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.log.WithContext(c.Request().Context()).Error("panic in handler",
				logger.String("path", c.Path()),
				logger.Error(err),
				logger.String("stack", string(stack)))
			return err
		},
	}))

	if len(s.config.AllowedOrigins) > 0 {
		s.echo.Use(mw.NewCORS(s.config.AllowedOrigins))
	}
	s.echo.Use(mw.NewSecureHeaders())
	s.echo.Use(mw.NewBodyLimit("1M"))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.controller.RegisterRoutes(s.echo.Group("/api"))
}

// healthCheck is the liveness probe. It does not touch the store.
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
}

// Run serves HTTP until ctx is cancelled, then shuts the server down
// gracefully. It returns the first serve error other than a clean close.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.startBlocking()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received, stopping HTTP server")
	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) startBlocking() error {
	addr := s.config.Address()
	s.log.Info("starting HTTP server", logger.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Newf("server error: %w", err).
			Category(errors.CategoryNetwork).
			Component("api").
			Context("address", addr).
			Build()
	}
	return nil
}

// Shutdown gracefully stops the server, waiting up to ShutdownTimeout for
// in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete",
		logger.Duration("uptime", time.Since(s.startTime)))
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

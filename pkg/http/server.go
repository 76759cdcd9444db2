package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"FinScan/pkg/http/middleware"
	"FinScan/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler defines HTTP route registration interface.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	BodyLimit       string
	CORS            bool
	MetricsPath     string
	SlowThreshold   time.Duration
	Gatherer        prometheus.Gatherer
	Registerer      prometheus.Registerer
	Logger          *logger.Logger
	HealthCheck     func(ctx context.Context) error
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	log    *logger.Logger
}

// NewServer creates a new HTTP server with Echo.
func NewServer(handler Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORS:            true,
		SlowThreshold:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	l := cfg.Logger
	if l == nil {
		l = logger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(l))
	e.Use(middleware.RequestLogging(l))
	if cfg.Registerer != nil {
		e.Use(middleware.Metrics(cfg.Registerer, l, cfg.SlowThreshold))
	}
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodOptions,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
			},
		}))
	}

	if handler != nil {
		handler.RegisterRoutes(e)
	}

	if cfg.MetricsPath != "" && cfg.Gatherer != nil {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/healthz", func(c echo.Context) error {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request().Context()); err != nil {
				l.Warn("health check failed", logger.Error(err))
				return DataResponse(c, http.StatusServiceUnavailable, err.Error())
			}
		}
		return SuccessResponse(c, "ok")
	})

	return &Server{
		echo:   e,
		config: cfg,
		log:    l,
	}
}

// Start starts the HTTP server in the background. Listen failures are
// delivered on the returned channel.
func (s *Server) Start() <-chan error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("http server listening", logger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	return errCh
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
	}
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

// WithTimeouts sets read/write timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
		c.ShutdownTimeout = shutdown
	}
}

// WithBodyLimit caps request bodies, e.g. "32M". A malformed limit panics
// at construction.
func WithBodyLimit(limit string) ServerOption {
	return func(c *ServerConfig) {
		c.BodyLimit = limit
	}
}

// WithCORS enables/disables CORS.
func WithCORS(enabled bool) ServerOption {
	return func(c *ServerConfig) {
		c.CORS = enabled
	}
}

// WithMetrics registers HTTP metrics on reg and exposes gatherer at path.
func WithMetrics(path string, reg prometheus.Registerer, gatherer prometheus.Gatherer) ServerOption {
	return func(c *ServerConfig) {
		c.MetricsPath = path
		c.Registerer = reg
		c.Gatherer = gatherer
	}
}

// WithServerLogger sets the request logger.
func WithServerLogger(l *logger.Logger) ServerOption {
	return func(c *ServerConfig) {
		c.Logger = l
	}
}

// WithHealthCheck makes /healthz report 503 while check fails.
func WithHealthCheck(check func(ctx context.Context) error) ServerOption {
	return func(c *ServerConfig) {
		c.HealthCheck = check
	}
}

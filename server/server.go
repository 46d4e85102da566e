// Package server exposes audio analysis and cut planning over HTTP with Echo.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/RyanBlaney/retro-compositor/analyzer"
	"github.com/RyanBlaney/retro-compositor/config"
	"github.com/RyanBlaney/retro-compositor/logging"
	"github.com/RyanBlaney/retro-compositor/transcode"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the HTTP API
type Server struct {
	echo      *echo.Echo
	config    *config.Config
	loader    analyzer.Loader
	logger    *logging.GommonLogger
	uploadDir string
}

// Option configures a Server
type Option func(*Server)

// WithLoader replaces the transcode loader used to read audio
func WithLoader(loader analyzer.Loader) Option {
	return func(s *Server) {
		s.loader = loader
	}
}

// WithLogOutput sends request and application logs to w
func WithLogOutput(w io.Writer) Option {
	return func(s *Server) {
		s.logger = logging.NewGommonLogger("retro-compositor", w)
	}
}

// WithUploadDir stores uploaded audio under dir instead of the system temp dir
func WithUploadDir(dir string) Option {
	return func(s *Server) {
		s.uploadDir = dir
	}
}

// New builds the server and its routes. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		config:    cfg,
		uploadDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = transcode.NewLoader(&cfg.Decoder)
	}
	if s.logger == nil {
		s.logger = logging.NewGommonLogger("retro-compositor", os.Stdout)
	}
	if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
		s.logger.SetLevel(level)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = s.logger.Gommon()

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Output: s.logger.Gommon().Output()}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestFields)

	// Routes
	api := e.Group("/api")
	api.GET("/health", s.health)
	api.GET("/styles", s.listStyles)
	api.POST("/analyze", s.analyze)
	api.POST("/timeline", s.timeline)

	s.echo = e
	return s
}

// requestFields puts the request id into the request context so library
// loggers called from handlers carry it
func requestFields(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		ctx := logging.ContextWithFields(req.Context(), logging.Fields{"request_id": id})
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// Handler returns the routed http.Handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting HTTP server", logging.Fields{"addr": addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

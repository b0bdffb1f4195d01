// Package server exposes the analysis engine over HTTP with Echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"chartlab/internal/analysis"
	"chartlab/internal/config"
	"chartlab/internal/logging"
	"chartlab/internal/metrics"
	"chartlab/internal/store"
)

// Server wraps the Echo HTTP server.
type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	analyzer *analysis.Analyzer
	store    store.DataStore
	metrics  *metrics.Recorder
	logger   zerolog.Logger
}

// New creates a server with every route registered.
func New(cfg config.ServerConfig, an *analysis.Analyzer, st store.DataStore, rec *metrics.Recorder, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		cfg:      cfg,
		analyzer: an,
		store:    st,
		metrics:  rec,
		logger:   logging.WithOperation(logger, "http"),
	}

	e.Use(middleware.Recover())
	e.Use(requestLogging(s.logger, rec))
	if cfg.RateLimit > 0 {
		e.Use(rateLimit(newClientLimiter(cfg.RateLimit, cfg.RateBurst)))
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	s.registerRoutes()
	if rec != nil {
		e.GET("/metrics", echo.WrapHandler(rec.Handler()))
	}
	return s
}

func (s *Server) registerRoutes() {
	g := s.echo.Group("/api")
	g.GET("/health", s.health)
	g.GET("/symbols", s.symbols)
	g.GET("/chart/:symbol/candles", s.candles)
	g.GET("/chart/:symbol/indicators/:name", s.indicator)
	g.GET("/chart/:symbol/report", s.latestReport)
	g.POST("/chart/analyze", s.analyze)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

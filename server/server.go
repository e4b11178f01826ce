// Package server assembles the HTTP server: echo instance, middleware,
// health and metrics endpoints, and the versioned API routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/contentvec/contentvec/content"
	"github.com/contentvec/contentvec/embedding"
	"github.com/contentvec/contentvec/indexer"
	"github.com/contentvec/contentvec/internal/metrics"
	"github.com/contentvec/contentvec/internal/profile"
	"github.com/contentvec/contentvec/search"
	apiv1 "github.com/contentvec/contentvec/server/router/api/v1"
	"github.com/contentvec/contentvec/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	runner     *indexer.Runner
}

// NewServer wires the embedding client, content source, indexer, search
// engine and API routes onto one echo instance.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	e := echo.New()
	e.Debug = true
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	embedder, err := embedding.NewService(&embedding.Config{
		APIKey:            profile.EmbeddingAPIKey,
		BaseURL:           profile.EmbeddingBaseURL,
		Model:             profile.EmbeddingModel,
		Dimensions:        profile.EmbeddingDimension,
		RequestsPerSecond: 10,
	})
	if err != nil {
		return nil, err
	}

	exporter := metrics.NewExporter(metrics.DefaultConfig())
	source := content.NewHTTPSource(profile.ContentSourceURL, profile.ContentSourceToken)
	ix := indexer.New(store, embedder, source, exporter)
	runner := indexer.NewRunner(ctx, store, ix, exporter, 2)
	engine := search.NewEngine(store, embedder, exporter)

	s := &Server{
		Profile:    profile,
		Store:      store,
		echoServer: e,
		runner:     runner,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	e.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	apiService := apiv1.NewAPIV1Service(profile, store, engine, runner, embedder)
	apiService.RegisterRoutes(e)

	return s, nil
}

// Start begins serving in the background. Startup failures other than a
// normal close are reported through the returned channel pattern used by the
// caller's shutdown flow.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and background indexing runs.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.runner.Wait(ctx); err != nil {
		slog.Warn("background indexing runs did not drain before shutdown", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("contentvec stopped properly")
}

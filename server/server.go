// Package server wires the metrics service, its collaborators, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/agentmetrics/internal/profile"
	"github.com/hrygo/agentmetrics/memory"
	"github.com/hrygo/agentmetrics/metrics"
	apiv1 "github.com/hrygo/agentmetrics/server/router/api/v1"
	"github.com/hrygo/agentmetrics/tracing"
)

// Server hosts the metrics service and its HTTP API.
type Server struct {
	Profile *profile.Profile

	Metrics         *metrics.Service
	MemoryGenerator memory.Generator
	Tracer          *tracing.Tracer

	echoServer *echo.Echo
}

// NewServer assembles a server from the given profile and metrics store. A nil
// store disables persistence (in-memory aggregation only).
func NewServer(profile *profile.Profile, store metrics.MetricsStore) *Server {
	metricsService := metrics.NewService(store, metrics.PersisterConfig{
		FlushInterval:   profile.FlushInterval,
		RetentionPeriod: profile.RetentionPeriod,
		CleanupInterval: profile.CleanupInterval,
	})
	tracer := tracing.NewTracer(profile.TracingEnabled)

	s := &Server{
		Profile:         profile,
		Metrics:         metricsService,
		MemoryGenerator: memory.NewNoOpGenerator(),
		Tracer:          tracer,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	apiv1.NewAPIV1Service(profile, metricsService, tracer).RegisterRoutes(e)
	s.echoServer = e

	return s
}

// Start runs the HTTP server until ctx is canceled, then shuts everything
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", address, "mode", s.Profile.Mode, "version", s.Profile.Version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.Shutdown()
		return nil
	})

	return g.Wait()
}

// Shutdown stops the HTTP server, flushes remaining metrics, and waits for
// pending memory generation tasks.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}

	// Close flushes completed hour buckets before returning.
	s.Metrics.Close()

	if err := s.MemoryGenerator.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown memory generator", "error", err)
	}

	slog.Info("server shutdown complete")
}

// Package v1 exposes the metrics read and administrative endpoints.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/hrygo/agentmetrics/internal/profile"
	"github.com/hrygo/agentmetrics/metrics"
	"github.com/hrygo/agentmetrics/tracing"
)

type APIV1Service struct {
	Profile *profile.Profile
	Metrics *metrics.Service
	Tracer  *tracing.Tracer
}

func NewAPIV1Service(profile *profile.Profile, metricsService *metrics.Service, tracer *tracing.Tracer) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Metrics: metricsService,
		Tracer:  tracer,
	}
}

// RegisterRoutes mounts the v1 API on the given echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/metrics/overview", s.GetMetricsOverview)
	g.GET("/metrics/current", s.GetCurrentStats)
	g.POST("/metrics/flush", s.FlushMetrics)
}

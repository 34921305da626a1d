package v1

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/agentmetrics/metrics"
	"github.com/hrygo/agentmetrics/tracing"
)

// MetricsOverviewResponse represents the overview response of agent metrics.
type MetricsOverviewResponse struct {
	TotalRequests int64   `json:"total_requests"`
	SuccessRate   float64 `json:"success_rate"`
	P50LatencyMs  int64   `json:"p50_latency_ms"`
	P95LatencyMs  int64   `json:"p95_latency_ms"`
	ErrorCount    int64   `json:"error_count"`
	TimeRange     string  `json:"time_range"`
}

// GetMetricsOverview returns the aggregated metrics overview.
// GET /api/v1/metrics/overview?range=24h
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	timeRange := c.QueryParam("range")
	if timeRange == "" {
		timeRange = "24h"
	}
	start, err := parseTimeRange(timeRange)
	if err != nil {
		slog.Warn("invalid time range parameter in metrics request", "range", timeRange, "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid time range"})
	}

	stats, err := s.Metrics.GetStats(c.Request().Context(), metrics.TimeRange{
		Start: start,
		End:   time.Now(),
	})
	if err != nil {
		slog.Error("failed to query metrics", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to query metrics"})
	}

	resp := MetricsOverviewResponse{
		TotalRequests: stats.RequestCount,
		P50LatencyMs:  stats.LatencyP50.Milliseconds(),
		P95LatencyMs:  stats.LatencyP95.Milliseconds(),
		TimeRange:     timeRange,
	}
	if stats.RequestCount > 0 {
		resp.SuccessRate = float64(stats.SuccessCount) / float64(stats.RequestCount)
	}
	for _, count := range stats.ErrorsByType {
		resp.ErrorCount += count
	}

	return c.JSON(http.StatusOK, resp)
}

// GetCurrentStats returns the live, in-progress current-hour stats.
// GET /api/v1/metrics/current
func (s *APIV1Service) GetCurrentStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Metrics.CurrentStats())
}

// FlushMetrics forces an immediate flush of completed hour buckets.
// POST /api/v1/metrics/flush
func (s *APIV1Service) FlushMetrics(c echo.Context) error {
	err := tracing.WithSpan(c.Request().Context(), s.Tracer, "metrics.flush", func(ctx context.Context) error {
		return s.Metrics.Flush(ctx)
	})
	if err != nil {
		if errors.Is(err, metrics.ErrMetricsNotConfigured) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		}
		slog.Error("manual metrics flush failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "flush failed"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"flushed": true})
}

// parseTimeRange parses a time range string and returns the start time.
func parseTimeRange(timeRange string) (time.Time, error) {
	now := time.Now()
	switch timeRange {
	case "1h":
		return now.Add(-1 * time.Hour), nil
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.Add(-7 * 24 * time.Hour), nil
	case "30d":
		return now.Add(-30 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("invalid time range: %s (valid: 1h, 24h, 7d, 30d)", timeRange)
	}
}

// Package metrics provides in-memory aggregation and periodic persistence of
// per-agent and per-tool invocation metrics, bucketed by hour.
package metrics

import (
	"context"
	"time"
)

// MetricsService defines the metrics service interface consumed by agent and
// tool call sites.
type MetricsService interface {
	// RecordRequest records request metrics for one agent invocation.
	RecordRequest(ctx context.Context, agentType string, latency time.Duration, success bool)

	// RecordToolCall records metrics for one tool invocation.
	RecordToolCall(ctx context.Context, toolName string, latency time.Duration, success bool)

	// GetStats retrieves aggregated statistics for the given time range.
	GetStats(ctx context.Context, timeRange TimeRange) (*Stats, error)
}

// TimeRange represents a time range for querying metrics.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Stats represents aggregated metrics across both bucket families.
type Stats struct {
	RequestCount int64                     `json:"request_count"`
	SuccessCount int64                     `json:"success_count"`
	LatencyP50   time.Duration             `json:"latency_p50"`
	LatencyP95   time.Duration             `json:"latency_p95"`
	AgentStats   map[string]*DimensionStat `json:"agent_stats"`
	ToolStats    map[string]*DimensionStat `json:"tool_stats"`
	ErrorsByType map[string]int64          `json:"errors_by_type"`
}

// DimensionStat represents statistics for a single agent type or tool name.
type DimensionStat struct {
	Count        int64         `json:"count"`
	SuccessCount int64         `json:"success_count"`
	SuccessRate  float32       `json:"success_rate"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

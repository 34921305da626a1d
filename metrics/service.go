package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrMetricsNotConfigured is returned when metrics persistence is not configured.
var ErrMetricsNotConfigured = errors.New("metrics persistence not configured")

// maxPersistedSnapshots caps how many persisted snapshots GetStats folds into
// one result.
const maxPersistedSnapshots = 1000

// Service implements the MetricsService interface backed by an Aggregator and
// an optional persister.
type Service struct {
	store      MetricsStore
	aggregator *Aggregator
	persister  *Persister
}

// NewService creates a new metrics service. If store is nil, metrics are only
// aggregated in memory and persistence is disabled.
func NewService(store MetricsStore, cfg PersisterConfig) *Service {
	aggregator := NewAggregator()

	svc := &Service{
		store:      store,
		aggregator: aggregator,
	}

	if store != nil {
		svc.persister = NewPersister(store, aggregator, cfg)
		svc.persister.Start()
	} else {
		slog.Warn("metrics service initialized without store (persistence disabled)")
	}

	return svc
}

// Close stops the metrics service, flushing completed buckets first.
func (s *Service) Close() {
	if s.persister != nil {
		s.persister.Close()
	}
}

// RecordRequest records an agent request metric.
func (s *Service) RecordRequest(_ context.Context, agentType string, latency time.Duration, success bool) {
	s.aggregator.RecordAgentRequest(agentType, latency, success)
}

// RecordToolCall records a tool call metric.
func (s *Service) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	s.aggregator.RecordToolCall(toolName, latency, success)
}

// GetStats retrieves aggregated statistics for the given time range, merging
// the current in-memory hour with persisted history when a store is present.
// At most maxPersistedSnapshots persisted snapshots are merged; longer ranges
// are truncated and the truncation logged.
func (s *Service) GetStats(ctx context.Context, timeRange TimeRange) (*Stats, error) {
	stats := s.aggregator.GetCurrentStats()

	if s.store == nil {
		return stats, nil
	}

	find := &FindSnapshots{Limit: maxPersistedSnapshots}
	if !timeRange.Start.IsZero() {
		find.StartTime = &timeRange.Start
	}
	if !timeRange.End.IsZero() {
		find.EndTime = &timeRange.End
	}

	persisted, err := s.store.List(ctx, find)
	if err != nil {
		// Persisted history is best-effort for the read path; live stats still serve.
		slog.Warn("failed to query persisted metrics", "error", err)
		return stats, nil
	}
	if len(persisted) == maxPersistedSnapshots {
		slog.Warn("persisted metrics truncated for stats query",
			"limit", maxPersistedSnapshots,
			"start", timeRange.Start,
			"end", timeRange.End)
	}

	mergePersisted(stats, persisted)
	return stats, nil
}

// mergePersisted folds persisted snapshots into live stats. Success rates and
// average latencies are recomputed from combined totals.
func mergePersisted(stats *Stats, persisted []*Snapshot) {
	type totals struct {
		count        int64
		successCount int64
		latencySumMs int64
	}

	agentTotals := make(map[string]*totals)
	toolTotals := make(map[string]*totals)

	seed := func(dst map[string]*totals, dims map[string]*DimensionStat) {
		for dim, stat := range dims {
			dst[dim] = &totals{
				count:        stat.Count,
				successCount: stat.SuccessCount,
				latencySumMs: stat.AvgLatency.Milliseconds() * stat.Count,
			}
		}
	}
	seed(agentTotals, stats.AgentStats)
	seed(toolTotals, stats.ToolStats)

	for _, snapshot := range persisted {
		dst := agentTotals
		if snapshot.Kind == MetricKindTool {
			dst = toolTotals
		} else {
			stats.RequestCount += snapshot.Count
			stats.SuccessCount += snapshot.SuccessCount
			if snapshot.FailureCount > 0 {
				stats.ErrorsByType[snapshot.Dimension] += snapshot.FailureCount
			}
		}

		t, ok := dst[snapshot.Dimension]
		if !ok {
			t = &totals{}
			dst[snapshot.Dimension] = t
		}
		t.count += snapshot.Count
		t.successCount += snapshot.SuccessCount
		t.latencySumMs += snapshot.LatencySumMs
	}

	rebuild := func(src map[string]*totals, dims map[string]*DimensionStat) {
		for dim, t := range src {
			stat := &DimensionStat{
				Count:        t.count,
				SuccessCount: t.successCount,
			}
			if t.count > 0 {
				stat.SuccessRate = float32(t.successCount) / float32(t.count)
				stat.AvgLatency = time.Duration(t.latencySumMs/t.count) * time.Millisecond
			}
			dims[dim] = stat
		}
	}
	rebuild(agentTotals, stats.AgentStats)
	rebuild(toolTotals, stats.ToolStats)
}

// CurrentStats returns the live, non-draining view of the current-hour
// buckets. This is the read path for dashboards.
func (s *Service) CurrentStats() *Stats {
	return s.aggregator.GetCurrentStats()
}

// Flush forces an immediate flush of completed hour buckets to the store.
func (s *Service) Flush(ctx context.Context) error {
	if s.persister == nil {
		return ErrMetricsNotConfigured
	}
	return s.persister.Flush(ctx)
}

// HasPersistence returns true if metrics persistence is enabled.
func (s *Service) HasPersistence() bool {
	return s.persister != nil
}

var _ MetricsService = (*Service)(nil)

package metrics

import (
	"sort"
	"sync"
	"time"
)

// MetricKind distinguishes the two bucket families.
type MetricKind string

const (
	MetricKindAgent MetricKind = "agent"
	MetricKindTool  MetricKind = "tool"
)

// Snapshot is an immutable summary of one drained (hour, dimension) bucket.
type Snapshot struct {
	Kind         MetricKind `json:"kind"`
	Dimension    string     `json:"dimension"`
	HourStart    time.Time  `json:"hour_start"`
	Count        int64      `json:"count"`
	SuccessCount int64      `json:"success_count"`
	FailureCount int64      `json:"failure_count"`
	LatencySumMs int64      `json:"latency_sum_ms"`
	AvgLatencyMs int64      `json:"avg_latency_ms"`
	LatencyP50Ms int64      `json:"latency_p50_ms"`
	LatencyP95Ms int64      `json:"latency_p95_ms"`
	LatencyP99Ms int64      `json:"latency_p99_ms"`
}

// bucket accumulates samples for one (hour, dimension) pair. Raw latencies are
// retained until drain because percentiles require them.
type bucket struct {
	hourStart    time.Time
	dimension    string
	count        int64
	successCount int64
	latencies    []int64 // in milliseconds
}

// Aggregator aggregates metrics in memory before persisting to a store.
// All methods are safe for concurrent use.
type Aggregator struct {
	mu sync.RWMutex

	// Agent buckets: key = "hourStart|agentType"
	agentBuckets map[string]*bucket

	// Tool buckets: key = "hourStart|toolName"
	toolBuckets map[string]*bucket

	now func() time.Time
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		agentBuckets: make(map[string]*bucket),
		toolBuckets:  make(map[string]*bucket),
		now:          time.Now,
	}
}

// RecordAgentRequest records a single agent request into the current-hour
// bucket for agentType. It never fails; empty labels are accepted as literal
// dimension values.
func (a *Aggregator) RecordAgentRequest(agentType string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourStart := truncateToHour(a.now())
	a.record(a.agentBuckets, makeAgentKey(hourStart, agentType), hourStart, agentType, latency, success)
}

// RecordToolCall records a single tool call into the current-hour bucket for
// toolName.
func (a *Aggregator) RecordToolCall(toolName string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourStart := truncateToHour(a.now())
	a.record(a.toolBuckets, makeToolKey(hourStart, toolName), hourStart, toolName, latency, success)
}

func (a *Aggregator) record(buckets map[string]*bucket, key string, hourStart time.Time, dimension string, latency time.Duration, success bool) {
	b, ok := buckets[key]
	if !ok {
		b = &bucket{
			hourStart: hourStart,
			dimension: dimension,
			latencies: make([]int64, 0, 100),
		}
		buckets[key] = b
	}

	b.count++
	if success {
		b.successCount++
	}
	b.latencies = append(b.latencies, latency.Milliseconds())
}

// FlushAgentMetrics drains and returns the agent buckets for the single hour
// containing the given time. The current hour is never drained; passing the
// current hour (or any later time) returns nil. Drained buckets are removed,
// so a second call for the same hour with no intervening records returns nil.
func (a *Aggregator) FlushAgentMetrics(hour time.Time) []*Snapshot {
	return a.flushHour(a.agentBuckets, MetricKindAgent, hour)
}

// FlushToolMetrics is the tool-bucket equivalent of FlushAgentMetrics.
func (a *Aggregator) FlushToolMetrics(hour time.Time) []*Snapshot {
	return a.flushHour(a.toolBuckets, MetricKindTool, hour)
}

func (a *Aggregator) flushHour(buckets map[string]*bucket, kind MetricKind, hour time.Time) []*Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	boundary := truncateToHour(hour)
	if !boundary.Before(truncateToHour(a.now())) {
		return nil
	}
	return drainBuckets(buckets, kind, func(hourStart time.Time) bool {
		return hourStart.Equal(boundary)
	})
}

// FlushCompletedAgentMetrics drains and returns every agent bucket whose hour
// is strictly before the hour containing now. Used by the persister so a
// single flush drains any backlog of completed hours.
func (a *Aggregator) FlushCompletedAgentMetrics(now time.Time) []*Snapshot {
	return a.flushCompleted(a.agentBuckets, MetricKindAgent, now)
}

// FlushCompletedToolMetrics is the tool-bucket equivalent of
// FlushCompletedAgentMetrics.
func (a *Aggregator) FlushCompletedToolMetrics(now time.Time) []*Snapshot {
	return a.flushCompleted(a.toolBuckets, MetricKindTool, now)
}

func (a *Aggregator) flushCompleted(buckets map[string]*bucket, kind MetricKind, now time.Time) []*Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	boundary := truncateToHour(now)
	return drainBuckets(buckets, kind, func(hourStart time.Time) bool {
		return hourStart.Before(boundary)
	})
}

// drainBuckets removes every matching bucket and returns its snapshot.
// Callers must hold a.mu.
func drainBuckets(buckets map[string]*bucket, kind MetricKind, match func(time.Time) bool) []*Snapshot {
	var snapshots []*Snapshot
	for key, b := range buckets {
		if !match(b.hourStart) {
			continue
		}
		snapshots = append(snapshots, snapshotBucket(b, kind))
		delete(buckets, key)
	}
	return snapshots
}

func snapshotBucket(b *bucket, kind MetricKind) *Snapshot {
	s := &Snapshot{
		Kind:         kind,
		Dimension:    b.dimension,
		HourStart:    b.hourStart,
		Count:        b.count,
		SuccessCount: b.successCount,
		FailureCount: b.count - b.successCount,
		LatencySumMs: sumLatencies(b.latencies),
		LatencyP50Ms: percentile(b.latencies, 50),
		LatencyP95Ms: percentile(b.latencies, 95),
		LatencyP99Ms: percentile(b.latencies, 99),
	}
	if b.count > 0 {
		s.AvgLatencyMs = s.LatencySumMs / b.count
	}
	return s
}

// GetCurrentStats returns a non-draining view of the in-progress current-hour
// buckets across both families, for live dashboards.
func (a *Aggregator) GetCurrentStats() *Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := &Stats{
		AgentStats:   make(map[string]*DimensionStat),
		ToolStats:    make(map[string]*DimensionStat),
		ErrorsByType: make(map[string]int64),
	}

	currentHour := truncateToHour(a.now())
	allLatencies := make([]int64, 0)

	for _, b := range a.agentBuckets {
		if !b.hourStart.Equal(currentHour) {
			continue
		}
		stats.RequestCount += b.count
		stats.SuccessCount += b.successCount
		allLatencies = append(allLatencies, b.latencies...)
		stats.AgentStats[b.dimension] = dimensionStat(b)
		if failures := b.count - b.successCount; failures > 0 {
			stats.ErrorsByType[b.dimension] += failures
		}
	}

	for _, b := range a.toolBuckets {
		if !b.hourStart.Equal(currentHour) {
			continue
		}
		stats.ToolStats[b.dimension] = dimensionStat(b)
	}

	stats.LatencyP50 = time.Duration(percentile(allLatencies, 50)) * time.Millisecond
	stats.LatencyP95 = time.Duration(percentile(allLatencies, 95)) * time.Millisecond

	return stats
}

func dimensionStat(b *bucket) *DimensionStat {
	stat := &DimensionStat{
		Count:        b.count,
		SuccessCount: b.successCount,
	}
	if b.count > 0 {
		stat.SuccessRate = float32(b.successCount) / float32(b.count)
		stat.AvgLatency = time.Duration(sumLatencies(b.latencies)/b.count) * time.Millisecond
	}
	return stat
}

// Helper functions

// truncateToHour floors t to the start of its UTC hour.
func truncateToHour(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// makeAgentKey and makeToolKey truncate the hour themselves so identical
// (hour, dimension) pairs always map to the same bucket regardless of the
// sub-hour timestamp passed in.

func makeAgentKey(hour time.Time, agentType string) string {
	return truncateToHour(hour).Format(time.RFC3339) + "|" + agentType
}

func makeToolKey(hour time.Time, toolName string) string {
	return truncateToHour(hour).Format(time.RFC3339) + "|" + toolName
}

func sumLatencies(latencies []int64) int64 {
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return sum
}

// percentile computes the nearest-rank percentile over a sorted copy of the
// input; the caller's slice is never mutated. The rank index is
// ceil(p/100*n)-1, clamped to [0, n-1]. Returns 0 for an empty slice.
func percentile(latencies []int64, p int) int64 {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

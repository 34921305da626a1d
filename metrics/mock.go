package metrics

import (
	"context"
	"sync"
	"time"
)

// MockMetricsService is a mock implementation of MetricsService for testing.
// It keeps every recorded sample so tests can assert on exact time ranges.
type MockMetricsService struct {
	mu        sync.RWMutex
	requests  []sampleRecord
	toolCalls []sampleRecord
}

type sampleRecord struct {
	Dimension string
	Latency   time.Duration
	Success   bool
	Timestamp time.Time
}

// NewMockMetricsService creates a new MockMetricsService.
func NewMockMetricsService() *MockMetricsService {
	return &MockMetricsService{
		requests:  make([]sampleRecord, 0),
		toolCalls: make([]sampleRecord, 0),
	}
}

// RecordRequest records request metrics.
func (m *MockMetricsService) RecordRequest(_ context.Context, agentType string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, sampleRecord{
		Dimension: agentType,
		Latency:   latency,
		Success:   success,
		Timestamp: time.Now(),
	})
}

// RecordToolCall records tool call metrics.
func (m *MockMetricsService) RecordToolCall(_ context.Context, toolName string, latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.toolCalls = append(m.toolCalls, sampleRecord{
		Dimension: toolName,
		Latency:   latency,
		Success:   success,
		Timestamp: time.Now(),
	})
}

// GetStats computes statistics over the recorded samples within the range.
func (m *MockMetricsService) GetStats(_ context.Context, timeRange TimeRange) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{
		AgentStats:   make(map[string]*DimensionStat),
		ToolStats:    make(map[string]*DimensionStat),
		ErrorsByType: make(map[string]int64),
	}

	inRange := func(r sampleRecord) bool {
		if !timeRange.Start.IsZero() && r.Timestamp.Before(timeRange.Start) {
			return false
		}
		if !timeRange.End.IsZero() && r.Timestamp.After(timeRange.End) {
			return false
		}
		return true
	}

	var latencies []int64
	agentTotals := make(map[string]*mockTotals)

	for _, r := range m.requests {
		if !inRange(r) {
			continue
		}
		stats.RequestCount++
		if r.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorsByType[r.Dimension]++
		}
		latencies = append(latencies, r.Latency.Milliseconds())
		accumulate(agentTotals, r)
	}

	toolTotals := make(map[string]*mockTotals)
	for _, r := range m.toolCalls {
		if !inRange(r) {
			continue
		}
		accumulate(toolTotals, r)
	}

	stats.LatencyP50 = time.Duration(percentile(latencies, 50)) * time.Millisecond
	stats.LatencyP95 = time.Duration(percentile(latencies, 95)) * time.Millisecond

	for dim, t := range agentTotals {
		stats.AgentStats[dim] = t.stat()
	}
	for dim, t := range toolTotals {
		stats.ToolStats[dim] = t.stat()
	}

	return stats, nil
}

type mockTotals struct {
	count        int64
	successCount int64
	latencySum   time.Duration
}

func accumulate(totals map[string]*mockTotals, r sampleRecord) {
	t, ok := totals[r.Dimension]
	if !ok {
		t = &mockTotals{}
		totals[r.Dimension] = t
	}
	t.count++
	if r.Success {
		t.successCount++
	}
	t.latencySum += r.Latency
}

func (t *mockTotals) stat() *DimensionStat {
	stat := &DimensionStat{
		Count:        t.count,
		SuccessCount: t.successCount,
	}
	if t.count > 0 {
		stat.SuccessRate = float32(t.successCount) / float32(t.count)
		stat.AvgLatency = t.latencySum / time.Duration(t.count)
	}
	return stat
}

// Clear removes all recorded metrics (for testing).
func (m *MockMetricsService) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make([]sampleRecord, 0)
	m.toolCalls = make([]sampleRecord, 0)
}

// Ensure MockMetricsService implements MetricsService
var _ MetricsService = (*MockMetricsService)(nil)

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RecordAndGetStats(t *testing.T) {
	svc := NewService(nil, DefaultPersisterConfig())
	defer svc.Close()

	ctx := context.Background()

	t.Run("RecordRequest", func(t *testing.T) {
		svc.RecordRequest(ctx, "memo", 100*time.Millisecond, true)
		svc.RecordRequest(ctx, "schedule", 200*time.Millisecond, false)

		stats, err := svc.GetStats(ctx, TimeRange{
			Start: time.Now().Add(-time.Hour),
			End:   time.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.RequestCount)
		assert.Equal(t, int64(1), stats.SuccessCount)
		assert.Equal(t, int64(1), stats.ErrorsByType["schedule"])
	})

	t.Run("RecordToolCall", func(t *testing.T) {
		svc.RecordToolCall(ctx, "create_memo", 50*time.Millisecond, true)

		stats, err := svc.GetStats(ctx, TimeRange{})
		require.NoError(t, err)
		// Tool calls don't affect the agent request count.
		assert.Equal(t, int64(2), stats.RequestCount)
		assert.Equal(t, int64(1), stats.ToolStats["create_memo"].Count)
	})
}

func TestService_NoPersistence(t *testing.T) {
	svc := NewService(nil, DefaultPersisterConfig())
	defer svc.Close()

	assert.False(t, svc.HasPersistence())

	err := svc.Flush(context.Background())
	assert.ErrorIs(t, err, ErrMetricsNotConfigured)
}

func TestService_WithPersistence(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, DefaultPersisterConfig())
	defer svc.Close()

	assert.True(t, svc.HasPersistence())

	ctx := context.Background()
	svc.aggregator.now = func() time.Time { return time.Now().Add(-time.Hour) }
	svc.RecordRequest(ctx, "memo", 100*time.Millisecond, true)
	svc.RecordToolCall(ctx, "search", 30*time.Millisecond, true)
	svc.aggregator.now = time.Now

	require.NoError(t, svc.Flush(ctx))
	assert.Equal(t, 2, store.Count())
}

func TestService_GetStatsMergesPersisted(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	hour := truncateToHour(time.Now().Add(-2 * time.Hour))
	require.NoError(t, store.Save(ctx, []*Snapshot{
		{
			Kind:         MetricKindAgent,
			Dimension:    "memo",
			HourStart:    hour,
			Count:        10,
			SuccessCount: 8,
			FailureCount: 2,
			LatencySumMs: 1000,
			AvgLatencyMs: 100,
		},
		{
			Kind:         MetricKindTool,
			Dimension:    "search",
			HourStart:    hour,
			Count:        4,
			SuccessCount: 4,
			LatencySumMs: 200,
			AvgLatencyMs: 50,
		},
	}))

	svc := NewService(store, DefaultPersisterConfig())
	defer svc.Close()

	svc.RecordRequest(ctx, "memo", 100*time.Millisecond, true)

	stats, err := svc.GetStats(ctx, TimeRange{
		Start: hour.Add(-time.Hour),
		End:   time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), stats.RequestCount)
	assert.Equal(t, int64(9), stats.SuccessCount)
	assert.Equal(t, int64(2), stats.ErrorsByType["memo"])

	memo := stats.AgentStats["memo"]
	require.NotNil(t, memo)
	assert.Equal(t, int64(11), memo.Count)
	assert.Equal(t, int64(9), memo.SuccessCount)
	assert.InDelta(t, 9.0/11.0, float64(memo.SuccessRate), 0.01)
	assert.Equal(t, int64(100), memo.AvgLatency.Milliseconds())

	search := stats.ToolStats["search"]
	require.NotNil(t, search)
	assert.Equal(t, int64(4), search.Count)
	assert.Equal(t, int64(4), search.SuccessCount)
	assert.Equal(t, float32(1.0), search.SuccessRate)
}

func TestMergePersisted_ExactCounts(t *testing.T) {
	// Counts large enough that round-tripping them through float32 would
	// lose precision; the merge must stay integer-exact.
	const liveCount, liveSuccess = int64(10_000_019), int64(9_999_991)

	stats := &Stats{
		RequestCount: liveCount,
		SuccessCount: liveSuccess,
		AgentStats: map[string]*DimensionStat{
			"memo": {
				Count:        liveCount,
				SuccessCount: liveSuccess,
				SuccessRate:  float32(liveSuccess) / float32(liveCount),
				AvgLatency:   100 * time.Millisecond,
			},
		},
		ToolStats:    map[string]*DimensionStat{},
		ErrorsByType: map[string]int64{},
	}

	mergePersisted(stats, []*Snapshot{
		{
			Kind:         MetricKindAgent,
			Dimension:    "memo",
			Count:        7,
			SuccessCount: 3,
			FailureCount: 4,
			LatencySumMs: 700,
		},
	})

	memo := stats.AgentStats["memo"]
	require.NotNil(t, memo)
	assert.Equal(t, liveCount+7, memo.Count)
	assert.Equal(t, liveSuccess+3, memo.SuccessCount)
	assert.Equal(t, liveCount+7, stats.RequestCount)
	assert.Equal(t, liveSuccess+3, stats.SuccessCount)
}

func TestService_GetStatsCapsPersistedHistory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	hour := truncateToHour(time.Now().Add(-2 * time.Hour))
	batch := make([]*Snapshot, maxPersistedSnapshots+50)
	for i := range batch {
		batch[i] = &Snapshot{
			Kind:         MetricKindAgent,
			Dimension:    "memo",
			HourStart:    hour,
			Count:        1,
			SuccessCount: 1,
			LatencySumMs: 10,
		}
	}
	require.NoError(t, store.Save(ctx, batch))

	svc := NewService(store, DefaultPersisterConfig())
	defer svc.Close()

	stats, err := svc.GetStats(ctx, TimeRange{})
	require.NoError(t, err)

	// The store holds more rows than the query limit; only the capped
	// window is merged.
	assert.Equal(t, int64(maxPersistedSnapshots), stats.RequestCount)
}

func TestService_GetStatsStoreErrorFallsBackToMemory(t *testing.T) {
	svc := NewService(&failingStore{err: assert.AnError}, DefaultPersisterConfig())
	defer svc.Close()

	ctx := context.Background()
	svc.RecordRequest(ctx, "memo", 100*time.Millisecond, true)

	stats, err := svc.GetStats(ctx, TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RequestCount)
}

func TestService_Close(t *testing.T) {
	svc := NewService(nil, DefaultPersisterConfig())
	svc.Close()

	svc = NewService(NewMemoryStore(), DefaultPersisterConfig())
	svc.Close()
	// Idempotent.
	svc.Close()
}

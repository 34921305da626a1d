package metrics

import (
	"context"
	"sync"
	"time"
)

// MetricsStore is the durable sink the persister writes drained snapshots to.
// Implementations must be safe for concurrent use.
type MetricsStore interface {
	// Save persists a batch of drained snapshots.
	Save(ctx context.Context, snapshots []*Snapshot) error

	// List returns persisted snapshots matching the given filter.
	List(ctx context.Context, find *FindSnapshots) ([]*Snapshot, error)

	// DeleteOlderThan removes persisted snapshots whose hour is older than cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// FindSnapshots filters persisted snapshots.
type FindSnapshots struct {
	Kind      *MetricKind
	Dimension *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// MemoryStore is an in-memory MetricsStore used by tests, dev mode, and
// deployments without a durable backend.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
}

// NewMemoryStore creates an empty in-memory metrics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make([]*Snapshot, 0),
	}
}

// Save appends the batch to the store.
func (s *MemoryStore) Save(_ context.Context, snapshots []*Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snapshot := range snapshots {
		copied := *snapshot
		s.snapshots = append(s.snapshots, &copied)
	}
	return nil
}

// List returns snapshots matching find, oldest first.
func (s *MemoryStore) List(_ context.Context, find *FindSnapshots) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if find == nil {
		find = &FindSnapshots{}
	}

	var result []*Snapshot
	for _, snapshot := range s.snapshots {
		if find.Kind != nil && snapshot.Kind != *find.Kind {
			continue
		}
		if find.Dimension != nil && snapshot.Dimension != *find.Dimension {
			continue
		}
		if find.StartTime != nil && snapshot.HourStart.Before(*find.StartTime) {
			continue
		}
		if find.EndTime != nil && snapshot.HourStart.After(*find.EndTime) {
			continue
		}
		copied := *snapshot
		result = append(result, &copied)
		if find.Limit > 0 && len(result) >= find.Limit {
			break
		}
	}
	return result, nil
}

// DeleteOlderThan removes snapshots whose hour start is before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.snapshots[:0]
	for _, snapshot := range s.snapshots {
		if !snapshot.HourStart.Before(cutoff) {
			kept = append(kept, snapshot)
		}
	}
	s.snapshots = kept
	return nil
}

// Count returns the number of persisted snapshots.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

var _ MetricsStore = (*MemoryStore)(nil)

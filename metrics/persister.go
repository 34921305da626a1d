package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Persister handles periodic persistence of aggregated metrics to the store.
// Start launches the background flush and cleanup loops; Close stops them and
// waits until both have exited. The persister is restartable: Start may be
// called again after Close, and Close is an idempotent no-op when not running.
type Persister struct {
	store      MetricsStore
	aggregator *Aggregator

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushInterval   time.Duration
	retentionPeriod time.Duration
	cleanupInterval time.Duration
}

// PersisterConfig configures the metrics persister. Zero-valued fields resolve
// to the documented defaults.
type PersisterConfig struct {
	FlushInterval   time.Duration // How often to flush completed hour buckets (default: 1 hour)
	RetentionPeriod time.Duration // How long to keep persisted metrics (default: 30 days)
	CleanupInterval time.Duration // How often to run the retention sweep (default: 24 hours)
}

// DefaultPersisterConfig returns the default persister configuration.
func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		FlushInterval:   time.Hour,
		RetentionPeriod: 30 * 24 * time.Hour,
		CleanupInterval: 24 * time.Hour,
	}
}

// NewPersister creates a new metrics persister.
func NewPersister(store MetricsStore, agg *Aggregator, cfg PersisterConfig) *Persister {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour
	}
	if cfg.RetentionPeriod == 0 {
		cfg.RetentionPeriod = 30 * 24 * time.Hour
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}

	return &Persister{
		store:           store,
		aggregator:      agg,
		flushInterval:   cfg.FlushInterval,
		retentionPeriod: cfg.RetentionPeriod,
		cleanupInterval: cfg.CleanupInterval,
	}
}

// Start begins the background persistence and cleanup loops with fresh timers.
// Calling Start while already running is a no-op.
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(2)
	go p.flushLoop(ctx)
	go p.cleanupLoop(ctx)
}

// Close stops the persister and waits for both loops to finish. Safe to call
// multiple times and without a prior Start. The lifecycle lock is held across
// the wait so Start and Close calls racing each other serialize: a concurrent
// Start begins a fresh run only after the old loops have fully stopped, and a
// concurrent Close returns only once they have.
func (p *Persister) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.wg.Wait()
}

// Flush drains every completed hour's agent and tool buckets and persists the
// resulting snapshots in one batch. If nothing has left the current hour, it
// succeeds with zero store calls. Safe to invoke concurrently: draining
// removes buckets, so two racing flushes cannot double-persist a bucket.
//
// A store failure after the drain loses that batch; the in-memory source of
// truth is already gone. The error is returned so synchronous callers observe
// it.
func (p *Persister) Flush(ctx context.Context) error {
	// Without a store, draining would only destroy data; leave the buckets in
	// memory until a store exists.
	if p.store == nil {
		return nil
	}

	now := time.Now()

	snapshots := p.aggregator.FlushCompletedAgentMetrics(now)
	snapshots = append(snapshots, p.aggregator.FlushCompletedToolMetrics(now)...)
	if len(snapshots) == 0 {
		return nil
	}

	if err := p.store.Save(ctx, snapshots); err != nil {
		return errors.Wrapf(err, "failed to save %d metric snapshots", len(snapshots))
	}

	slog.Debug("metrics flushed", "count", len(snapshots))
	return nil
}

// Cleanup deletes persisted snapshots older than the retention period.
func (p *Persister) Cleanup(ctx context.Context) error {
	if p.store == nil {
		return nil
	}

	cutoff := time.Now().Add(-p.retentionPeriod)
	if err := p.store.DeleteOlderThan(ctx, cutoff); err != nil {
		return errors.Wrap(err, "failed to delete expired metrics")
	}

	slog.Debug("metrics cleanup completed", "cutoff", cutoff)
	return nil
}

func (p *Persister) flushLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush before shutdown
			if err := p.Flush(context.Background()); err != nil {
				slog.Error("final metrics flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				slog.Error("periodic metrics flush failed", "error", err)
			}
		}
	}
}

func (p *Persister) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Cleanup(ctx); err != nil {
				slog.Error("periodic metrics cleanup failed", "error", err)
			}
		}
	}
}

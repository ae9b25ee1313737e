package resilience

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the concurrency cap.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of in-flight operations.
	// Default: 10
	MaxConcurrent int
}

// Bulkhead caps concurrent operations for one key. Calls beyond the cap
// are rejected immediately rather than queued: a caller that cannot get a
// slot should fail fast, not starve the pool.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	active   atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Execute runs the operation if a slot is free, otherwise returns
// ErrBulkheadFull.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if !b.sem.TryAcquire(1) {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	b.active.Add(1)
	defer func() {
		b.active.Add(-1)
		b.sem.Release(1)
	}()

	return op(ctx)
}

// Metrics returns current bulkhead statistics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := b.active.Load()
	return BulkheadMetrics{
		Active:        int(active),
		Available:     b.config.MaxConcurrent - int(active),
		MaxConcurrent: b.config.MaxConcurrent,
		Rejected:      b.rejected.Load(),
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	Available     int
	MaxConcurrent int
	Rejected      int64
}

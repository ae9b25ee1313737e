package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/triunai/tenantcore/observe"
)

// OverflowPolicy selects what happens when an entry arrives at a full queue.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest queued entry to admit the new one.
	// The default: under sustained overload the audit trail stays recent
	// at the cost of completeness, and every eviction is counted.
	DropOldest OverflowPolicy = iota

	// DropNewest rejects the incoming entry and keeps the backlog intact.
	DropNewest

	// BlockWithTimeout waits up to BlockTimeout for space, then drops the
	// incoming entry.
	BlockWithTimeout
)

// String returns the policy name for logs and metrics labels.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	case BlockWithTimeout:
		return "block_with_timeout"
	default:
		return "unknown"
	}
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Capacity bounds the number of queued entries. Defaults to 1024.
	Capacity int

	// Policy selects the overflow behavior. Defaults to DropOldest.
	Policy OverflowPolicy

	// BlockTimeout bounds the wait under BlockWithTimeout.
	// Defaults to 50ms.
	BlockTimeout time.Duration

	// Logger receives drop notices. Defaults to a no-op logger.
	Logger observe.Logger

	// Metrics records queue depth and drops. Optional.
	Metrics *observe.Metrics
}

func (c *QueueConfig) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 1024
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 50 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
}

// Queue is a bounded FIFO of audit entries with a single consumer and any
// number of producers.
//
// TryEnqueue never returns an error and never blocks beyond the
// configured BlockTimeout. Enqueue ignores the caller's context
// cancellation on purpose: the audited operation already happened, so an
// aborted request must not lose its record.
type Queue struct {
	cfg QueueConfig

	ch      chan Entry
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue.
func NewQueue(cfg QueueConfig) *Queue {
	cfg.applyDefaults()
	return &Queue{
		cfg: cfg,
		ch:  make(chan Entry, cfg.Capacity),
	}
}

// TryEnqueue offers an entry to the queue. It reports whether the entry
// was accepted. A false return means this entry was dropped under
// DropNewest or BlockWithTimeout; under DropOldest the new entry is
// always accepted and an older one may have been evicted instead.
//
// The ctx is used for telemetry only. A cancelled ctx does not prevent
// the enqueue.
func (q *Queue) TryEnqueue(ctx context.Context, e Entry) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(ctx, e, "queue_closed")
		return false
	}

	select {
	case q.ch <- e:
		q.cfg.Metrics.EntryEnqueued(ctx)
		return true
	default:
	}

	switch q.cfg.Policy {
	case DropNewest:
		q.drop(ctx, e, q.cfg.Policy.String())
		return false

	case BlockWithTimeout:
		timer := time.NewTimer(q.cfg.BlockTimeout)
		defer timer.Stop()
		select {
		case q.ch <- e:
			q.cfg.Metrics.EntryEnqueued(ctx)
			return true
		case <-timer.C:
			q.drop(ctx, e, q.cfg.Policy.String())
			return false
		}

	default: // DropOldest
		for {
			select {
			case old := <-q.ch:
				q.cfg.Metrics.EntriesDequeued(ctx, 1)
				q.drop(ctx, old, q.cfg.Policy.String())
			default:
				// The consumer freed a slot first.
			}
			select {
			case q.ch <- e:
				q.cfg.Metrics.EntryEnqueued(ctx)
				return true
			default:
			}
		}
	}
}

// CompleteAndDrain closes the queue to producers and returns every entry
// still queued, in FIFO order. Further TryEnqueue calls drop their entry.
func (q *Queue) CompleteAndDrain() []Entry {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	var remaining []Entry
	for e := range q.ch {
		remaining = append(remaining, e)
	}
	if n := len(remaining); n > 0 {
		q.cfg.Metrics.EntriesDequeued(context.Background(), n)
	}
	return remaining
}

// Len returns the number of queued entries.
func (q *Queue) Len() int { return len(q.ch) }

// Capacity returns the configured bound.
func (q *Queue) Capacity() int { return q.cfg.Capacity }

// Dropped returns the total number of entries dropped since creation.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

func (q *Queue) drop(ctx context.Context, e Entry, reason string) {
	q.dropped.Add(1)
	q.cfg.Metrics.EntryDropped(ctx, reason)
	q.cfg.Logger.Warn(ctx, "audit entry dropped",
		observe.String("reason", reason),
		observe.String("tenant", e.Tenant),
		observe.String("action", e.Action),
		observe.String("entry_id", e.ID))
}

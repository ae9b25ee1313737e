package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/triunai/tenantcore/observe"
	"github.com/triunai/tenantcore/resilience"
)

// PipelineKeyPrefix prefixes the resilience pipeline key for a tenant's
// audit store, producing keys like "AuditDb:acme".
const PipelineKeyPrefix = "AuditDb:"

// Store persists audit entries into a tenant's own audit table.
//
// Contract:
//   - BulkInsert is all-or-nothing for the given slice: on error none of
//     the entries may be considered persisted.
//   - Implementations must be safe for concurrent use.
type Store interface {
	BulkInsert(ctx context.Context, tenant string, entries []Entry) error
}

// WriterState is the lifecycle state of a BatchWriter.
type WriterState int32

const (
	// StateRunning accepts wakes from the queue and the flush timer.
	StateRunning WriterState = iota
	// StateDraining is flushing the final backlog during shutdown.
	StateDraining
	// StateStopped is terminal.
	StateStopped
)

// String returns the state name.
func (s WriterState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WriterConfig configures a BatchWriter.
type WriterConfig struct {
	// Queue is the entry source. Required. The writer owns the consuming
	// side; nothing else may dequeue.
	Queue *Queue

	// Store persists grouped entries. Required.
	Store Store

	// Pipelines guards BulkInsert calls with per-tenant pipelines keyed
	// PipelineKeyPrefix + tenant. Optional; when nil inserts run unguarded.
	Pipelines *resilience.Registry

	// BatchSize triggers an immediate flush once that many entries have
	// accumulated. Defaults to 100.
	BatchSize int

	// FlushInterval bounds how stale a partial batch may get.
	// Defaults to 5s.
	FlushInterval time.Duration

	// Fallback receives the entries of a tenant group whose flush failed
	// after pipeline exhaustion. Optional; when nil failed groups are
	// dropped with a logged error.
	Fallback Sink

	// Logger receives flush failures and lifecycle events.
	// Defaults to a no-op logger.
	Logger observe.Logger

	// Metrics records flush outcomes. Optional.
	Metrics *observe.Metrics

	// Tracer wraps per-tenant flushes in spans. Optional.
	Tracer observe.Tracer
}

func (c *WriterConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
}

// BatchWriter is the single background consumer of a Queue. It batches
// entries, groups each batch by tenant and bulk-inserts every group
// through that tenant's pipeline. One group's failure never blocks
// another's, and no persistence failure ever stops the loop.
//
// Lifecycle: NewBatchWriter, Start, then Stop exactly once. Stop drains
// the full queue using a context detached from any request, bounded only
// by the deadline of the context passed to Stop.
type BatchWriter struct {
	cfg WriterConfig

	state    atomic.Int32
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	// drainDeadline is written before stopCh closes and read after, so
	// the loop observes it without further locking.
	drainDeadline time.Time
}

// NewBatchWriter creates a writer. Queue and Store are required.
func NewBatchWriter(cfg WriterConfig) (*BatchWriter, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("audit: batch writer requires a queue")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("audit: batch writer requires a store")
	}
	cfg.applyDefaults()
	return &BatchWriter{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start launches the background loop. Calling Start twice is a no-op.
func (w *BatchWriter) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run()
}

// State returns the current lifecycle state.
func (w *BatchWriter) State() WriterState {
	return WriterState(w.state.Load())
}

// Stop drains the queue, flushes everything and stops the loop. It
// blocks until draining completes or ctx expires; on expiry the loop
// keeps draining in the background and undrained entries are a logged
// loss, not a crash.
func (w *BatchWriter) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		if d, ok := ctx.Deadline(); ok {
			w.drainDeadline = d
		}
		close(w.stopCh)
	})
	select {
	case <-w.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *BatchWriter) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, w.cfg.BatchSize)
	ctx := context.Background()

	for {
		select {
		case <-w.stopCh:
			w.drain(batch)
			return

		case e, ok := <-w.cfg.Queue.ch:
			if !ok {
				// Queue was closed out from under the writer.
				w.drain(batch)
				return
			}
			w.cfg.Metrics.EntriesDequeued(ctx, 1)
			batch = append(batch, e)
			batch = w.fill(ctx, batch)
			if len(batch) >= w.cfg.BatchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// fill drains everything immediately available, flushing full batches as
// they form.
func (w *BatchWriter) fill(ctx context.Context, batch []Entry) []Entry {
	for {
		if len(batch) >= w.cfg.BatchSize {
			w.flush(ctx, batch)
			batch = batch[:0]
		}
		select {
		case e, ok := <-w.cfg.Queue.ch:
			if !ok {
				return batch
			}
			w.cfg.Metrics.EntriesDequeued(ctx, 1)
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

// drain runs the shutdown sequence: close the queue to producers, append
// whatever remained, flush it all and transition to Stopped. The flush
// context derives from Background, bounded only by the Stop deadline;
// request cancellation never reaches this path.
func (w *BatchWriter) drain(batch []Entry) {
	w.state.Store(int32(StateDraining))

	ctx := context.Background()
	if !w.drainDeadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, w.drainDeadline)
		defer cancel()
	}

	remaining := w.cfg.Queue.CompleteAndDrain()
	batch = append(batch, remaining...)
	if len(batch) > 0 {
		w.cfg.Logger.Info(ctx, "draining audit backlog",
			observe.String("entries", fmt.Sprintf("%d", len(batch))))
		w.flush(ctx, batch)
	}

	w.state.Store(int32(StateStopped))
}

// flush groups the batch by tenant and persists each group through its
// own pipeline. Failures are isolated per group and never propagate.
func (w *BatchWriter) flush(ctx context.Context, batch []Entry) {
	groups := make(map[string][]Entry)
	order := make([]string, 0, 4)
	for _, e := range batch {
		if _, seen := groups[e.Tenant]; !seen {
			order = append(order, e.Tenant)
		}
		groups[e.Tenant] = append(groups[e.Tenant], e)
	}

	for _, tenant := range order {
		w.flushGroup(ctx, tenant, groups[tenant])
	}
}

func (w *BatchWriter) flushGroup(ctx context.Context, tenant string, entries []Entry) {
	flushCtx := ctx
	var span trace.Span
	if w.cfg.Tracer != nil {
		flushCtx, span = w.cfg.Tracer.StartFlush(ctx, tenant, len(entries))
	}

	op := func(ctx context.Context) error {
		return w.cfg.Store.BulkInsert(ctx, tenant, entries)
	}

	start := time.Now()
	var err error
	if w.cfg.Pipelines != nil {
		err = w.cfg.Pipelines.Execute(flushCtx, PipelineKeyPrefix+tenant, op)
	} else {
		err = op(flushCtx)
	}
	w.cfg.Metrics.FlushResult(ctx, tenant, len(entries), time.Since(start), err)
	if span != nil {
		w.cfg.Tracer.EndSpan(span, err)
	}
	if err == nil {
		return
	}

	w.cfg.Logger.Error(ctx, "audit flush failed",
		observe.String("tenant", tenant),
		observe.String("entries", fmt.Sprintf("%d", len(entries))),
		observe.Err(err))

	if w.cfg.Fallback == nil {
		return
	}
	w.emitFallback(ctx, tenant, entries)
}

// emitFallback hands a failed group to the fallback sink, one entry at a
// time. A panicking sink is contained; the loop must survive anything.
func (w *BatchWriter) emitFallback(ctx context.Context, tenant string, entries []Entry) {
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.Error(ctx, "audit fallback sink panicked",
				observe.String("tenant", tenant),
				observe.String("panic", fmt.Sprintf("%v", r)))
		}
	}()
	for _, e := range entries {
		w.cfg.Fallback.Emit(ctx, e)
	}
	w.cfg.Metrics.FallbackEmitted(ctx, tenant, len(entries))
}

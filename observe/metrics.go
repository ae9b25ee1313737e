package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the core's operational events: tenant resolutions,
// pipeline behavior and the audit queue/writer lifecycle.
//
// All methods are safe on a nil receiver, so components can hold a
// *Metrics without nil checks at every call site.
type Metrics struct {
	resolveTotal  metric.Int64Counter
	resolveMisses metric.Int64Counter
	lookupHist    metric.Float64Histogram

	retryTotal        metric.Int64Counter
	circuitTransition metric.Int64Counter

	queueDepth    metric.Int64UpDownCounter
	entriesIn     metric.Int64Counter
	entriesDrop   metric.Int64Counter
	flushEntries  metric.Int64Counter
	flushFailures metric.Int64Counter
	flushFallback metric.Int64Counter
	flushHist     metric.Float64Histogram
}

// NewMetrics creates the instrument set on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.resolveTotal, err = meter.Int64Counter(
		"tenant.resolve.total",
		metric.WithDescription("Tenant resolutions, cache hits included"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.resolveMisses, err = meter.Int64Counter(
		"tenant.resolve.misses",
		metric.WithDescription("Tenant resolutions that missed the cache"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.lookupHist, err = meter.Float64Histogram(
		"tenant.lookup.duration_ms",
		metric.WithDescription("Backing-store lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.retryTotal, err = meter.Int64Counter(
		"pipeline.retries",
		metric.WithDescription("Retry attempts across all pipelines"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.circuitTransition, err = meter.Int64Counter(
		"pipeline.circuit.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}

	if m.queueDepth, err = meter.Int64UpDownCounter(
		"audit.queue.depth",
		metric.WithDescription("Entries currently held in the audit queue"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.entriesIn, err = meter.Int64Counter(
		"audit.queue.enqueued",
		metric.WithDescription("Entries accepted by the audit queue"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.entriesDrop, err = meter.Int64Counter(
		"audit.queue.dropped",
		metric.WithDescription("Entries dropped by the overflow policy"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.flushEntries, err = meter.Int64Counter(
		"audit.flush.entries",
		metric.WithDescription("Entries persisted by the batch writer"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.flushFailures, err = meter.Int64Counter(
		"audit.flush.failures",
		metric.WithDescription("Tenant groups whose flush exhausted the pipeline"),
		metric.WithUnit("{batch}"),
	); err != nil {
		return nil, err
	}

	if m.flushFallback, err = meter.Int64Counter(
		"audit.flush.fallback",
		metric.WithDescription("Entries diverted to the fallback sink"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.flushHist, err = meter.Float64Histogram(
		"audit.flush.duration_ms",
		metric.WithDescription("Per-tenant flush duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// ResolveResult records one resolution and whether it hit the cache.
func (m *Metrics) ResolveResult(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	m.resolveTotal.Add(ctx, 1)
	if !hit {
		m.resolveMisses.Add(ctx, 1)
	}
}

// LookupDuration records one backing-store lookup.
func (m *Metrics) LookupDuration(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.lookupHist.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.Bool("error", err != nil)))
}

// RetryAttempt records one retry on the given pipeline key.
func (m *Metrics) RetryAttempt(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline", key)))
}

// CircuitTransition records a breaker state change on the given key.
func (m *Metrics) CircuitTransition(ctx context.Context, key, from, to string) {
	if m == nil {
		return
	}
	m.circuitTransition.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", key),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// EntryEnqueued records an accepted audit entry.
func (m *Metrics) EntryEnqueued(ctx context.Context) {
	if m == nil {
		return
	}
	m.entriesIn.Add(ctx, 1)
	m.queueDepth.Add(ctx, 1)
}

// EntryDropped records an entry shed by the overflow policy. Depth is
// tracked separately: an evicted entry also passes through
// EntriesDequeued, a rejected one was never counted.
func (m *Metrics) EntryDropped(ctx context.Context, policy string) {
	if m == nil {
		return
	}
	m.entriesDrop.Add(ctx, 1, metric.WithAttributes(attribute.String("policy", policy)))
}

// EntriesDequeued lowers the queue depth after the writer drains n entries.
func (m *Metrics) EntriesDequeued(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.queueDepth.Add(ctx, -int64(n))
}

// FlushResult records one per-tenant flush.
func (m *Metrics) FlushResult(ctx context.Context, tenant string, entries int, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tenant", tenant))
	if err != nil {
		m.flushFailures.Add(ctx, 1, attrs)
	} else {
		m.flushEntries.Add(ctx, int64(entries), attrs)
	}
	m.flushHist.Record(ctx, float64(d.Milliseconds()), attrs)
}

// FallbackEmitted records entries diverted to the fallback sink.
func (m *Metrics) FallbackEmitted(ctx context.Context, tenant string, entries int) {
	if m == nil {
		return
	}
	m.flushFallback.Add(ctx, int64(entries),
		metric.WithAttributes(attribute.String("tenant", tenant)))
}

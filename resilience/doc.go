// Package resilience wraps outbound backend calls in composed
// timeout, retry, circuit-breaker and bulkhead policies, cached per
// logical key.
//
// # Pipeline
//
// A Pipeline applies its stages in a fixed outer-to-inner order:
//
//  1. Timeout: a hard wall-clock budget for the whole call, retries
//     included. Inner command timeouts must be shorter.
//  2. Retry: re-attempts transient failures with delays read from a
//     precomputed table, each jittered by ±25%.
//  3. Circuit breaker: a failure-ratio breaker over a rolling sampling
//     window; while open, calls fail fast with ErrCircuitOpen.
//  4. Bulkhead (optional): a per-key cap on in-flight calls; excess
//     calls are rejected with ErrBulkheadFull rather than queued.
//
// Retry and the breaker share one transience predicate (IsTransient),
// so a fatal error is neither retried nor counted against the backend.
//
// # Registry
//
// Pipelines are built lazily and cached by key through a Registry.
// Keys combine backend identity with tenant where state must be
// isolated, e.g. "MasterDb", "TenantDb:acme", "AuditDb:acme":
//
//	reg := resilience.NewRegistry(source)
//	err := reg.Execute(ctx, "TenantDb:acme", func(ctx context.Context) error {
//	    return db.QueryRowContext(ctx, q).Scan(&out)
//	})
//
// Concurrent first use of a key builds exactly one pipeline, so breaker
// state is never split across callers.
package resilience

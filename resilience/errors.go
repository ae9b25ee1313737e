package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker short-circuits a
	// call without executing it.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when the per-key concurrency cap is
	// exceeded. Calls are rejected rather than queued.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when the pipeline's wall-clock budget expires.
	// The budget covers the whole call, retries included.
	ErrTimeout = errors.New("resilience: operation timed out")
)

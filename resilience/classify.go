package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// BackendKind identifies the class of backend an error originated from.
// Classification tables differ per kind: a SQLSTATE only means something
// for SQL backends, a LOADING reply only for the cache.
type BackendKind int

const (
	// BackendSQL classifies errors from PostgreSQL-backed stores.
	BackendSQL BackendKind = iota
	// BackendCache classifies errors from the distributed cache.
	BackendCache
)

// String returns the string representation of the backend kind.
func (k BackendKind) String() string {
	switch k {
	case BackendSQL:
		return "sql"
	case BackendCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Transient SQLSTATE codes. Connection failures (class 08), serialization
// and deadlock failures (40001, 40P01), operator-initiated shutdown
// (57P01..57P03) and pool exhaustion (53300) are all safe to retry.
var transientSQLStates = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// Cache server replies that indicate a temporarily unusable node.
var transientCacheReplies = []string{
	"loading",
	"readonly",
	"clusterdown",
	"tryagain",
	"busy",
}

// IsTransient reports whether err is worth retrying against the given
// backend kind. It is a pure predicate: no state, no I/O.
//
// Fatal errors (bad input, constraint violations, auth failures) always
// return false; retrying them can only repeat the failure. Both the retry
// stage and the circuit breaker consult this predicate so they agree on
// what counts as a failure worth reacting to.
func IsTransient(err error, kind BackendKind) bool {
	if err == nil {
		return false
	}

	// A call the pipeline short-circuited never reached the backend.
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBulkheadFull) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Deadlines and network-level failures are transient for every kind.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	if isNetworkError(err) {
		return true
	}

	switch kind {
	case BackendSQL:
		return isTransientSQL(err)
	case BackendCache:
		return isTransientCache(err)
	default:
		return false
	}
}

// Classifier returns an IsTransient predicate bound to a backend kind,
// in the shape the retry and circuit-breaker hooks expect.
func Classifier(kind BackendKind) func(error) bool {
	return func(err error) bool {
		return IsTransient(err, kind)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isTransientSQL(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") { // connection_exception class
			return true
		}
		return transientSQLStates[pgErr.Code]
	}
	return false
}

func isTransientCache(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, reply := range transientCacheReplies {
		if strings.HasPrefix(msg, reply) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout")
}

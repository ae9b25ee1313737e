package audit

import (
	"context"
	"fmt"

	"github.com/triunai/tenantcore/observe"
)

// Sink receives audit entries that could not be persisted to their
// tenant's store.
//
// Contract:
//   - Emit is best-effort and must not block for long.
//   - Implementations should not panic; the writer contains panics but
//     loses the remainder of the group when one escapes.
type Sink interface {
	Emit(ctx context.Context, e Entry)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Entry)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Entry) { f(ctx, e) }

// LoggerSink writes unpersisted entries to a structured log as a lossy
// last resort. Payloads are not logged; the entry survives as metadata
// only.
type LoggerSink struct {
	logger observe.Logger
}

var _ Sink = (*LoggerSink)(nil)

// NewLoggerSink creates a sink over the given logger.
func NewLoggerSink(logger observe.Logger) *LoggerSink {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &LoggerSink{logger: logger}
}

// Emit logs the entry's metadata at error level.
func (s *LoggerSink) Emit(ctx context.Context, e Entry) {
	s.logger.Error(ctx, "audit entry not persisted",
		observe.String("entry_id", e.ID),
		observe.String("correlation_id", e.CorrelationID),
		observe.String("tenant", e.Tenant),
		observe.String("action", e.Action),
		observe.String("class", string(e.Class)),
		observe.String("user_id", e.Actor.UserID),
		observe.String("outcome", fmt.Sprintf("success=%t status=%d", e.Outcome.Success, e.Outcome.StatusCode)),
		observe.String("timestamp", e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")))
}

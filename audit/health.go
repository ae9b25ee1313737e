package audit

import (
	"context"
	"fmt"

	"github.com/triunai/tenantcore/health"
)

// WriterCheckerConfig tunes the writer liveness checker.
type WriterCheckerConfig struct {
	// DepthWarnRatio is the queue fill ratio that degrades the status.
	// Defaults to 0.8.
	DepthWarnRatio float64
}

// WriterChecker reports the batch writer's liveness: its lifecycle state
// and how full the queue is. A stopped writer is unhealthy, a nearly
// full queue is degraded.
type WriterChecker struct {
	writer *BatchWriter
	queue  *Queue
	cfg    WriterCheckerConfig
}

var _ health.Checker = (*WriterChecker)(nil)

// NewWriterChecker creates a checker over the writer and its queue.
func NewWriterChecker(writer *BatchWriter, queue *Queue, cfg WriterCheckerConfig) *WriterChecker {
	if cfg.DepthWarnRatio <= 0 || cfg.DepthWarnRatio >= 1 {
		cfg.DepthWarnRatio = 0.8
	}
	return &WriterChecker{writer: writer, queue: queue, cfg: cfg}
}

// Name returns the checker name.
func (c *WriterChecker) Name() string { return "audit_writer" }

// Check reports the writer's state and queue pressure.
func (c *WriterChecker) Check(_ context.Context) health.Result {
	state := c.writer.State()
	depth := c.queue.Len()
	capacity := c.queue.Capacity()

	details := map[string]any{
		"state":    state.String(),
		"depth":    depth,
		"capacity": capacity,
		"dropped":  c.queue.Dropped(),
	}

	switch state {
	case StateStopped:
		return health.Unhealthy("audit writer stopped", health.ErrCheckFailed).WithDetails(details)
	case StateDraining:
		return health.Degraded("audit writer draining").WithDetails(details)
	}

	if capacity > 0 && float64(depth)/float64(capacity) >= c.cfg.DepthWarnRatio {
		return health.Degraded(fmt.Sprintf("audit queue at %d/%d", depth, capacity)).WithDetails(details)
	}
	return health.Healthy("audit writer running").WithDetails(details)
}

package observe

import (
	"context"
	"time"

	"github.com/triunai/tenantcore/resilience"
)

// PipelineHooks bridges pipeline events into logging and metrics.
// The returned hooks are observational only; they never block and never
// influence pipeline control flow.
func PipelineHooks(logger Logger, metrics *Metrics) resilience.Hooks {
	if logger == nil {
		logger = NopLogger()
	}

	return resilience.Hooks{
		OnRetry: func(key string, attempt int, err error, delay time.Duration) {
			ctx := context.Background()
			metrics.RetryAttempt(ctx, key)
			logger.Warn(ctx, "retrying after transient failure",
				String("pipeline", key),
				Field{Key: "attempt", Value: attempt},
				Field{Key: "delay_ms", Value: delay.Milliseconds()},
				Err(err),
			)
		},
		OnStateChange: func(key string, from, to resilience.State) {
			ctx := context.Background()
			metrics.CircuitTransition(ctx, key, from.String(), to.String())
			fields := []Field{
				String("pipeline", key),
				String("from", from.String()),
				String("to", to.String()),
			}
			if to == resilience.StateOpen {
				logger.Error(ctx, "circuit opened", fields...)
			} else {
				logger.Info(ctx, "circuit state changed", fields...)
			}
		},
	}
}

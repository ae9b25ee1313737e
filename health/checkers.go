package health

import (
	"context"
	"time"
)

// Pinger is anything that can verify its backend with a ping. The redis
// cache and the postgres stores satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingerChecker wraps a Pinger as a named checker. Each check is
// bounded by timeout (default 2s).
func NewPingerChecker(name string, p Pinger, timeout time.Duration) *CheckerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		if err := p.Ping(ctx); err != nil {
			return Unhealthy(name+" unreachable", err).WithDuration(time.Since(start))
		}
		return Healthy(name + " reachable").WithDuration(time.Since(start))
	})
}

// pingFunc adapts a bare ping function to Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// NewPingCheckerFunc wraps a ping function as a named checker.
func NewPingCheckerFunc(name string, ping func(ctx context.Context) error, timeout time.Duration) *CheckerFunc {
	return NewPingerChecker(name, pingFunc(ping), timeout)
}

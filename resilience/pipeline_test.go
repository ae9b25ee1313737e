package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func testSettings() Settings {
	return Settings{
		Kind:              BackendSQL,
		Timeout:           time.Second,
		RetryCount:        2,
		RetryDelays:       []time.Duration{time.Millisecond, time.Millisecond},
		FailureRatio:      0.5,
		SamplingDuration:  time.Minute,
		MinimumThroughput: 10,
		BreakDuration:     time.Minute,
	}
}

func TestPipeline_TransientErrorRetried(t *testing.T) {
	p := NewPipeline("test", testSettings())

	var calls atomic.Int32
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return syscall.ECONNRESET
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPipeline_FatalErrorNotRetried(t *testing.T) {
	p := NewPipeline("test", testSettings())

	fatal := errors.New("unique constraint violated")
	var calls atomic.Int32
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return fatal
	})

	if err != fatal {
		t.Errorf("Execute() error = %v, want %v unchanged", err, fatal)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPipeline_TimeoutCoversRetries(t *testing.T) {
	s := testSettings()
	s.Timeout = 50 * time.Millisecond
	s.RetryCount = 100
	s.RetryDelays = []time.Duration{20 * time.Millisecond}
	s.DefaultRetryDelay = 20 * time.Millisecond
	p := NewPipeline("test", s)

	start := time.Now()
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		return syscall.ECONNRESET
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("Execute() took %v, want ~50ms", elapsed)
	}
}

func TestPipeline_CircuitOpenNotRetried(t *testing.T) {
	s := testSettings()
	s.MinimumThroughput = 2
	p := NewPipeline("test", s)

	// Trip the breaker.
	for i := 0; i < 2; i++ {
		_ = p.Execute(context.Background(), func(ctx context.Context) error {
			return syscall.ECONNRESET
		})
	}
	if p.CircuitState() != StateOpen {
		t.Fatalf("CircuitState() = %v, want open", p.CircuitState())
	}

	var calls atomic.Int32
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 (fail fast)", calls.Load())
	}
}

func TestPipeline_BreakerCountsAttemptsNotCalls(t *testing.T) {
	s := testSettings()
	s.RetryCount = 4
	s.RetryDelays = []time.Duration{time.Millisecond}
	s.DefaultRetryDelay = time.Millisecond
	s.MinimumThroughput = 5
	p := NewPipeline("test", s)

	// One caller-visible call, five attempts: enough throughput to trip.
	_ = p.Execute(context.Background(), func(ctx context.Context) error {
		return syscall.ECONNRESET
	})

	if p.CircuitState() != StateOpen {
		t.Errorf("CircuitState() = %v, want open after 5 failed attempts", p.CircuitState())
	}
}

func TestPipeline_BulkheadRejectsOverflow(t *testing.T) {
	s := testSettings()
	s.RetryCount = 0
	s.MaxConcurrent = 1
	p := NewPipeline("test", s)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := p.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() = %v, want ErrBulkheadFull", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("held call error = %v, want nil", err)
	}
}

func TestPipeline_HooksObserveRetriesAndTransitions(t *testing.T) {
	var retries atomic.Int32
	var transitions atomic.Int32

	s := testSettings()
	s.MinimumThroughput = 3
	p := NewPipeline("TenantDb:acme", s, WithHooks(Hooks{
		OnRetry: func(key string, attempt int, err error, delay time.Duration) {
			if key != "TenantDb:acme" {
				t.Errorf("OnRetry key = %q, want TenantDb:acme", key)
			}
			retries.Add(1)
		},
		OnStateChange: func(key string, from, to State) {
			transitions.Add(1)
		},
	}))

	_ = p.Execute(context.Background(), func(ctx context.Context) error {
		return syscall.ECONNRESET
	})

	if retries.Load() != 2 {
		t.Errorf("OnRetry fired %d times, want 2", retries.Load())
	}
	if transitions.Load() != 1 {
		t.Errorf("OnStateChange fired %d times, want 1 (closed>open)", transitions.Load())
	}
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
	if cb.config.FailureRatio != 0.5 {
		t.Errorf("FailureRatio = %v, want 0.5", cb.config.FailureRatio)
	}
	if cb.config.MinimumThroughput != 10 {
		t.Errorf("MinimumThroughput = %d, want 10", cb.config.MinimumThroughput)
	}
	if cb.config.BreakDuration != 30*time.Second {
		t.Errorf("BreakDuration = %v, want 30s", cb.config.BreakDuration)
	}
}

func TestCircuitBreaker_OpensOnFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 10,
		SamplingDuration:  time.Minute,
		BreakDuration:     time.Minute,
	})

	testErr := errors.New("test error")

	// 6 failures and 4 successes: ratio 0.6 over 10 observed calls.
	for i := 0; i < 10; i++ {
		fail := i < 6
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			if fail {
				return testErr
			}
			return nil
		})
	}

	if cb.State() != StateOpen {
		t.Fatalf("After 6/10 failures, state = %v, want open", cb.State())
	}

	// The 11th call must fail fast without invoking the operation.
	invoked := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() when open = %v, want ErrCircuitOpen", err)
	}
	if invoked {
		t.Error("Operation was invoked while the circuit was open")
	}
}

func TestCircuitBreaker_BelowMinimumThroughputStaysClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 10,
		SamplingDuration:  time.Minute,
	})

	testErr := errors.New("test error")

	// 9 straight failures: ratio 1.0 but throughput below the minimum.
	for i := 0; i < 9; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}

	if cb.State() != StateClosed {
		t.Errorf("Below minimum throughput, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     20 * time.Millisecond,
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(30 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Fatalf("After break duration, state = %v, want half-open", cb.State())
	}

	// Successful probe closes the circuit.
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("Probe error = %v, want nil", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("After successful probe, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     20 * time.Millisecond,
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}

	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if err != testErr {
		t.Errorf("Probe error = %v, want %v", err, testErr)
	}
	if cb.State() != StateOpen {
		t.Errorf("After failed probe, state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     10 * time.Millisecond,
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}
	time.Sleep(20 * time.Millisecond)

	// First caller takes the probe slot and holds it.
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// A second caller during the probe is rejected.
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("Second caller executed during half-open probe")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Concurrent probe error = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Probe error = %v, want nil", err)
	}
}

func TestCircuitBreaker_CancelledCallsDoNotDiluteRatio(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     time.Minute,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
	})

	// A burst of caller cancellations around two genuine backend
	// failures. Cancellations are recorded as neither success nor
	// failure, so the two failures alone satisfy the ratio.
	testErr := errors.New("backend down")
	for i := 0; i < 12; i++ {
		fail := i == 5 || i == 11
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			if fail {
				return testErr
			}
			return context.Canceled
		})
	}

	if cb.State() != StateOpen {
		t.Errorf("After cancellation burst with 2 failures, state = %v, want open", cb.State())
	}
	m := cb.Metrics()
	if m.WindowLen != 2 || m.Failures != 2 {
		t.Errorf("Window = %d calls / %d failures, want 2/2 (cancellations unrecorded)", m.WindowLen, m.Failures)
	}
}

func TestCircuitBreaker_CancelledProbeStaysHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     10 * time.Millisecond,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
	})

	testErr := errors.New("backend down")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}
	time.Sleep(20 * time.Millisecond)

	// A cancelled trial proves nothing about the backend.
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})
	if cb.State() != StateHalfOpen {
		t.Fatalf("After cancelled trial, state = %v, want half-open", cb.State())
	}

	// The next trial still runs and a success closes the circuit.
	if err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("Trial after cancellation error = %v, want nil", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("After successful trial, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
		BreakDuration:     10 * time.Millisecond,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRatio:      0.5,
		MinimumThroughput: 2,
		SamplingDuration:  time.Minute,
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("After reset, state = %v, want closed", cb.State())
	}
	m := cb.Metrics()
	if m.WindowLen != 0 {
		t.Errorf("After reset, window length = %d, want 0", m.WindowLen)
	}
}

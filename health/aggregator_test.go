package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func healthyChecker(name string) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		return Healthy(name + " ok")
	})
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator(0)
	agg.Register("master_db", healthyChecker("master_db"))
	agg.Register("cache", healthyChecker("cache"))
	agg.Register("audit_writer", NewCheckerFunc("audit_writer", func(ctx context.Context) Result {
		return Degraded("audit queue at 90/100")
	}))

	results := agg.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("CheckAll returned %d results, want 3", len(results))
	}
	if results["master_db"].Status != StatusHealthy {
		t.Errorf("master_db status = %v, want %v", results["master_db"].Status, StatusHealthy)
	}
	if results["audit_writer"].Status != StatusDegraded {
		t.Errorf("audit_writer status = %v, want %v", results["audit_writer"].Status, StatusDegraded)
	}
}

func TestAggregator_CheckAll_Empty(t *testing.T) {
	agg := NewAggregator(0)
	results := agg.CheckAll(context.Background())
	if len(results) != 0 {
		t.Errorf("CheckAll on empty aggregator returned %d results, want 0", len(results))
	}
	if got := agg.OverallStatus(results); got != StatusHealthy {
		t.Errorf("OverallStatus with no probes = %v, want %v", got, StatusHealthy)
	}
}

func TestAggregator_RegisterReplaces(t *testing.T) {
	agg := NewAggregator(0)
	agg.Register("master_db", NewCheckerFunc("master_db", func(ctx context.Context) Result {
		return Unhealthy("master_db unreachable", ErrCheckFailed)
	}))
	agg.Register("master_db", healthyChecker("master_db"))

	names := agg.CheckerNames()
	if len(names) != 1 || names[0] != "master_db" {
		t.Fatalf("CheckerNames = %v, want [master_db]", names)
	}
	results := agg.CheckAll(context.Background())
	if results["master_db"].Status != StatusHealthy {
		t.Errorf("replaced checker status = %v, want %v", results["master_db"].Status, StatusHealthy)
	}
}

func TestAggregator_CheckerNamesOrder(t *testing.T) {
	agg := NewAggregator(0)
	agg.Register("master_db", healthyChecker("master_db"))
	agg.Register("cache", healthyChecker("cache"))
	agg.Register("audit_writer", healthyChecker("audit_writer"))

	names := agg.CheckerNames()
	want := []string{"master_db", "cache", "audit_writer"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("CheckerNames[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestAggregator_SlowProbeTimesOut(t *testing.T) {
	agg := NewAggregator(50 * time.Millisecond)
	agg.Register("cache", healthyChecker("cache"))
	agg.Register("master_db", NewCheckerFunc("master_db", func(ctx context.Context) Result {
		select {
		case <-time.After(5 * time.Second):
			return Healthy("master_db ok")
		case <-ctx.Done():
			<-time.After(5 * time.Second)
			return Healthy("too late")
		}
	}))

	start := time.Now()
	results := agg.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("CheckAll took %v, want well under 1s", elapsed)
	}

	got := results["master_db"]
	if got.Status != StatusUnhealthy {
		t.Errorf("slow probe status = %v, want %v", got.Status, StatusUnhealthy)
	}
	if !errors.Is(got.Error, ErrCheckTimeout) {
		t.Errorf("slow probe error = %v, want ErrCheckTimeout", got.Error)
	}
	if results["cache"].Status != StatusHealthy {
		t.Errorf("cache status = %v, want %v (must not be masked by slow sibling)", results["cache"].Status, StatusHealthy)
	}
}

func TestAggregator_OverallStatus(t *testing.T) {
	agg := NewAggregator(0)

	results := map[string]Result{
		"master_db": Healthy("ok"),
		"cache":     Healthy("ok"),
	}
	if got := agg.OverallStatus(results); got != StatusHealthy {
		t.Errorf("all healthy: OverallStatus = %v, want %v", got, StatusHealthy)
	}

	results["audit_writer"] = Degraded("audit queue filling")
	if got := agg.OverallStatus(results); got != StatusDegraded {
		t.Errorf("one degraded: OverallStatus = %v, want %v", got, StatusDegraded)
	}

	results["master_db"] = Unhealthy("master_db unreachable", ErrCheckFailed)
	if got := agg.OverallStatus(results); got != StatusUnhealthy {
		t.Errorf("one unhealthy: OverallStatus = %v, want %v", got, StatusUnhealthy)
	}
}

func TestAggregator_ResultMetadata(t *testing.T) {
	agg := NewAggregator(0)
	agg.Register("cache", healthyChecker("cache"))

	results := agg.CheckAll(context.Background())
	got := results["cache"]
	if got.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", got.Duration)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want populated")
	}
}

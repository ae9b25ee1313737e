package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/triunai/tenantcore/cache"
	"github.com/triunai/tenantcore/resilience"
	"github.com/triunai/tenantcore/secret"
)

var _ Expander = (*secret.Resolver)(nil)

// countingStore counts lookups and serves a fixed table of descriptors.
type countingStore struct {
	lookups atomic.Int64
	table   map[string]Descriptor
	err     error        // persistent: fail every call
	failErr error        // bounded: fail the first failN calls, then succeed
	failN   atomic.Int64 // fail this many calls with failErr before succeeding
}

func (s *countingStore) Lookup(_ context.Context, key string) (Descriptor, bool, error) {
	s.lookups.Add(1)
	if s.failN.Load() > 0 {
		s.failN.Add(-1)
		return Descriptor{}, false, s.failErr
	}
	if s.err != nil {
		return Descriptor{}, false, s.err
	}
	d, ok := s.table[key]
	return d, ok, nil
}

// faultyCache fails every operation.
type faultyCache struct{}

func (faultyCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache unavailable")
}
func (faultyCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache unavailable")
}
func (faultyCache) Remove(context.Context, string) error {
	return errors.New("cache unavailable")
}

func acmeStore() *countingStore {
	return &countingStore{table: map[string]Descriptor{
		"ACME":   {Name: "ACME", DSN: "db://acme"},
		"globex": {Name: "globex", DSN: "db://globex"},
	}}
}

func newTestResolver(t *testing.T, cfg ResolverConfig) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestResolver_MissThenHit(t *testing.T) {
	store := acmeStore()
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory()})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := r.Resolve(ctx, "ACME")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.DSN != "db://acme" {
			t.Errorf("Resolve().DSN = %q, want %q", d.DSN, "db://acme")
		}
	}
	if got := store.lookups.Load(); got != 1 {
		t.Errorf("store lookups = %d, want 1", got)
	}
}

func TestResolver_UnknownTenant(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{Store: acmeStore(), Cache: cache.NewMemory()})

	_, err := r.Resolve(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolver_EmptyKey(t *testing.T) {
	r := newTestResolver(t, ResolverConfig{Store: acmeStore()})

	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Resolve() error = %v, want ErrEmptyKey", err)
	}
}

func TestResolver_RequiresStore(t *testing.T) {
	if _, err := NewResolver(ResolverConfig{}); err == nil {
		t.Fatalf("NewResolver() with nil store should fail")
	}
}

func TestResolver_ConcurrentMissesCollapse(t *testing.T) {
	store := acmeStore()
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory()})

	const callers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, callers)
	descs := make([]Descriptor, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			descs[i], errs[i] = r.Resolve(context.Background(), "ACME")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: Resolve() error = %v", i, errs[i])
		}
		if descs[i].DSN != "db://acme" {
			t.Errorf("caller %d: DSN = %q, want %q", i, descs[i].DSN, "db://acme")
		}
	}
	if got := store.lookups.Load(); got != 1 {
		t.Errorf("store lookups = %d, want 1", got)
	}
}

func TestResolver_ExpiryTriggersSingleRefresh(t *testing.T) {
	store := acmeStore()
	r := newTestResolver(t, ResolverConfig{
		Store: store,
		Cache: cache.NewMemory(),
		TTL:   20 * time.Millisecond,
	})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, "ACME"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	time.Sleep(40 * time.Millisecond)

	const callers = 10
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := r.Resolve(ctx, "ACME"); err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := store.lookups.Load(); got != 2 {
		t.Errorf("store lookups = %d, want 2 (initial + one refresh)", got)
	}
}

func TestResolver_DistinctTenantsResolveIndependently(t *testing.T) {
	store := acmeStore()
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory()})

	ctx := context.Background()
	a, err := r.Resolve(ctx, "ACME")
	if err != nil {
		t.Fatalf("Resolve(ACME) error = %v", err)
	}
	b, err := r.Resolve(ctx, "globex")
	if err != nil {
		t.Fatalf("Resolve(globex) error = %v", err)
	}
	if a.DSN == b.DSN {
		t.Errorf("tenants share DSN %q", a.DSN)
	}
	if got := store.lookups.Load(); got != 2 {
		t.Errorf("store lookups = %d, want 2", got)
	}
}

func TestResolver_CacheFailureDegradesToStore(t *testing.T) {
	store := acmeStore()
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: faultyCache{}})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := r.Resolve(ctx, "ACME")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.DSN != "db://acme" {
			t.Errorf("Resolve().DSN = %q, want %q", d.DSN, "db://acme")
		}
	}
	// Every resolve hits the store while the cache is down.
	if got := store.lookups.Load(); got != 2 {
		t.Errorf("store lookups = %d, want 2", got)
	}
}

func TestResolver_CorruptCacheEntryFallsThrough(t *testing.T) {
	store := acmeStore()
	mem := cache.NewMemory()
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: mem})

	ctx := context.Background()
	if err := mem.Set(ctx, "tenant:ACME", []byte("{not json"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	d, err := r.Resolve(ctx, "ACME")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.DSN != "db://acme" {
		t.Errorf("Resolve().DSN = %q, want %q", d.DSN, "db://acme")
	}
	if got := store.lookups.Load(); got != 1 {
		t.Errorf("store lookups = %d, want 1", got)
	}
}

func TestResolver_InvalidateForcesRefresh(t *testing.T) {
	store := acmeStore()
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory()})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, "ACME"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := r.Invalidate(ctx, "ACME"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := r.Resolve(ctx, "ACME"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := store.lookups.Load(); got != 2 {
		t.Errorf("store lookups = %d, want 2", got)
	}
}

type staticExpander struct{ calls atomic.Int64 }

func (e *staticExpander) ResolveValue(_ context.Context, v string) (string, error) {
	e.calls.Add(1)
	return v + "?password=expanded", nil
}

func TestResolver_ExpandsDSNOnceAndCachesResult(t *testing.T) {
	store := acmeStore()
	exp := &staticExpander{}
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory(), Secrets: exp})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := r.Resolve(ctx, "ACME")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if d.DSN != "db://acme?password=expanded" {
			t.Errorf("Resolve().DSN = %q", d.DSN)
		}
	}
	if got := exp.calls.Load(); got != 1 {
		t.Errorf("expander calls = %d, want 1", got)
	}
}

func TestResolver_ExpandsSecretRefDSN(t *testing.T) {
	t.Setenv("ACME_DB_PASSWORD", "s3cr3t")

	store := &countingStore{table: map[string]Descriptor{
		"ACME": {Name: "ACME", DSN: "postgres://app:secretref:env:ACME_DB_PASSWORD@db:5432/acme"},
	}}
	r := newTestResolver(t, ResolverConfig{
		Store:   store,
		Cache:   cache.NewMemory(),
		Secrets: secret.NewResolver(true, secret.NewEnvProvider()),
	})

	d, err := r.Resolve(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.DSN != "postgres://app:s3cr3t@db:5432/acme" {
		t.Errorf("Resolve().DSN = %q, want credential expanded", d.DSN)
	}

	// The cached copy already carries the expanded credential.
	d, err = r.Resolve(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.DSN != "postgres://app:s3cr3t@db:5432/acme" {
		t.Errorf("cached Resolve().DSN = %q, want credential expanded", d.DSN)
	}
	if got := store.lookups.Load(); got != 1 {
		t.Errorf("store lookups = %d, want 1", got)
	}
}

func TestResolver_PipelineRetriesTransientLookup(t *testing.T) {
	store := acmeStore()
	store.failErr = resilience.ErrTimeout
	store.failN.Store(2)

	pipelines := resilience.NewRegistry(func(string) resilience.Settings {
		return resilience.Settings{
			Timeout:           time.Second,
			RetryCount:        3,
			DefaultRetryDelay: time.Millisecond,
			MinimumThroughput: 100,
		}
	})
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory(), Pipelines: pipelines})

	d, err := r.Resolve(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if d.DSN != "db://acme" {
		t.Errorf("Resolve().DSN = %q, want %q", d.DSN, "db://acme")
	}
	if got := store.lookups.Load(); got != 3 {
		t.Errorf("store lookups = %d, want 3 (two failures then success)", got)
	}
}

func TestResolver_StoreErrorWrapped(t *testing.T) {
	store := &countingStore{err: errors.New("master unreachable")}
	r := newTestResolver(t, ResolverConfig{Store: store, Cache: cache.NewMemory()})

	_, err := r.Resolve(context.Background(), "ACME")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("store failure must not look like a missing tenant: %v", err)
	}
}

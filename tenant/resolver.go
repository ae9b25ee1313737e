package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/triunai/tenantcore/cache"
	"github.com/triunai/tenantcore/observe"
	"github.com/triunai/tenantcore/resilience"
)

// PipelineKeyMaster is the resilience pipeline key guarding lookups
// against the master database.
const PipelineKeyMaster = "MasterDb"

// Expander expands secret references and environment variables inside a
// descriptor DSN. *secret.Resolver satisfies this interface.
type Expander interface {
	ResolveValue(ctx context.Context, value string) (string, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Store is the backing registry of descriptors. Required.
	Store Store

	// Cache is the shared descriptor cache. Optional; when nil every
	// resolve goes to the store.
	Cache cache.Cache

	// Pipelines guards store lookups with the pipeline registered under
	// PipelineKey. Optional; when nil lookups run unguarded.
	Pipelines *resilience.Registry

	// PipelineKey selects the pipeline for store lookups.
	// Defaults to PipelineKeyMaster.
	PipelineKey string

	// TTL bounds how long a cached descriptor is served before the store
	// is consulted again. Defaults to 10 minutes.
	TTL time.Duration

	// KeyPrefix namespaces cache keys. Defaults to "tenant:".
	KeyPrefix string

	// Secrets expands secret references in descriptor DSNs. Optional.
	Secrets Expander

	// Logger receives cache degradation warnings. Defaults to a no-op logger.
	Logger observe.Logger

	// Metrics records resolve outcomes and lookup latency. Optional.
	Metrics *observe.Metrics

	// Tracer wraps resolves in spans. Optional.
	Tracer observe.Tracer
}

func (c *ResolverConfig) applyDefaults() {
	if c.PipelineKey == "" {
		c.PipelineKey = PipelineKeyMaster
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "tenant:"
	}
	if c.Logger == nil {
		c.Logger = observe.NopLogger()
	}
}

// Resolver resolves tenant keys to connection descriptors.
//
// Resolution is cache-aside with per-tenant stampede protection: on a
// cache miss, concurrent resolves for the same tenant serialize on a
// per-tenant mutex and re-check the cache before hitting the store, so
// the backing store sees at most one lookup per tenant per expiry.
// Different tenants never contend with each other.
//
// A failing cache degrades to a miss. The store lookup still runs; only
// the caching is lost.
type Resolver struct {
	cfg ResolverConfig

	// locks maps tenant key to *sync.Mutex.
	locks sync.Map
}

// NewResolver creates a resolver. Store is required.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("tenant: resolver requires a store")
	}
	cfg.applyDefaults()
	return &Resolver{cfg: cfg}, nil
}

// Resolve returns the connection descriptor for key.
//
// Misses for unknown tenants return an error wrapping ErrNotFound. Store
// failures surface the pipeline error (resilience.ErrCircuitOpen,
// resilience.ErrTimeout, or the store's own error).
func (r *Resolver) Resolve(ctx context.Context, key string) (Descriptor, error) {
	if key == "" {
		return Descriptor{}, ErrEmptyKey
	}

	ctx, span := r.startSpan(ctx, key)
	d, err := r.resolve(ctx, key)
	r.endSpan(span, err)
	return d, err
}

func (r *Resolver) startSpan(ctx context.Context, key string) (context.Context, trace.Span) {
	if r.cfg.Tracer == nil {
		return ctx, nil
	}
	return r.cfg.Tracer.StartResolve(ctx, key)
}

func (r *Resolver) endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	r.cfg.Tracer.EndSpan(span, err)
}

func (r *Resolver) resolve(ctx context.Context, key string) (Descriptor, error) {
	cacheKey := r.cfg.KeyPrefix + key

	if d, ok := r.cacheGet(ctx, cacheKey); ok {
		r.cfg.Metrics.ResolveResult(ctx, true)
		return d, nil
	}

	mu := r.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	// Another resolve may have populated the cache while this one waited
	// on the lock.
	if d, ok := r.cacheGet(ctx, cacheKey); ok {
		r.cfg.Metrics.ResolveResult(ctx, true)
		return d, nil
	}

	d, err := r.lookup(ctx, key)
	if err != nil {
		return Descriptor{}, err
	}

	if r.cfg.Secrets != nil {
		dsn, err := r.cfg.Secrets.ResolveValue(ctx, d.DSN)
		if err != nil {
			return Descriptor{}, fmt.Errorf("tenant %q: expand dsn: %w", key, err)
		}
		d.DSN = dsn
	}

	r.cacheSet(ctx, cacheKey, d)
	r.cfg.Metrics.ResolveResult(ctx, false)
	return d, nil
}

// Invalidate removes the cached descriptor for key. The next resolve
// consults the store.
func (r *Resolver) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if r.cfg.Cache == nil {
		return nil
	}
	return r.cfg.Cache.Remove(ctx, r.cfg.KeyPrefix+key)
}

func (r *Resolver) lockFor(key string) *sync.Mutex {
	if mu, ok := r.locks.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// cacheGet reads and decodes a cached descriptor. Any cache failure,
// including a corrupt payload, is logged and treated as a miss.
func (r *Resolver) cacheGet(ctx context.Context, cacheKey string) (Descriptor, bool) {
	if r.cfg.Cache == nil {
		return Descriptor{}, false
	}
	data, found, err := r.cfg.Cache.Get(ctx, cacheKey)
	if err != nil {
		r.cfg.Logger.Warn(ctx, "descriptor cache read failed, falling through to store",
			observe.String("cache_key", cacheKey), observe.Err(err))
		return Descriptor{}, false
	}
	if !found {
		return Descriptor{}, false
	}
	d, err := decodeDescriptor(data)
	if err != nil {
		r.cfg.Logger.Warn(ctx, "discarding undecodable cached descriptor",
			observe.String("cache_key", cacheKey), observe.Err(err))
		return Descriptor{}, false
	}
	return d, true
}

// cacheSet stores a descriptor. Set failures are logged and swallowed;
// the resolve already has its answer.
func (r *Resolver) cacheSet(ctx context.Context, cacheKey string, d Descriptor) {
	if r.cfg.Cache == nil {
		return
	}
	data, err := encodeDescriptor(d)
	if err != nil {
		r.cfg.Logger.Warn(ctx, "descriptor encode failed, skipping cache",
			observe.String("cache_key", cacheKey), observe.Err(err))
		return
	}
	if err := r.cfg.Cache.Set(ctx, cacheKey, data, r.cfg.TTL); err != nil {
		r.cfg.Logger.Warn(ctx, "descriptor cache write failed",
			observe.String("cache_key", cacheKey), observe.Err(err))
	}
}

// lookup consults the backing store, guarded by the master pipeline when
// one is configured.
func (r *Resolver) lookup(ctx context.Context, key string) (Descriptor, error) {
	var (
		d     Descriptor
		found bool
	)

	op := func(ctx context.Context) error {
		var err error
		d, found, err = r.cfg.Store.Lookup(ctx, key)
		return err
	}

	start := time.Now()
	var err error
	if r.cfg.Pipelines != nil {
		err = r.cfg.Pipelines.Execute(ctx, r.cfg.PipelineKey, op)
	} else {
		err = op(ctx)
	}
	r.cfg.Metrics.LookupDuration(ctx, time.Since(start), err)

	if err != nil {
		return Descriptor{}, fmt.Errorf("tenant %q: lookup: %w", key, err)
	}
	if !found {
		return Descriptor{}, fmt.Errorf("tenant %q: %w", key, ErrNotFound)
	}
	if !d.Valid() {
		return Descriptor{}, fmt.Errorf("tenant %q: store returned incomplete descriptor", key)
	}
	return d, nil
}

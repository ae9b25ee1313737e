package resilience

import (
	"context"
	"sync"
)

// SettingsSource yields the settings for a pipeline key at build time.
// It must be side-effect-free: a racing first use may invoke it more
// than once for the same key and keep only one result.
type SettingsSource func(key string) Settings

// Registry is a concurrent key→Pipeline cache. The first caller to
// request a key builds its pipeline; every later caller, concurrent or
// not, receives that same instance. Per-key circuit breaker state is
// therefore shared by all callers of the key and isolated from every
// other key, so one tenant tripping its breaker never affects another.
type Registry struct {
	source SettingsSource
	opts   []PipelineOption

	pipelines sync.Map // key -> *registryEntry
}

// registryEntry defers materialization so LoadOrStore stays cheap and
// the build runs exactly once per key.
type registryEntry struct {
	once     sync.Once
	pipeline *Pipeline
}

// NewRegistry creates a registry backed by the given settings source.
func NewRegistry(source SettingsSource, opts ...PipelineOption) *Registry {
	if source == nil {
		source = func(string) Settings { return Settings{} }
	}
	return &Registry{source: source, opts: opts}
}

// GetOrBuild returns the pipeline for key, building it on first use.
// Unrelated keys never contend: the only synchronization is the per-key
// once inside the entry.
func (r *Registry) GetOrBuild(key string) *Pipeline {
	v, _ := r.pipelines.LoadOrStore(key, &registryEntry{})
	e := v.(*registryEntry)
	e.once.Do(func() {
		e.pipeline = NewPipeline(key, r.source(key), r.opts...)
	})
	return e.pipeline
}

// Execute is a convenience wrapper: run op through the pipeline for key.
func (r *Registry) Execute(ctx context.Context, key string, op Operation) error {
	return r.GetOrBuild(key).Execute(ctx, op)
}

// Len returns the number of built pipelines.
func (r *Registry) Len() int {
	n := 0
	r.pipelines.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

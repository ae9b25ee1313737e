package config

import (
	"sort"
	"strings"
	"time"

	"github.com/triunai/tenantcore/audit"
	"github.com/triunai/tenantcore/cache"
	"github.com/triunai/tenantcore/observe"
	"github.com/triunai/tenantcore/postgres"
	"github.com/triunai/tenantcore/resilience"
)

// AppConfig is the top-level configuration.
type AppConfig struct {
	Resolver  ResolverConfig            `yaml:"resolver"`
	Audit     AuditConfig               `yaml:"audit"`
	Redis     cache.RedisConfig         `yaml:"redis"`
	Master    postgres.Config           `yaml:"master"`
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
	Observe   ObserveConfig             `yaml:"observe"`
}

// ResolverConfig tunes the tenant resolver.
type ResolverConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// AuditConfig tunes the audit queue and batch writer.
type AuditConfig struct {
	Capacity      int           `yaml:"capacity"`
	Policy        string        `yaml:"policy"` // drop_oldest|drop_newest|block_with_timeout
	BlockTimeout  time.Duration `yaml:"block_timeout"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	FallbackToLog bool          `yaml:"fallback_to_log"`
}

// QueuePolicy maps the policy name to its OverflowPolicy. Unknown names
// fall back to drop-oldest.
func (a AuditConfig) QueuePolicy() audit.OverflowPolicy {
	switch a.Policy {
	case "drop_newest":
		return audit.DropNewest
	case "block_with_timeout":
		return audit.BlockWithTimeout
	default:
		return audit.DropOldest
	}
}

// ObserveConfig holds telemetry settings.
type ObserveConfig struct {
	ServiceName  string  `yaml:"service_name"`
	Version      string  `yaml:"version"`
	Tracing      bool    `yaml:"tracing"`
	TraceExport  string  `yaml:"trace_exporter"`
	SamplePct    float64 `yaml:"sample_pct"`
	Metrics      bool    `yaml:"metrics"`
	MetricExport string  `yaml:"metric_exporter"`
	Logging      bool    `yaml:"logging"`
	LogLevel     string  `yaml:"log_level"`
}

// ObserverConfig converts to the observe package's config type.
func (o ObserveConfig) ObserverConfig() observe.Config {
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing,
			Exporter:  o.TraceExport,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.Metrics,
			Exporter: o.MetricExport,
		},
		Logging: observe.LoggingConfig{
			Enabled: o.Logging,
			Level:   o.LogLevel,
		},
	}
}

// PipelineConfig tunes one resilience pipeline, or a prefix family of them.
type PipelineConfig struct {
	Backend           string          `yaml:"backend"` // sql|cache
	Timeout           time.Duration   `yaml:"timeout"`
	RetryCount        int             `yaml:"retry_count"`
	RetryDelays       []time.Duration `yaml:"retry_delays"`
	DefaultRetryDelay time.Duration   `yaml:"default_retry_delay"`
	FailureRatio      float64         `yaml:"failure_ratio"`
	SamplingDuration  time.Duration   `yaml:"sampling_duration"`
	MinimumThroughput int             `yaml:"minimum_throughput"`
	BreakDuration     time.Duration   `yaml:"break_duration"`
	MaxConcurrent     int             `yaml:"max_concurrent"`
}

// Settings converts to resilience pipeline settings.
func (p PipelineConfig) Settings() resilience.Settings {
	kind := resilience.BackendSQL
	if p.Backend == "cache" {
		kind = resilience.BackendCache
	}
	return resilience.Settings{
		Kind:              kind,
		Timeout:           p.Timeout,
		RetryCount:        p.RetryCount,
		RetryDelays:       p.RetryDelays,
		DefaultRetryDelay: p.DefaultRetryDelay,
		FailureRatio:      p.FailureRatio,
		SamplingDuration:  p.SamplingDuration,
		MinimumThroughput: p.MinimumThroughput,
		BreakDuration:     p.BreakDuration,
		MaxConcurrent:     p.MaxConcurrent,
	}
}

// SettingsSource builds a pipeline settings source from the configured
// entries. A pipeline key matches the entry with the longest key that
// prefixes it, so "AuditDb:" covers every tenant's audit pipeline while
// "AuditDb:acme" can still override one tenant. Unmatched keys get zero
// settings, which resolve to per-stage defaults.
func (c *AppConfig) SettingsSource() resilience.SettingsSource {
	prefixes := make([]string, 0, len(c.Pipelines))
	for prefix := range c.Pipelines {
		prefixes = append(prefixes, prefix)
	}
	// Longest first so the most specific entry wins.
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	pipelines := c.Pipelines
	return func(key string) resilience.Settings {
		for _, prefix := range prefixes {
			if strings.HasPrefix(key, prefix) {
				return pipelines[prefix].Settings()
			}
		}
		return resilience.Settings{}
	}
}

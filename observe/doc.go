// Package observe provides the telemetry surface for the data-access
// core: structured logging, OpenTelemetry metrics and tracing.
//
// An Observer owns the providers and hands out the primitives:
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "tenantcore",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//
// Metrics covers the core's instruments (resolver hits/misses, circuit
// transitions, queue depth, drops, flush outcomes); every method is
// nil-receiver safe so wiring telemetry is optional everywhere.
// PipelineHooks adapts a Logger and Metrics into resilience.Hooks so
// retries and breaker transitions are logged and counted without the
// resilience package knowing about telemetry.
//
// Telemetry is observational only. Nothing in this package affects
// control flow, and logging is best-effort by contract.
package observe

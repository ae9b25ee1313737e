// Package health provides health checking for the data-access core's
// moving parts: the master database, the descriptor cache, and the audit
// batch writer.
//
// # Core Concepts
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy.
//
// # Basic Usage
//
//	// Ping-based checkers over the concrete backends.
//	masterCheck := health.NewPingCheckerFunc("master_db", masterStore.Ping, 2*time.Second)
//	cacheCheck := health.NewPingerChecker("cache", redisCache, 2*time.Second)
//
// # Aggregating Health Checks
//
// Use Aggregator to combine multiple health checks into a single composite check:
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register("master_db", masterCheck)
//	agg.Register("cache", cacheCheck)
//	agg.Register("audit_writer", writerCheck)
//
//	// Check all components
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe with component checks
//	http.Handle("/readyz", health.ReadinessHandler(aggregator))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(aggregator))
package health

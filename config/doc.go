// Package config loads the YAML configuration for the data-access core:
// resolver and audit tuning, backend connections, telemetry, and the
// per-key pipeline settings consumed by the resilience registry.
//
// Environment variables in the file are expanded at load time. Pipeline
// entries match by longest key prefix, so one "AuditDb:" entry tunes
// every tenant's audit pipeline.
package config

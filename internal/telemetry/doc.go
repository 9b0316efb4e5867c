// Package telemetry configures OpenTelemetry tracing and metrics for the
// server. When disabled, the global no-op providers stay in place and every
// helper in this package is free to call.
package telemetry

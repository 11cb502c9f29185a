// Package telemetry groups keyrelay's observability packages.
//
// # Components
//
//   - logging: slog setup with context fields and secret redaction
//   - metrics: Prometheus collector fed by relay hooks and the usage recorder
//   - tracing: OpenTelemetry spans around each relayed request
//   - health: liveness and readiness endpoints for the management API
//
// Upstream API keys never reach a log line: the redacting handler masks
// sk- prefixed keys, bearer tokens and x-api-key values in messages and
// attributes.
package telemetry

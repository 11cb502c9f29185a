// Package tracing sets up OpenTelemetry tracing for the relay.
//
// When enabled, New installs a global TracerProvider exporting over OTLP/gRPC
// and the W3C Trace Context propagator. The relay then opens one client span
// per upstream call and injects traceparent into the upstream request, so a
// caller's trace continues through keyrelay to the provider:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// When disabled, the global no-op provider stays in place and spans cost
// next to nothing.
//
// # Sampling
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample SampleRatio of new traces
//
// All samplers honor the parent's sampling decision.
package tracing

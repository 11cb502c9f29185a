// Package middleware provides HTTP middleware shared by the relay listener and
// the management API.
//
// # Middleware Chain
//
// The relay listener is wrapped as:
//
//	handler = Recovery(RequestID(Logging(MethodFilter(relay))))
//
// and the management API as:
//
//	handler = Recovery(RequestID(Logging(CORS(BearerAuth(mux)))))
//
// # Middleware Types
//
// Request tracking:
//   - RequestIDMiddleware: assigns a UUID request ID, adds it to context and response headers
//   - LoggingMiddleware: logs method, path, status, latency and size with log/slog
//
// Access control:
//   - MethodFilterMiddleware: 405 for methods outside the configured list
//   - BearerAuthMiddleware: optional static bearer token for the management API
//   - CORSMiddleware: CORS headers for a local dashboard
//
// Resilience:
//   - RecoveryMiddleware: converts handler panics into a plain 500
//
// # Streaming
//
// LoggingMiddleware wraps the ResponseWriter. The wrapper implements
// http.Flusher and Unwrap, so http.NewResponseController in the relay can
// still flush each streamed chunk to the client.
//
// # Thread Safety
//
// All middleware functions are safe for concurrent use.
package middleware

package middleware

import "keyrelay-hq/keyrelay/pkg/telemetry/logging"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for storing values in request context.
const (
	// RequestIDKey stores the unique request ID. It is shared with the
	// logging package so every context-aware log line carries the ID.
	RequestIDKey = logging.RequestIDKey

	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"
)

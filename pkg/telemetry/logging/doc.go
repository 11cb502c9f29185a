// Package logging configures the process-wide slog logger.
//
// New builds a JSON or text handler writing to stdout, a caller supplied
// writer, or a size-rotated file (gopkg.in/natefinch/lumberjack.v2). The
// handler chain adds request-scoped fields stored in the context (request ID,
// account ID, trace and span IDs) and, when enabled, masks secrets such as
// provider API keys and bearer tokens before they reach the output.
//
// Components obtain their loggers from slog.Default():
//
//	logger := slog.Default().With("component", "relay")
//	logger.InfoContext(ctx, "request relayed", "status", 200)
package logging

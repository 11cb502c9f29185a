// Package usage records token usage and cost for relayed requests.
//
// The relay hands every completed exchange to a recorder hook together with
// bounded captures of both bodies. Extract pulls the model and token counts
// out of those captures with gjson, for plain JSON responses as well as
// server-sent event streams:
//
//	event: message_start
//	data: {"type":"message_start","message":{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":25,"output_tokens":1}}}
//
//	event: message_delta
//	data: {"type":"message_delta","usage":{"output_tokens":15}}
//
// Pricing turns token counts into USD using per-million-token rates keyed by
// model name prefix.
//
// # Subpackages
//
//   - storage: SQLite and in-memory Storage implementations
//   - recorder: asynchronous relay hook writing Records to Storage
//   - retention: age-based pruning on a cron schedule
package usage

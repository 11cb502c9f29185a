// Package management serves the JSON control API for keyrelay.
//
// The API manages the account registry, starts and stops the relay
// listener, drives settings backups and exposes recorded usage:
//
//	GET    /api/accounts
//	POST   /api/accounts
//	GET    /api/accounts/active
//	GET    /api/accounts/{id}
//	POST   /api/accounts/{id}/activate
//	DELETE /api/accounts/{id}
//	GET    /api/proxy
//	POST   /api/proxy/start
//	POST   /api/proxy/stop
//	GET    /api/backups
//	POST   /api/backups
//	POST   /api/backups/{filename}/restore
//	DELETE /api/backups/{filename}
//	GET    /api/usage
//	GET    /api/usage/summary
//
// Health probes (/healthz, /readyz, /version) and the Prometheus endpoint
// are mounted on the same listener. API keys are always masked in responses.
// Errors use a single envelope:
//
//	{"error": {"message": "...", "type": "not_found"}}
package management

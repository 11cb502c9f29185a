// Package server manages the relay listener.
//
// ProxyServer wraps a relay handler in the shared middleware chain and exposes
// the start/stop lifecycle used by the CLI and the management API:
//
//	srv := server.New(engine, server.Options{AllowedMethods: cfg.Proxy.AllowedMethods})
//	if err := srv.Start(8080); err != nil {
//	    return err
//	}
//	defer srv.Stop(context.Background())
//
// # Lifecycle
//
// Start binds synchronously, so a port already in use is reported to the
// caller instead of being logged from a goroutine. A second Start while
// running returns ErrAlreadyRunning.
//
// Stop is abrupt: it cancels the base context shared by all in-flight
// requests, which cancels their upstream calls, and closes every connection.
// Callers in the middle of a streamed response see the connection close.
// Stop on a stopped server returns nil.
//
// After Stop, Start may be called again with the same or a different port.
package server

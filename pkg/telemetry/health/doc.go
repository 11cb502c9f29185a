// Package health provides liveness, readiness and version endpoints for the
// keyrelay management API.
//
// # Endpoints
//
//   - /healthz: the process is serving requests
//   - /readyz: the account store and usage store respond to Ping
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("accounts", health.PingCheck(accountRepo))
//	checker.RegisterCheck("usage", health.PingCheck(usageStorage))
//	checker.RegisterOptionalCheck("proxy", health.RunningCheck(proxy.IsRunning))
//
//	health.Register(mux, checker, health.DefaultPaths(), version, commit, buildTime)
//
// A failing critical check answers /ready with 503 and status "unhealthy".
// A failing optional check answers 200 with status "degraded".
package health

package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-01-10T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
//
// Returns:
//   - 200 OK: every check passed, or only optional checks failed
//   - 503 Service Unavailable: a critical check failed
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "accounts": {"status": "ok", "critical": true, "duration_ms": 0.2},
//	        "proxy": {"status": "unhealthy", "message": "proxy is not running", "critical": false, "duration_ms": 0}
//	    },
//	    "timestamp": "2026-01-10T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Paths are the endpoint locations mounted by Register.
type Paths struct {
	Liveness  string
	Readiness string
	Version   string
}

// DefaultPaths returns the management API's probe paths.
func DefaultPaths() Paths {
	return Paths{
		Liveness:  "/healthz",
		Readiness: "/readyz",
		Version:   "/version",
	}
}

// Register mounts the probe endpoints on mux for GET and HEAD. Empty paths
// are skipped.
func Register(mux *http.ServeMux, checker *Checker, paths Paths, version, commit, buildTime string) {
	if paths.Liveness != "" {
		mux.HandleFunc("GET "+paths.Liveness, checker.LivenessHandler())
	}
	if paths.Readiness != "" {
		mux.HandleFunc("GET "+paths.Readiness, checker.ReadinessHandler())
	}
	if paths.Version != "" {
		mux.HandleFunc("GET "+paths.Version, VersionHandler(version, commit, buildTime))
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}

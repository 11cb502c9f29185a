package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// TestNew tests the creation of a new health checker.
func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"default timeout", 0, 5 * time.Second},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if checker.CheckCount() != 0 {
				t.Errorf("expected 0 checks, got %d", checker.CheckCount())
			}
		})
	}
}

func TestRegisterAndList(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("usage", PingCheck(fakePinger{}))
	checker.RegisterCheck("accounts", PingCheck(fakePinger{}))
	checker.RegisterOptionalCheck("proxy", RunningCheck(func() bool { return true }))

	got := checker.ListChecks()
	want := []string{"accounts", "proxy", "usage"}
	if len(got) != len(want) {
		t.Fatalf("ListChecks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListChecks()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	checker.UnregisterCheck("proxy")
	if checker.CheckCount() != 2 {
		t.Errorf("CheckCount() = %d, want 2", checker.CheckCount())
	}
}

func TestCheckReadiness(t *testing.T) {
	diskErr := errors.New("disk I/O error")

	tests := []struct {
		name       string
		accounts   error
		proxyUp    bool
		wantStatus string
	}{
		{"all healthy", nil, true, StatusReady},
		{"proxy stopped degrades", nil, false, StatusDegraded},
		{"store failure is unhealthy", diskErr, true, StatusUnhealthy},
		{"critical wins over optional", diskErr, false, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			checker.RegisterCheck("accounts", PingCheck(fakePinger{err: tt.accounts}))
			up := tt.proxyUp
			checker.RegisterOptionalCheck("proxy", RunningCheck(func() bool { return up }))

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != 2 {
				t.Fatalf("len(Checks) = %d, want 2", len(status.Checks))
			}
			if !status.Checks["accounts"].Critical || status.Checks["proxy"].Critical {
				t.Errorf("criticality not reported: %+v", status.Checks)
			}
			if !tt.proxyUp && status.Checks["proxy"].Message != ErrProxyStopped.Error() {
				t.Errorf("proxy message = %q", status.Checks["proxy"].Message)
			}
		})
	}
}

func TestCheckReadiness_NoChecks(t *testing.T) {
	status := New(time.Second).CheckReadiness(context.Background())
	if status.Status != StatusReady {
		t.Errorf("Status = %q, want ready", status.Status)
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(50 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	start := time.Now()
	status := checker.CheckReadiness(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("readiness took %v, expected the timeout to cut it short", elapsed)
	}
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v", result)
	}
}

func TestCheckReadiness_Concurrent(t *testing.T) {
	checker := New(time.Second)
	var running, peak atomic.Int32
	for _, name := range []string{"a", "b", "c", "d"} {
		checker.RegisterCheck(name, func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}

	checker.CheckReadiness(context.Background())
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, checks should run in parallel", peak.Load())
	}
}

func TestCheckResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Status: StatusOK, Critical: true, Duration: 1500 * time.Microsecond})
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if got["duration_ms"] != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", got["duration_ms"])
	}
	if got["status"] != "ok" || got["critical"] != true {
		t.Errorf("decoded = %v", got)
	}
}

func TestRegister(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("accounts", PingCheck(fakePinger{}))
	mux := http.NewServeMux()
	Register(mux, checker, DefaultPaths(), "1.2.3", "abc123", "2026-01-01T00:00:00Z")

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		wantBody       bool
	}{
		{"liveness GET", http.MethodGet, "/healthz", http.StatusOK, true},
		{"liveness HEAD", http.MethodHead, "/healthz", http.StatusOK, false},
		{"liveness POST", http.MethodPost, "/healthz", http.StatusMethodNotAllowed, false},
		{"readiness", http.MethodGet, "/readyz", http.StatusOK, true},
		{"version", http.MethodGet, "/version", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.wantBody && rec.Body.Len() == 0 {
				t.Error("expected a JSON body")
			}
			if !tt.wantBody && tt.method == http.MethodHead && rec.Body.Len() != 0 {
				t.Error("HEAD should not write a body")
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to unmarshal version: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("VersionInfo = %+v", info)
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("usage", PingCheck(fakePinger{err: errors.New("database is locked")}))

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if status.Checks["usage"].Message != "database is locked" {
		t.Errorf("usage check = %+v", status.Checks["usage"])
	}
}

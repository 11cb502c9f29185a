package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"keyrelay-hq/keyrelay/pkg/config"
	"keyrelay-hq/keyrelay/pkg/usage"
)

func newTestApp(t *testing.T) *app {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	cfg.Usage.Backend = config.BackendMemory
	cfg.Backup.SettingsPath = t.TempDir() + "/settings.json"
	cfg.Backup.BackupDir = t.TempDir()
	cfg.Management.ListenAddress = "127.0.0.1:0"

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func managementDo(t *testing.T, a *app, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	a.management.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

// TestApp_EndToEnd registers an account through the management API, relays a
// request through the live listener and checks that usage and metrics saw it.
func TestApp_EndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "sk-ant-test-0123456789" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"claude-sonnet-4-20250514","usage":{"input_tokens":12,"output_tokens":34}}`)
	}))
	defer upstream.Close()

	a := newTestApp(t)

	body := fmt.Sprintf(`{"name":"work","base_url":%q,"api_key":"sk-ant-test-0123456789"}`, upstream.URL)
	if rec := managementDo(t, a, http.MethodPost, "/api/accounts", body); rec.Code != http.StatusCreated {
		t.Fatalf("create account status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if err := a.proxy.Start(0); err != nil {
		t.Fatalf("proxy Start() failed: %v", err)
	}

	resp, err := http.Post(
		fmt.Sprintf("http://127.0.0.1:%d/v1/messages", a.proxy.Port()),
		"application/json",
		bytes.NewReader([]byte(`{"model":"claude-sonnet-4-20250514","messages":[]}`)),
	)
	if err != nil {
		t.Fatalf("relay request failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("relay status = %d", resp.StatusCode)
	}

	var records []*usage.Record
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		records, err = a.usage.Query(context.Background(), usage.Filter{})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(records) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(records) != 1 {
		t.Fatalf("got %d usage records, want 1", len(records))
	}
	if r := records[0]; r.InputTokens != 12 || r.OutputTokens != 34 || r.CostUSD <= 0 {
		t.Errorf("usage record = %+v", r)
	}

	// Usage metrics are updated by the recorder after the store write.
	var rec *httptest.ResponseRecorder
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec = managementDo(t, a, http.MethodGet, "/metrics", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("metrics status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "keyrelay_usage_tokens_total") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, want := range []string{
		"keyrelay_relay_requests_total",
		"keyrelay_proxy_up 1",
		"keyrelay_usage_tokens_total",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	if rec = managementDo(t, a, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestApp_NoActiveAccount(t *testing.T) {
	a := newTestApp(t)
	if err := a.proxy.Start(0); err != nil {
		t.Fatalf("proxy Start() failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/v1/models", a.proxy.Port()))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || string(data) != "No active account configured" {
		t.Errorf("got %d %q", resp.StatusCode, data)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Proxy.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- a.run(ctx, &out) }()

	deadline := time.Now().Add(5 * time.Second)
	for !a.proxy.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !a.proxy.IsRunning() {
		t.Fatal("proxy did not auto-start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
	if a.proxy.IsRunning() {
		t.Error("proxy still running after run() returned")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"24h", now.Add(-24 * time.Hour), false},
		{"2026-04-30T00:00:00Z", time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), false},
		{"-1h", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSince(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseSince(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApp_ManagementTokenFromSecret(t *testing.T) {
	t.Setenv("KEYRELAY_SECRET_MGMT_TOKEN", "tok-from-env")

	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	cfg.Usage.Enabled = false
	cfg.Backup.SettingsPath = t.TempDir() + "/settings.json"
	cfg.Backup.BackupDir = t.TempDir()
	cfg.Management.Token = "${secret:mgmt-token}"

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	t.Cleanup(a.close)

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer ${secret:mgmt-token}", http.StatusUnauthorized},
		{"Bearer tok-from-env", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		a.management.Handler().ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("Authorization %q: status = %d, want %d", tt.header, rec.Code, tt.want)
		}
	}
}

func TestApp_UnresolvedManagementToken(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	cfg.Usage.Enabled = false
	cfg.Secrets.EnvPrefix = "KEYRELAY_TEST_UNSET_"
	cfg.Management.Token = "${secret:missing}"

	if _, err := newApp(cfg); err == nil {
		t.Fatal("newApp() should fail when the token cannot be resolved")
	}
}

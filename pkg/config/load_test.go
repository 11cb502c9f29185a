package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "keyrelay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
proxy:
  port: 9090
  allowed_methods: [GET, POST]
  upstream_timeout: 90s

store:
  backend: memory

usage:
  enabled: false
  retention:
    days: 0
  pricing:
    claude-custom: {input: 2, output: 8}

telemetry:
  logging:
    level: debug
    format: text
    redact_secrets: false

management:
  token: ${secret:mgmt-token}
  tls:
    cert_file: /etc/keyrelay/mgmt.crt
    key_file: /etc/keyrelay/mgmt.key
    reload_interval: 1m
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Proxy.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Proxy.Port)
	}
	if strings.Join(cfg.Proxy.AllowedMethods, ",") != "GET,POST" {
		t.Errorf("allowed methods = %v", cfg.Proxy.AllowedMethods)
	}
	if cfg.Proxy.UpstreamTimeout != 90*time.Second {
		t.Errorf("upstream timeout = %v, want 90s", cfg.Proxy.UpstreamTimeout)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend = %q", cfg.Store.Backend)
	}

	// Explicit false and zero survive decoding over the defaults.
	if cfg.Usage.Enabled {
		t.Error("usage.enabled should be false")
	}
	if cfg.Usage.Retention.Days != 0 {
		t.Errorf("retention days = %d, want 0", cfg.Usage.Retention.Days)
	}
	if cfg.Telemetry.Logging.RedactSecrets {
		t.Error("redact_secrets should be false")
	}

	// Untouched sections keep their defaults.
	if !cfg.Proxy.AutoStart || !cfg.Management.Enabled {
		t.Error("unspecified true defaults were lost")
	}
	if cfg.Proxy.Host != DefaultProxyHost {
		t.Errorf("host = %q, want default", cfg.Proxy.Host)
	}

	if p := cfg.Usage.Pricing["claude-custom"]; p.Input != 2 || p.Output != 8 {
		t.Errorf("pricing = %+v", p)
	}

	// Secret references are kept verbatim; the caller resolves them.
	if cfg.Management.Token != "${secret:mgmt-token}" {
		t.Errorf("token = %q", cfg.Management.Token)
	}
	if cfg.Management.TLS.ReloadInterval != time.Minute || cfg.Management.TLS.MinVersion != "1.3" {
		t.Errorf("tls = %+v", cfg.Management.TLS)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "proxy: [unclosed", "failed to parse"},
		{"invalid value", "proxy:\n  port: 70000\n", "proxy.port"},
		{"unknown backend", "store:\n  backend: postgres\n", "store.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() should fail for a missing file")
	}
}

func TestLoadConfigWithEnvOverrides_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "keyrelay.yaml")

	cfg, err := LoadConfigWithEnvOverrides(missing, true)
	if err != nil {
		t.Fatalf("optional missing file should load defaults: %v", err)
	}
	if cfg.Proxy.Port != DefaultProxyPort {
		t.Errorf("port = %d, want default", cfg.Proxy.Port)
	}

	if _, err := LoadConfigWithEnvOverrides(missing, false); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("required missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "proxy:\n  port: 9090\n")
	t.Setenv("KEYRELAY_PROXY_PORT", "9191")
	t.Setenv("KEYRELAY_MANAGEMENT_TOKEN", "secret-token")

	cfg, err := LoadConfigWithEnvOverrides(path, false)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if cfg.Proxy.Port != 9191 {
		t.Errorf("port = %d, env should win over file", cfg.Proxy.Port)
	}
	if cfg.Management.Token != "secret-token" {
		t.Errorf("token = %q", cfg.Management.Token)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	applyEnvOverrides(cfg, envMap(map[string]string{
		"KEYRELAY_PROXY_HOST":                     "0.0.0.0",
		"KEYRELAY_PROXY_AUTO_START":               "false",
		"KEYRELAY_PROXY_ALLOWED_METHODS":          "POST, GET ,",
		"KEYRELAY_PROXY_UPSTREAM_TIMEOUT":         "2m",
		"KEYRELAY_BACKUP_WATCH":                   "true",
		"KEYRELAY_USAGE_RETENTION_DAYS":           "30",
		"KEYRELAY_TELEMETRY_TRACING_SAMPLE_RATIO": "0.25",
		"KEYRELAY_USAGE_BUFFER":                   "not-a-number",
		"KEYRELAY_STORE_BACKEND":                  "",
		"KEYRELAY_SECRETS_DIR":                    "/run/keyrelay/secrets",
		"KEYRELAY_MANAGEMENT_TLS_ENABLED":         "true",
	}))

	if cfg.Proxy.Host != "0.0.0.0" {
		t.Errorf("host = %q", cfg.Proxy.Host)
	}
	if cfg.Proxy.AutoStart {
		t.Error("auto_start should be false")
	}
	if strings.Join(cfg.Proxy.AllowedMethods, ",") != "POST,GET" {
		t.Errorf("allowed methods = %v", cfg.Proxy.AllowedMethods)
	}
	if cfg.Proxy.UpstreamTimeout != 2*time.Minute {
		t.Errorf("upstream timeout = %v", cfg.Proxy.UpstreamTimeout)
	}
	if !cfg.Backup.Watch {
		t.Error("backup.watch should be true")
	}
	if cfg.Usage.Retention.Days != 30 {
		t.Errorf("retention days = %d", cfg.Usage.Retention.Days)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("sample ratio = %v", cfg.Telemetry.Tracing.SampleRatio)
	}

	if cfg.Secrets.Dir != "/run/keyrelay/secrets" {
		t.Errorf("secrets dir = %q", cfg.Secrets.Dir)
	}
	if !cfg.Management.TLS.Enabled {
		t.Error("management.tls.enabled should be true")
	}

	// Invalid and empty values are ignored.
	if cfg.Usage.Buffer != DefaultUsageBuffer {
		t.Errorf("buffer = %d, invalid override should be ignored", cfg.Usage.Buffer)
	}
	if cfg.Store.Backend != DefaultStoreBackend {
		t.Errorf("store backend = %q, empty override should be ignored", cfg.Store.Backend)
	}
}

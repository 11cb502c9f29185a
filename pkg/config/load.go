package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KEYRELAY_PROXY_PORT.
const EnvPrefix = "KEYRELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It decodes over Default(), applies default values and validates. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// KEYRELAY_* environment variable overrides, which take precedence over the
// file.
//
// When optional is true a missing file is not an error: defaults plus
// environment overrides are used instead.
func LoadConfigWithEnvOverrides(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		slog.Debug("configuration file not found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg, os.LookupEnv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// applyEnvOverrides applies environment variable overrides to the
// configuration. Values that fail to parse are logged and ignored.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) {
	env := envReader{lookup: lookup}

	// Proxy
	env.stringVar("PROXY_HOST", &cfg.Proxy.Host)
	env.intVar("PROXY_PORT", &cfg.Proxy.Port)
	env.boolVar("PROXY_AUTO_START", &cfg.Proxy.AutoStart)
	env.listVar("PROXY_ALLOWED_METHODS", &cfg.Proxy.AllowedMethods)
	env.stringVar("PROXY_PROVIDER_VERSION", &cfg.Proxy.ProviderVersion)
	env.durationVar("PROXY_DIAL_TIMEOUT", &cfg.Proxy.DialTimeout)
	env.durationVar("PROXY_UPSTREAM_TIMEOUT", &cfg.Proxy.UpstreamTimeout)

	// Store
	env.stringVar("STORE_BACKEND", &cfg.Store.Backend)
	env.stringVar("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)

	// Backup
	env.stringVar("BACKUP_SETTINGS_PATH", &cfg.Backup.SettingsPath)
	env.stringVar("BACKUP_DIR", &cfg.Backup.BackupDir)
	env.stringVar("BACKUP_SCHEDULE", &cfg.Backup.Schedule)
	env.boolVar("BACKUP_WATCH", &cfg.Backup.Watch)
	env.intVar("BACKUP_KEEP", &cfg.Backup.Keep)

	// Usage
	env.boolVar("USAGE_ENABLED", &cfg.Usage.Enabled)
	env.stringVar("USAGE_BACKEND", &cfg.Usage.Backend)
	env.stringVar("USAGE_SQLITE_PATH", &cfg.Usage.SQLite.Path)
	env.intVar("USAGE_BUFFER", &cfg.Usage.Buffer)
	env.intVar("USAGE_RETENTION_DAYS", &cfg.Usage.Retention.Days)
	env.stringVar("USAGE_RETENTION_SCHEDULE", &cfg.Usage.Retention.Schedule)

	// Management
	env.boolVar("MANAGEMENT_ENABLED", &cfg.Management.Enabled)
	env.stringVar("MANAGEMENT_LISTEN_ADDRESS", &cfg.Management.ListenAddress)
	env.stringVar("MANAGEMENT_TOKEN", &cfg.Management.Token)
	env.boolVar("MANAGEMENT_TLS_ENABLED", &cfg.Management.TLS.Enabled)
	env.stringVar("MANAGEMENT_TLS_CERT_FILE", &cfg.Management.TLS.CertFile)
	env.stringVar("MANAGEMENT_TLS_KEY_FILE", &cfg.Management.TLS.KeyFile)

	// Secrets
	env.stringVar("SECRETS_DIR", &cfg.Secrets.Dir)
	env.boolVar("SECRETS_WATCH", &cfg.Secrets.Watch)

	// Telemetry
	env.stringVar("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.stringVar("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.stringVar("TELEMETRY_LOGGING_FILE", &cfg.Telemetry.Logging.File)
	env.boolVar("TELEMETRY_LOGGING_REDACT_SECRETS", &cfg.Telemetry.Logging.RedactSecrets)
	env.boolVar("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	env.boolVar("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.stringVar("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	env.boolVar("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	env.stringVar("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	env.floatVar("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

type envReader struct {
	lookup lookupFunc
}

func (e envReader) get(key string) (string, bool) {
	val, ok := e.lookup(EnvPrefix + key)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (e envReader) invalid(key, val string, err error) {
	slog.Warn("ignoring invalid environment override", "variable", EnvPrefix+key, "value", val, "error", err)
}

func (e envReader) stringVar(key string, dst *string) {
	if val, ok := e.get(key); ok {
		*dst = val
	}
}

func (e envReader) listVar(key string, dst *[]string) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e envReader) intVar(key string, dst *int) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		e.invalid(key, val, err)
		return
	}
	*dst = i
}

func (e envReader) floatVar(key string, dst *float64) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		e.invalid(key, val, err)
		return
	}
	*dst = f
}

func (e envReader) boolVar(key string, dst *bool) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.invalid(key, val, err)
		return
	}
	*dst = b
}

func (e envReader) durationVar(key string, dst *time.Duration) {
	val, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.invalid(key, val, err)
		return
	}
	*dst = d
}

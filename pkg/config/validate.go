package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"keyrelay-hq/keyrelay/pkg/telemetry/logging"
	"keyrelay-hq/keyrelay/pkg/telemetry/tracing"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.port").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation failure in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Has reports whether field failed validation.
func (e ValidationError) Has(field string) bool {
	return lo.ContainsBy(e.Errors, func(fe FieldError) bool { return fe.Field == field })
}

// Validate validates the entire configuration. All errors are collected and
// returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateBackup(&cfg.Backup)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validateManagement(&cfg.Management)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.Host == "" {
		errs = append(errs, FieldError{"proxy.host", "host is required"})
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{"proxy.port", fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port)})
	}
	for _, m := range cfg.AllowedMethods {
		if m == "" || m != strings.ToUpper(m) || strings.ContainsAny(m, " \t/") {
			errs = append(errs, FieldError{"proxy.allowed_methods", fmt.Sprintf("invalid method %q", m)})
		}
	}
	if cfg.ProviderVersion == "" {
		errs = append(errs, FieldError{"proxy.provider_version", "provider version is required"})
	}

	durations := []struct {
		field string
		value int64
	}{
		{"proxy.dial_timeout", int64(cfg.DialTimeout)},
		{"proxy.upstream_timeout", int64(cfg.UpstreamTimeout)},
		{"proxy.read_header_timeout", int64(cfg.ReadHeaderTimeout)},
		{"proxy.idle_timeout", int64(cfg.IdleTimeout)},
		{"proxy.shutdown_timeout", int64(cfg.ShutdownTimeout)},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{d.field, "timeout must not be negative"})
		}
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"store.sqlite.path", "path is required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"store.backend", fmt.Sprintf("backend must be \"sqlite\" or \"memory\", got %q", cfg.Backend)})
	}
	if cfg.SQLite.BusyTimeout < 0 {
		errs = append(errs, FieldError{"store.sqlite.busy_timeout", "busy timeout must not be negative"})
	}

	return errs
}

func validateBackup(cfg *BackupConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{"backup.schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{"backup.debounce", "debounce must not be negative"})
	}
	if cfg.Keep < 0 {
		errs = append(errs, FieldError{"backup.keep", "keep must not be negative"})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"usage.sqlite.path", "path is required for the sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{"usage.sqlite.max_open_conns", "must be at least 1"})
		}
	default:
		errs = append(errs, FieldError{"usage.backend", fmt.Sprintf("backend must be \"sqlite\" or \"memory\", got %q", cfg.Backend)})
	}

	if cfg.Buffer < 1 {
		errs = append(errs, FieldError{"usage.buffer", "buffer must be at least 1"})
	}
	if cfg.CaptureLimit < 0 {
		errs = append(errs, FieldError{"usage.capture_limit", "capture limit must not be negative"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{"usage.retention.days", "days must not be negative"})
	}
	if cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{"usage.retention.schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	for model, price := range cfg.Pricing {
		if price.Input < 0 || price.Output < 0 {
			errs = append(errs, FieldError{"usage.pricing." + model, "prices must not be negative"})
		}
	}

	return errs
}

func validateManagement(cfg *ManagementConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"management.listen_address", fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err)})
	}
	if cfg.CORS.Enabled && len(cfg.CORS.AllowedOrigins) == 0 {
		errs = append(errs, FieldError{"management.cors.allowed_origins", "at least one origin is required when CORS is enabled"})
	}
	if err := cfg.TLS.Options().Validate(); err != nil {
		errs = append(errs, FieldError{"management.tls", err.Error()})
	}
	return errs
}

func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError
	if cfg.Watch && cfg.Dir == "" {
		errs = append(errs, FieldError{"secrets.watch", "watch requires secrets.dir"})
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{"secrets.cache_ttl", "cache TTL must not be negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, FieldError{"telemetry.logging.level", err.Error()})
	}
	if !lo.Contains([]string{"json", "text", "console"}, strings.ToLower(cfg.Logging.Format)) {
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("invalid log format %q", cfg.Logging.Format)})
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 {
		errs = append(errs, FieldError{"telemetry.logging.max_size_mb", "rotation limits must not be negative"})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "path must start with /"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{"telemetry.tracing.endpoint", "endpoint is required when tracing is enabled"})
		}
		if err := tracing.ValidateSampling(cfg.Tracing.Sampler, cfg.Tracing.SampleRatio); err != nil {
			errs = append(errs, FieldError{"telemetry.tracing.sampler", err.Error()})
		}
	}

	return errs
}

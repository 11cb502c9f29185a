package config

import (
	"time"

	reltls "keyrelay-hq/keyrelay/pkg/security/tls"
)

// Config is the root configuration structure for keyrelay.
type Config struct {
	// Proxy configures the relay listener and the upstream transport.
	Proxy ProxyConfig `yaml:"proxy"`

	// Store selects where accounts are persisted.
	Store StoreConfig `yaml:"store"`

	// Backup configures settings-file backups.
	Backup BackupConfig `yaml:"backup"`

	// Usage configures per-request token and cost recording.
	Usage UsageConfig `yaml:"usage"`

	// Management configures the control API.
	Management ManagementConfig `yaml:"management"`

	// Secrets configures ${secret:name} resolution.
	Secrets SecretsConfig `yaml:"secrets"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the relay listener.
type ProxyConfig struct {
	// Host is the interface the relay binds to.
	// Default: "127.0.0.1"
	Host string `yaml:"host"`

	// Port is the relay listen port.
	// Default: 8080
	Port int `yaml:"port"`

	// AutoStart starts the relay when `keyrelay serve` starts.
	// Default: true
	AutoStart bool `yaml:"auto_start"`

	// AllowedMethods are the methods relayed; others get 405.
	// Default: GET, POST, PUT, DELETE, PATCH
	AllowedMethods []string `yaml:"allowed_methods"`

	// ProviderVersion is sent as the anthropic-version header.
	// Default: "2023-06-01"
	ProviderVersion string `yaml:"provider_version"`

	// DialTimeout bounds connection establishment to the upstream.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// UpstreamTimeout bounds the wait for upstream response headers.
	// 0 means unbounded, which keeps long generations working.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// ReadHeaderTimeout bounds reading inbound request headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IdleTimeout closes idle keep-alive connections.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown of `keyrelay serve`.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the account store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite StoreSQLiteConfig `yaml:"sqlite"`
}

// StoreSQLiteConfig configures the account database.
type StoreSQLiteConfig struct {
	// Default: "data/accounts.db"
	Path string `yaml:"path"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// BackupConfig configures the settings backup manager.
type BackupConfig struct {
	// SettingsPath is the file to back up. Empty uses the OS default.
	SettingsPath string `yaml:"settings_path"`

	// BackupDir holds backups. Empty uses the OS default.
	BackupDir string `yaml:"backup_dir"`

	// Schedule is a cron expression for periodic backups. Empty disables.
	Schedule string `yaml:"schedule"`

	// Watch backs up the settings file whenever it changes.
	Watch bool `yaml:"watch"`

	// Debounce collapses bursts of changes when Watch is set.
	// Default: 2s
	Debounce time.Duration `yaml:"debounce"`

	// Keep, when positive, caps the number of backups retained.
	Keep int `yaml:"keep"`
}

// UsageConfig configures usage recording.
type UsageConfig struct {
	// Enabled turns usage recording on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite UsageSQLiteConfig `yaml:"sqlite"`

	// Buffer is the recorder queue length. Records beyond it are dropped.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// CaptureLimit is how many bytes of each body are kept for token
	// extraction.
	// Default: 4 MiB
	CaptureLimit int64 `yaml:"capture_limit"`

	Retention RetentionConfig `yaml:"retention"`

	// Pricing overrides the built-in per-model prices, in USD per million
	// tokens. Entries are merged over the defaults.
	Pricing map[string]PriceConfig `yaml:"pricing"`
}

// UsageSQLiteConfig configures the usage database.
type UsageSQLiteConfig struct {
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`
}

// RetentionConfig configures pruning of old usage records.
type RetentionConfig struct {
	// Days is the retention period. 0 keeps records forever.
	// Default: 90
	Days int `yaml:"days"`

	// Schedule is the cron expression for pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// PriceConfig is a per-model price in USD per million tokens.
type PriceConfig struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// ManagementConfig configures the control API.
type ManagementConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Default: "127.0.0.1:8081"
	ListenAddress string `yaml:"listen_address"`

	// Token, when set, is required as a bearer token on every endpoint
	// except the health probes. It may be a ${secret:name} reference.
	Token string `yaml:"token"`

	CORS CORSConfig `yaml:"cors"`

	TLS ManagementTLSConfig `yaml:"tls"`
}

// ManagementTLSConfig serves the control API over TLS.
type ManagementTLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	CipherSuites []string `yaml:"cipher_suites"`

	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// Options converts the section for the tls package.
func (c ManagementTLSConfig) Options() reltls.Config {
	return reltls.Config{
		Enabled:        c.Enabled,
		CertFile:       c.CertFile,
		KeyFile:        c.KeyFile,
		MinVersion:     c.MinVersion,
		CipherSuites:   c.CipherSuites,
		ReloadInterval: c.ReloadInterval,
	}
}

// SecretsConfig configures the providers behind ${secret:name} references.
// The environment is always consulted first, then Dir when set.
type SecretsConfig struct {
	// EnvPrefix namespaces secret variables.
	// Default: "KEYRELAY_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret, mode 0600 or 0400.
	Dir string `yaml:"dir"`

	// Watch drops cached file secrets when files in Dir change.
	Watch bool `yaml:"watch"`

	// CacheTTL bounds how long a resolved value is reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CORSConfig contains CORS configuration for the management API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	AddSource bool `yaml:"add_source"`

	// File, when set, sends logs to a rotating file.
	File string `yaml:"file"`

	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb"`

	// Default: 3
	MaxBackups int `yaml:"max_backups"`

	// RedactSecrets masks API keys and bearer tokens.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Default: "keyrelay"
	Namespace string `yaml:"namespace"`

	// Default: "/metrics"
	Path string `yaml:"path"`

	// Default: 1000
	MaxLabelSets int `yaml:"max_label_sets"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Default: true
	Insecure bool `yaml:"insecure"`

	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Default: "keyrelay"
	ServiceName string `yaml:"service_name"`
}

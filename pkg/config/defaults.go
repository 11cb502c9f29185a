package config

import "time"

// DefaultConfigPath is read when --config is not given. It may be absent.
const DefaultConfigPath = "keyrelay.yaml"

// Storage backends accepted by store.backend and usage.backend.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultProxyHost         = "127.0.0.1"
	DefaultProxyPort         = 8080
	DefaultProviderVersion   = "2023-06-01"
	DefaultDialTimeout       = 10 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second

	// Store defaults
	DefaultStoreBackend      = BackendSQLite
	DefaultStoreSQLitePath   = "data/accounts.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second

	// Backup defaults
	DefaultBackupDebounce = 2 * time.Second

	// Usage defaults
	DefaultUsageBackend      = BackendSQLite
	DefaultRetentionDays     = 90
	DefaultUsageSQLitePath   = "data/usage.db"
	DefaultUsageMaxOpenConns = 4
	DefaultUsageBuffer       = 1000
	DefaultUsageWriteTimeout = 5 * time.Second
	DefaultUsageCaptureLimit = int64(4 << 20)
	DefaultRetentionSchedule = "0 3 * * *"

	// Management defaults
	DefaultManagementAddress = "127.0.0.1:8081"
	DefaultCORSMaxAge        = 3600
	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute

	// Secrets defaults
	DefaultSecretsEnvPrefix = "KEYRELAY_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogMaxSizeMB     = 10
	DefaultLogMaxBackups    = 3
	DefaultMetricsNamespace = "keyrelay"
	DefaultMetricsPath      = "/metrics"
	DefaultMaxLabelSets     = 1000
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 1.0
	DefaultTracingService   = "keyrelay"
)

// DefaultAllowedMethods are the methods relayed when proxy.allowed_methods
// is empty.
func DefaultAllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "DELETE", "PATCH"}
}

// Default returns a fully populated configuration. Boolean settings whose
// default is true are only set here, so YAML is decoded over this value
// rather than over a zero Config.
func Default() *Config {
	cfg := &Config{
		Proxy: ProxyConfig{AutoStart: true},
		Usage: UsageConfig{
			Enabled:   true,
			SQLite:    UsageSQLiteConfig{WALMode: true},
			Retention: RetentionConfig{Days: DefaultRetentionDays},
		},
		Management: ManagementConfig{Enabled: true},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactSecrets: true},
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{Insecure: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	// Proxy
	if cfg.Proxy.Host == "" {
		cfg.Proxy.Host = DefaultProxyHost
	}
	if cfg.Proxy.Port == 0 {
		cfg.Proxy.Port = DefaultProxyPort
	}
	if len(cfg.Proxy.AllowedMethods) == 0 {
		cfg.Proxy.AllowedMethods = DefaultAllowedMethods()
	}
	if cfg.Proxy.ProviderVersion == "" {
		cfg.Proxy.ProviderVersion = DefaultProviderVersion
	}
	if cfg.Proxy.DialTimeout == 0 {
		cfg.Proxy.DialTimeout = DefaultDialTimeout
	}
	if cfg.Proxy.ReadHeaderTimeout == 0 {
		cfg.Proxy.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Store
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultStoreSQLitePath
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Backup
	if cfg.Backup.Debounce == 0 {
		cfg.Backup.Debounce = DefaultBackupDebounce
	}

	// Usage
	if cfg.Usage.Backend == "" {
		cfg.Usage.Backend = DefaultUsageBackend
	}
	if cfg.Usage.SQLite.Path == "" {
		cfg.Usage.SQLite.Path = DefaultUsageSQLitePath
	}
	if cfg.Usage.SQLite.BusyTimeout == 0 {
		cfg.Usage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Usage.SQLite.MaxOpenConns == 0 {
		cfg.Usage.SQLite.MaxOpenConns = DefaultUsageMaxOpenConns
	}
	if cfg.Usage.Buffer == 0 {
		cfg.Usage.Buffer = DefaultUsageBuffer
	}
	if cfg.Usage.WriteTimeout == 0 {
		cfg.Usage.WriteTimeout = DefaultUsageWriteTimeout
	}
	if cfg.Usage.CaptureLimit == 0 {
		cfg.Usage.CaptureLimit = DefaultUsageCaptureLimit
	}
	if cfg.Usage.Retention.Schedule == "" {
		cfg.Usage.Retention.Schedule = DefaultRetentionSchedule
	}

	// Management
	if cfg.Management.ListenAddress == "" {
		cfg.Management.ListenAddress = DefaultManagementAddress
	}
	if cfg.Management.CORS.MaxAge == 0 {
		cfg.Management.CORS.MaxAge = DefaultCORSMaxAge
	}
	if cfg.Management.TLS.MinVersion == "" {
		cfg.Management.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Management.TLS.ReloadInterval == 0 {
		cfg.Management.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	// Secrets
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}

	// Telemetry
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = DefaultLogMaxBackups
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.MaxLabelSets == 0 {
		cfg.Metrics.MaxLabelSets = DefaultMaxLabelSets
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
}

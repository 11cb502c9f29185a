package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"
)

// DefaultReloadInterval is how often certificate files are checked for
// changes when Config.ReloadInterval is zero.
const DefaultReloadInterval = 5 * time.Minute

// Config describes TLS for the management listener.
type Config struct {
	Enabled bool

	// CertFile and KeyFile are PEM-encoded.
	CertFile string
	KeyFile  string

	// MinVersion is "1.2" or "1.3". Default: "1.3"
	MinVersion string

	// CipherSuites restricts TLS 1.2 suites by name. Empty uses Go's
	// defaults. TLS 1.3 suites are not configurable.
	CipherSuites []string

	// ReloadInterval is how often certificate files are checked for
	// changes. Default: 5m
	ReloadInterval time.Duration
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" {
		return fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("key_file is required when TLS is enabled")
	}
	if _, err := parseVersion(c.MinVersion); err != nil {
		return err
	}
	for _, name := range c.CipherSuites {
		if _, ok := cipherSuites[name]; !ok {
			return fmt.Errorf("unsupported cipher suite %q", name)
		}
	}
	if c.ReloadInterval < 0 {
		return fmt.Errorf("reload interval must not be negative")
	}
	return nil
}

// ServerConfig loads the certificate and returns a crypto/tls config whose
// certificate follows the files on disk until ctx is done. It returns nil
// when TLS is disabled.
func (c Config) ServerConfig(ctx context.Context) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	interval := c.ReloadInterval
	if interval == 0 {
		interval = DefaultReloadInterval
	}
	reloader := NewCertificateReloader(c.CertFile, c.KeyFile, interval)
	if err := reloader.Start(ctx); err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	minVersion, _ := parseVersion(c.MinVersion)
	// #nosec G402 - MinVersion is restricted to TLS 1.2 and 1.3
	return &tls.Config{
		GetCertificate: reloader.GetCertificateFunc(),
		MinVersion:     minVersion,
		CipherSuites:   c.suites(),
		NextProtos:     []string{"h2", "http/1.1"},
	}, nil
}

func parseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.3":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q (want 1.2 or 1.3)", v)
	}
}

func (c Config) suites() []uint16 {
	if len(c.CipherSuites) == 0 {
		return nil
	}
	ids := make([]uint16, 0, len(c.CipherSuites))
	for _, name := range c.CipherSuites {
		if id, ok := cipherSuites[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

var cipherSuites = map[string]uint16{
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

package tls

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "disabled",
			config: Config{},
		},
		{
			name:   "valid",
			config: Config{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.2"},
		},
		{
			name:    "missing cert",
			config:  Config{Enabled: true, KeyFile: "k.pem"},
			wantErr: "cert_file is required",
		},
		{
			name:    "missing key",
			config:  Config{Enabled: true, CertFile: "c.pem"},
			wantErr: "key_file is required",
		},
		{
			name:    "old version",
			config:  Config{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.1"},
			wantErr: "unsupported TLS version",
		},
		{
			name:    "unknown suite",
			config:  Config{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", CipherSuites: []string{"TLS_RSA_WITH_RC4_128_SHA"}},
			wantErr: "unsupported cipher suite",
		},
		{
			name:    "negative interval",
			config:  Config{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem", ReloadInterval: -time.Second},
			wantErr: "reload interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ServerConfig_Disabled(t *testing.T) {
	cfg, err := Config{}.ServerConfig(context.Background())
	if err != nil || cfg != nil {
		t.Errorf("ServerConfig() = %v, %v; want nil, nil", cfg, err)
	}
}

func TestConfig_ServerConfig_MissingFiles(t *testing.T) {
	_, err := Config{Enabled: true, CertFile: "missing.crt", KeyFile: "missing.key"}.ServerConfig(context.Background())
	if err == nil {
		t.Error("expected error for missing certificate files")
	}
}

func TestConfig_ServerConfig_Serves(t *testing.T) {
	certPath, keyPath := validCert(t, t.TempDir(), "keyrelay-mgmt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tlsCfg, err := Config{
		Enabled:      true,
		CertFile:     certPath,
		KeyFile:      keyPath,
		MinVersion:   "1.2",
		CipherSuites: []string{"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"},
	}.ServerConfig(ctx)
	if err != nil {
		t.Fatalf("ServerConfig() failed: %v", err)
	}
	if tlsCfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", tlsCfg.MinVersion)
	}
	if len(tlsCfg.CipherSuites) != 1 {
		t.Errorf("CipherSuites = %v", tlsCfg.CipherSuites)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	srv.TLS = tlsCfg
	srv.StartTLS()
	defer srv.Close()

	client := &http.Client{Transport: &http.Transport{
		// #nosec G402 - self-signed test certificate
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true, ServerName: "localhost"},
	}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.TLS == nil || len(resp.TLS.PeerCertificates) == 0 {
		t.Fatal("response was not served over TLS")
	}
	if cn := resp.TLS.PeerCertificates[0].Subject.CommonName; cn != "keyrelay-mgmt" {
		t.Errorf("peer CN = %q, want keyrelay-mgmt", cn)
	}
}

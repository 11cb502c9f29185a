package tls

import (
	"context"
	"crypto/x509"
	"os"
	"testing"
	"time"
)

func leafCN(t *testing.T, r *CertificateReloader) string {
	t.Helper()
	cert := r.Certificate()
	if cert == nil {
		t.Fatal("no certificate loaded")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	return leaf.Subject.CommonName
}

func TestCertificateReloader_Start(t *testing.T) {
	certPath, keyPath := validCert(t, t.TempDir(), "first")

	r := NewCertificateReloader(certPath, keyPath, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if cn := leafCN(t, r); cn != "first" {
		t.Errorf("CN = %q, want first", cn)
	}

	got, err := r.GetCertificateFunc()(nil)
	if err != nil || got == nil {
		t.Errorf("GetCertificateFunc() = %v, %v", got, err)
	}
}

func TestCertificateReloader_StartFailures(t *testing.T) {
	ctx := context.Background()

	if err := NewCertificateReloader("missing.crt", "missing.key", time.Hour).Start(ctx); err == nil {
		t.Error("expected error for missing files")
	}

	now := time.Now()
	certPath, keyPath := writeCert(t, t.TempDir(), "old", now.Add(-48*time.Hour), now.Add(-time.Hour))
	if err := NewCertificateReloader(certPath, keyPath, time.Hour).Start(ctx); err == nil {
		t.Error("expected error for expired certificate")
	}
}

func TestCertificateReloader_PicksUpRenewal(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := validCert(t, dir, "first")

	r := NewCertificateReloader(certPath, keyPath, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	validCert(t, dir, "renewed")
	future := time.Now().Add(time.Minute)
	for _, p := range []string{certPath, keyPath} {
		if err := os.Chtimes(p, future, future); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if leafCN(t, r) == "renewed" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("renewed certificate was not loaded")
}

func TestCertificateReloader_KeepsCertOnBadReload(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := validCert(t, dir, "first")

	r := NewCertificateReloader(certPath, keyPath, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(certPath, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(certPath, future, future); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if cn := leafCN(t, r); cn != "first" {
		t.Errorf("CN after bad reload = %q, want first", cn)
	}
}

/*
Package tls serves the keyrelay management API over TLS.

The certificate is re-read from disk whenever its files change, so a renewed
certificate is picked up without restarting `keyrelay serve`:

	cfg := tls.Config{
		Enabled:  true,
		CertFile: "/etc/keyrelay/mgmt.crt",
		KeyFile:  "/etc/keyrelay/mgmt.key",
	}
	tlsCfg, err := cfg.ServerConfig(ctx)

The relay listener itself stays plain HTTP on loopback; clients such as the
Claude CLI talk to it over localhost.
*/
package tls

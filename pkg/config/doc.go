// Package config loads keyrelay's YAML configuration.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("keyrelay.yaml", true)
//
// With optional set, a missing file yields the defaults.
//
// # Configuration Precedence
//
// Later sources override earlier ones:
//
//  1. Default values (Default and ApplyDefaults)
//  2. Values from the YAML file
//  3. KEYRELAY_* environment variables, e.g. KEYRELAY_PROXY_PORT or
//     KEYRELAY_MANAGEMENT_TOKEN
//  4. Validation, which reports every invalid field at once
//
// The CLI loads a .env file from the working directory before reading the
// environment; variables already set are not replaced.
//
// # Example
//
//	proxy:
//	  host: 127.0.0.1
//	  port: 8080
//	store:
//	  backend: sqlite
//	  sqlite:
//	    path: data/accounts.db
//	usage:
//	  retention:
//	    days: 30
//	  pricing:
//	    claude-sonnet-4: {input: 3, output: 15}
//	management:
//	  listen_address: 127.0.0.1:8081
//	  token: change-me
//	telemetry:
//	  logging:
//	    level: debug
//	    format: text
package config

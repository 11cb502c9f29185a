// Package security groups keyrelay's secret resolution (secrets) and
// management-listener TLS (tls). Bearer authentication of the management
// API lives in pkg/proxy/middleware.
package security

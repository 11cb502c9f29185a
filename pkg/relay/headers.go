package relay

import (
	"net/http"
	"net/textproto"
	"strings"
)

const (
	// HeaderAPIKey carries the upstream credential.
	HeaderAPIKey = "X-Api-Key"

	// HeaderProviderVersion pins the upstream API version.
	HeaderProviderVersion = "Anthropic-Version"

	// DefaultProviderVersion is sent when no version is configured.
	DefaultProviderVersion = "2023-06-01"
)

// hopHeaders are connection-scoped and never forwarded in either direction.
// The Go transport manages framing itself.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// FilterOutbound returns a copy of the caller's headers suitable for the
// upstream request: Host, X-Api-Key and hop-by-hop headers are removed.
// The input is not modified.
func FilterOutbound(in http.Header) http.Header {
	out := filterHop(in)
	deleteFold(out, "Host")
	deleteFold(out, HeaderAPIKey)
	return out
}

// FilterInbound returns a copy of the upstream response headers with
// hop-by-hop headers removed. The input is not modified.
func FilterInbound(up http.Header) http.Header {
	return filterHop(up)
}

func filterHop(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return http.Header{}
	}

	// Headers named in Connection are hop-by-hop too (RFC 9110 7.6.1).
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				deleteFold(out, name)
			}
		}
	}
	for _, name := range hopHeaders {
		deleteFold(out, name)
	}
	return out
}

// deleteFold removes name from h regardless of how the key was cased when it
// was inserted. Header.Del only matches the canonical form.
func deleteFold(h http.Header, name string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
}

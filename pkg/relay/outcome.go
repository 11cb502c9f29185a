package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies how a relayed request ended.
type Kind string

const (
	// KindForwarded means the upstream answered and its response was mirrored,
	// whatever its status code.
	KindForwarded Kind = "forwarded"

	// KindAccountUnavailable means no account was active and 503 was returned.
	KindAccountUnavailable Kind = "account_unavailable"

	// KindUpstreamFailure means the transport failed; 502 was returned, or the
	// connection was aborted when headers were already sent.
	KindUpstreamFailure Kind = "upstream_failure"

	// KindCanceled means the caller went away or the proxy was stopped.
	KindCanceled Kind = "canceled"
)

// Outcome describes one relayed exchange. It is handed to every Hook after the
// response has been written.
type Outcome struct {
	Kind       Kind
	RequestID  string
	AccountID  string
	Method     string
	Path       string
	StatusCode int
	Header     http.Header
	BytesIn    int64
	BytesOut   int64
	Started    time.Time
	Duration   time.Duration
	Err        error

	// RequestBody and ResponseBody hold the first CaptureLimit bytes of each
	// body. Both are nil when capture is disabled.
	RequestBody       []byte
	ResponseBody      []byte
	ResponseTruncated bool
}

// Hook observes completed exchanges. AfterRelay runs on the request goroutine
// and must not block; ctx is detached from the request's cancellation.
type Hook interface {
	AfterRelay(ctx context.Context, o *Outcome)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, o *Outcome)

// AfterRelay implements Hook.
func (f HookFunc) AfterRelay(ctx context.Context, o *Outcome) { f(ctx, o) }

// UpstreamError is a transport failure talking to the upstream.
type UpstreamError struct {
	Op    string // "build", "roundtrip", "read_body"
	URL   string
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s %s: %v", e.Op, e.URL, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/proxy/middleware"
	"keyrelay-hq/keyrelay/pkg/telemetry/logging"
	"keyrelay-hq/keyrelay/pkg/telemetry/tracing"
)

const (
	msgNoActiveAccount = "No active account configured"
	msgProxyError      = "Proxy error: "

	copyBufferSize = 32 * 1024

	// requestBodyGrace bounds how long a finished relay waits for the
	// transport to release the request body before counting it.
	requestBodyGrace = time.Second
)

// AccountResolver yields the account a request should be relayed through.
// *accounts.Resolver implements it.
type AccountResolver interface {
	Resolve(ctx context.Context) (accounts.Account, error)
}

// Config controls the relay engine.
type Config struct {
	// ProviderVersion is sent as the Anthropic-Version header.
	// Default: "2023-06-01"
	ProviderVersion string

	// DialTimeout bounds connection establishment to the upstream.
	// Default: 10 seconds
	DialTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for upstream response headers.
	// Zero means no limit, which keeps long-running streams working.
	ResponseHeaderTimeout time.Duration

	// CaptureLimit is how many bytes of each body are kept for hooks.
	// Zero disables capture.
	CaptureLimit int64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHooks registers hooks that observe every completed exchange.
func WithHooks(hooks ...Hook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, hooks...) }
}

// WithTransport replaces the upstream RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Engine) { e.client.Transport = rt }
}

// WithTracer replaces the tracer used for upstream spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithLogger replaces the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine relays every request it serves to the active account's upstream.
//
// It resolves the account once per request, so the account snapshot stays
// fixed for the life of the exchange even if another account is activated
// meanwhile. No lock is held during network I/O.
type Engine struct {
	resolver AccountResolver
	cfg      Config
	client   *http.Client
	hooks    []Hook
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New creates an Engine.
func New(resolver AccountResolver, cfg Config, opts ...Option) *Engine {
	if cfg.ProviderVersion == "" {
		cfg.ProviderVersion = DefaultProviderVersion
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	e := &Engine{
		resolver: resolver,
		cfg:      cfg,
		client: &http.Client{
			Transport: newTransport(cfg),
			// Redirects are the caller's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		tracer: otel.Tracer("keyrelay/relay"),
		logger: slog.Default().With("component", "relay"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		// Bodies pass through byte for byte, compressed or not.
		DisableCompression: true,
	}
}

// ServeHTTP implements http.Handler.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := &Outcome{
		RequestID: middleware.GetRequestID(ctx),
		Method:    r.Method,
		Path:      r.URL.Path,
		Started:   time.Now(),
	}
	defer e.finish(ctx, out)

	acct, err := e.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountUnavailable) {
			e.logger.WarnContext(ctx, "rejecting request, no active account")
		} else {
			e.logger.ErrorContext(ctx, "account resolution failed", "error", err)
		}
		out.Kind = KindAccountUnavailable
		out.Err = err
		out.StatusCode = http.StatusServiceUnavailable
		writePlain(w, http.StatusServiceUnavailable, msgNoActiveAccount)
		return
	}
	out.AccountID = acct.ID
	ctx = logging.WithAccountID(ctx, acct.ID)

	ctx, span := e.tracer.Start(ctx, "relay "+r.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("keyrelay.account.id", acct.ID),
		),
	)
	defer span.End()

	target := TargetURL(acct.BaseURL, r)

	reqCapture := NewCapture(e.cfg.CaptureLimit)
	var body io.Reader = http.NoBody
	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		// Upstreams may answer before the upload ends. Keep reading the
		// caller's body while the response streams back.
		if err := http.NewResponseController(w).EnableFullDuplex(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			e.logger.DebugContext(ctx, "full duplex unavailable", "error", err)
		}
		sent := newCloseNotifyBody(io.TeeReader(r.Body, reqCapture), r.Body)
		body = sent
		// Runs before finish. The transport may still be uploading after the
		// response arrived, so wait for it to release the body first.
		defer func() {
			if !sent.wait(requestBodyGrace, ctx.Done()) {
				e.logger.DebugContext(ctx, "request body still in flight, counting partial upload")
			}
			out.BytesIn = reqCapture.Total()
			out.RequestBody = reqCapture.Bytes()
		}()
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		if c, ok := body.(io.Closer); ok {
			_ = c.Close()
		}
		e.failBeforeHeaders(ctx, w, out, span, &UpstreamError{Op: "build", URL: target, Cause: err})
		return
	}
	if body != http.NoBody {
		outReq.ContentLength = r.ContentLength
	}
	outReq.Header = FilterOutbound(r.Header)
	outReq.Header.Set(HeaderAPIKey, acct.APIKey)
	outReq.Header.Set(HeaderProviderVersion, e.cfg.ProviderVersion)
	tracing.Inject(ctx, outReq.Header)

	resp, err := e.client.Do(outReq)
	if err != nil {
		if ctx.Err() != nil {
			e.canceled(ctx, out, span, err)
			return
		}
		e.failBeforeHeaders(ctx, w, out, span, &UpstreamError{Op: "roundtrip", URL: target, Cause: err})
		return
	}
	defer resp.Body.Close()

	out.Kind = KindForwarded
	out.StatusCode = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	header := FilterInbound(resp.Header)
	dst := w.Header()
	for k, v := range header {
		dst[k] = v
	}
	out.Header = header
	w.WriteHeader(resp.StatusCode)

	respCapture := NewCapture(e.cfg.CaptureLimit)
	clientGone, copyErr := e.stream(w, resp.Body, respCapture)
	out.BytesOut = respCapture.Total()
	out.ResponseBody = respCapture.Bytes()
	out.ResponseTruncated = respCapture.Truncated()

	switch {
	case copyErr == nil:
		return
	case clientGone || ctx.Err() != nil:
		e.canceled(ctx, out, span, copyErr)
	default:
		uerr := &UpstreamError{Op: "read_body", URL: target, Cause: copyErr}
		out.Kind = KindUpstreamFailure
		out.Err = uerr
		span.RecordError(uerr)
		span.SetStatus(codes.Error, "upstream body failed")
		e.logger.ErrorContext(ctx, "upstream failed mid-response, aborting connection",
			"error", copyErr,
			"bytes_out", out.BytesOut,
		)
		// Status and headers are already on the wire, so the client can only
		// learn about the failure from a broken connection. Deferred hooks
		// still run while the panic unwinds.
		panic(http.ErrAbortHandler)
	}
}

// stream copies body to w, flushing after every write. It reports the first
// error and whether it came from the client side.
func (e *Engine) stream(w http.ResponseWriter, body io.Reader, capture *Capture) (clientGone bool, err error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, copyBufferSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return true, werr
			}
			_, _ = capture.Write(buf[:n])
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return true, ferr
			}
		}
		if rerr == io.EOF {
			return false, nil
		}
		if rerr != nil {
			return false, rerr
		}
	}
}

func (e *Engine) failBeforeHeaders(ctx context.Context, w http.ResponseWriter, out *Outcome, span trace.Span, uerr *UpstreamError) {
	out.Kind = KindUpstreamFailure
	out.Err = uerr
	out.StatusCode = http.StatusBadGateway

	span.RecordError(uerr)
	span.SetStatus(codes.Error, "upstream request failed")

	e.logger.ErrorContext(ctx, "upstream request failed",
		"error", uerr.Cause,
		"op", uerr.Op,
		"url", uerr.URL,
	)
	writePlain(w, http.StatusBadGateway, msgProxyError+uerr.Cause.Error())
}

func (e *Engine) canceled(ctx context.Context, out *Outcome, span trace.Span, err error) {
	out.Kind = KindCanceled
	out.Err = err
	span.SetStatus(codes.Error, "canceled")
	e.logger.InfoContext(ctx, "relay canceled",
		"error", err,
	)
}

func (e *Engine) finish(ctx context.Context, out *Outcome) {
	out.Duration = time.Since(out.Started)

	hctx := context.WithoutCancel(ctx)
	for _, h := range e.hooks {
		h.AfterRelay(hctx, out)
	}
}

// TargetURL joins the account base URL with the inbound path and raw query.
func TargetURL(baseURL string, r *http.Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString(r.URL.EscapedPath())
	if r.URL.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(r.URL.RawQuery)
	}
	return b.String()
}

func writePlain(w http.ResponseWriter, code int, msg string) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}

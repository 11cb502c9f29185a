package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"keyrelay-hq/keyrelay/pkg/proxy/middleware"
)

// ErrAlreadyRunning is returned by Start while the proxy is serving.
var ErrAlreadyRunning = errors.New("proxy server is already running")

// DefaultAllowedMethods are the methods the relay listener accepts when none
// are configured.
var DefaultAllowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// Options configures the relay listener.
type Options struct {
	// Host is the interface to bind. Default: "127.0.0.1"
	Host string

	// AllowedMethods limits accepted methods; others receive 405.
	// Default: DefaultAllowedMethods
	AllowedMethods []string

	// ReadHeaderTimeout bounds reading request headers from callers.
	ReadHeaderTimeout time.Duration

	// IdleTimeout closes idle keep-alive connections.
	IdleTimeout time.Duration

	// Middleware is applied inside logging and outside the method filter,
	// e.g. metrics instrumentation.
	Middleware []func(http.Handler) http.Handler
}

// ProxyServer owns the relay listener and its start/stop lifecycle.
// All methods are safe for concurrent use.
type ProxyServer struct {
	handler http.Handler
	opts    Options
	logger  *slog.Logger

	mu         sync.RWMutex
	httpServer *http.Server
	cancel     context.CancelFunc
	done       chan struct{}
	running    bool
	port       int
}

// New creates a stopped ProxyServer that dispatches every path to relay.
func New(relay http.Handler, opts Options) *ProxyServer {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = DefaultAllowedMethods
	}

	s := &ProxyServer{
		opts:   opts,
		logger: slog.Default().With("component", "proxy"),
	}
	s.handler = s.buildHandler(relay)
	return s
}

// buildHandler configures the middleware chain around the relay.
func (s *ProxyServer) buildHandler(relay http.Handler) http.Handler {
	handler := middleware.MethodFilterMiddleware(s.opts.AllowedMethods)(relay)

	for i := len(s.opts.Middleware) - 1; i >= 0; i-- {
		handler = s.opts.Middleware[i](handler)
	}

	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// Start binds the listener on port and begins serving in the background.
// Bind failures are returned directly. Port 0 picks a free port, which Port
// then reports.
func (s *ProxyServer) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind proxy listener on %s: %w", addr, err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	done := make(chan struct{})

	s.httpServer = srv
	s.cancel = cancel
	s.done = done
	s.running = true
	s.port = ln.Addr().(*net.TCPAddr).Port

	go s.serve(srv, ln, done)

	s.logger.Info("proxy server started", "address", ln.Addr().String())
	return nil
}

func (s *ProxyServer) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)

	err := srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}

	s.logger.Error("proxy server failed", "error", err)

	s.mu.Lock()
	if s.httpServer == srv {
		s.running = false
		s.cancel()
	}
	s.mu.Unlock()
}

// Stop cancels in-flight requests, closes the listener and every open
// connection, and waits for the serve loop to exit or ctx to expire.
// Stopping a stopped server is a no-op.
func (s *ProxyServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	srv, cancel, done := s.httpServer, s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	s.logger.Info("stopping proxy server", "port", s.Port())

	cancel()
	closeErr := srv.Close()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for proxy server to stop: %w", ctx.Err())
	}

	if closeErr != nil {
		return fmt.Errorf("proxy server close error: %w", closeErr)
	}
	s.logger.Info("proxy server stopped")
	return nil
}

// IsRunning returns true if the server is accepting connections.
func (s *ProxyServer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Port returns the bound port, or the last one used once stopped.
// Zero means the server was never started.
func (s *ProxyServer) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Status is a point-in-time view of the lifecycle.
type Status struct {
	Running bool `json:"running"`
	Port    int  `json:"port"`
}

// Status returns the running flag and port under one lock.
func (s *ProxyServer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Running: s.running, Port: s.port}
}

// Handler returns the configured HTTP handler.
func (s *ProxyServer) Handler() http.Handler {
	return s.handler
}

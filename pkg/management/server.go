package management

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/backup"
	"keyrelay-hq/keyrelay/pkg/proxy/middleware"
	"keyrelay-hq/keyrelay/pkg/server"
	"keyrelay-hq/keyrelay/pkg/telemetry/health"
	"keyrelay-hq/keyrelay/pkg/usage"
)

// AccountService is the account registry. *accounts.Service implements it.
type AccountService interface {
	Create(ctx context.Context, name, baseURL, apiKey string) (accounts.Account, error)
	List(ctx context.Context) ([]accounts.Account, error)
	Get(ctx context.Context, id string) (accounts.Account, error)
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	GetActive(ctx context.Context) (accounts.Account, bool, error)
}

// ProxyController starts and stops the relay listener. *server.ProxyServer
// implements it.
type ProxyController interface {
	Start(port int) error
	Stop(ctx context.Context) error
	Status() server.Status
}

// BackupManager performs settings backups. *backup.Manager implements it.
type BackupManager interface {
	Backup() (backup.Info, error)
	Restore(filename string) error
	List() ([]backup.Info, error)
	Delete(filename string) error
}

// UsageReader reads recorded usage. Every usage.Storage implements it.
type UsageReader interface {
	Query(ctx context.Context, filter usage.Filter) ([]*usage.Record, error)
	Summary(ctx context.Context, accountID string) ([]usage.Summary, error)
}

// AccountObserver is told about registry changes. *metrics.Collector
// implements it.
type AccountObserver interface {
	RecordAccountSwitch(accountID string)
	SetAccountCount(n int)
}

// Dependencies are the components the API exposes. Accounts and Proxy are
// required; endpoints for nil optional components are not mounted.
type Dependencies struct {
	Accounts AccountService
	Proxy    ProxyController
	Backups  BackupManager
	Usage    UsageReader
	Health   *health.Checker
	Metrics  http.Handler
	Observer AccountObserver
}

// Config configures the management API.
type Config struct {
	// ListenAddress is where ListenAndServe binds. Default: "127.0.0.1:8081"
	ListenAddress string

	// Token, when set, is required as a bearer token except on the health
	// probes.
	Token string

	// CORS is applied when non-nil and enabled.
	CORS *middleware.CORSConfig

	// TLS, when non-nil, serves the API over HTTPS.
	TLS *tls.Config

	// MetricsPath is where Dependencies.Metrics is mounted. Default: "/metrics"
	MetricsPath string

	// ProxyPort is used by POST /api/proxy/start when the body names no port.
	// Default: 8080
	ProxyPort int

	Version   string
	Commit    string
	BuildTime string
}

// Server is the management HTTP API.
type Server struct {
	cfg     Config
	deps    Dependencies
	handler http.Handler
	logger  *slog.Logger
}

// New creates a management server.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:8081"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ProxyPort == 0 {
		cfg.ProxyPort = 8080
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "management"),
	}
	s.handler = s.buildHandler(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts/active", s.handleActiveAccount)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("POST /api/accounts/{id}/activate", s.handleActivateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)

	mux.HandleFunc("GET /api/proxy", s.handleProxyStatus)
	mux.HandleFunc("POST /api/proxy/start", s.handleProxyStart)
	mux.HandleFunc("POST /api/proxy/stop", s.handleProxyStop)

	if s.deps.Backups != nil {
		mux.HandleFunc("GET /api/backups", s.handleListBackups)
		mux.HandleFunc("POST /api/backups", s.handleCreateBackup)
		mux.HandleFunc("POST /api/backups/{filename}/restore", s.handleRestoreBackup)
		mux.HandleFunc("DELETE /api/backups/{filename}", s.handleDeleteBackup)
	}

	if s.deps.Usage != nil {
		mux.HandleFunc("GET /api/usage", s.handleListUsage)
		mux.HandleFunc("GET /api/usage/summary", s.handleUsageSummary)
	}

	checker := s.deps.Health
	if checker == nil {
		checker = health.New(0)
	}
	health.Register(mux, checker, health.DefaultPaths(), s.cfg.Version, s.cfg.Commit, s.cfg.BuildTime)

	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.deps.Metrics)
	}

	return mux
}

// buildHandler wraps the mux in the middleware chain, outermost last.
func (s *Server) buildHandler(mux http.Handler) http.Handler {
	paths := health.DefaultPaths()

	handler := middleware.BearerAuthMiddleware(s.cfg.Token, paths.Liveness, paths.Readiness)(mux)
	handler = middleware.CORSMiddleware(s.cfg.CORS)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe binds Config.ListenAddress and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to bind management API on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	scheme := "http"
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
		scheme = "https"
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("management API listening", "address", ln.Addr().String(), "scheme", scheme)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("management API shutdown: %w", err)
	}
	s.logger.Info("management API stopped")
	return nil
}

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/backup"
	"keyrelay-hq/keyrelay/pkg/cli"
	"keyrelay-hq/keyrelay/pkg/config"
	"keyrelay-hq/keyrelay/pkg/management"
	"keyrelay-hq/keyrelay/pkg/proxy/middleware"
	"keyrelay-hq/keyrelay/pkg/relay"
	"keyrelay-hq/keyrelay/pkg/server"
	"keyrelay-hq/keyrelay/pkg/telemetry/health"
	"keyrelay-hq/keyrelay/pkg/telemetry/metrics"
	"keyrelay-hq/keyrelay/pkg/telemetry/tracing"
	"keyrelay-hq/keyrelay/pkg/usage"
	"keyrelay-hq/keyrelay/pkg/usage/recorder"
	"keyrelay-hq/keyrelay/pkg/usage/retention"
)

var serveFlags struct {
	host        string
	port        int
	noAutoStart bool
	logLevel    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay and the management API",
	Long: `Start the relay listener and the management API.

The relay starts immediately when proxy.auto_start is set; otherwise it can be
started later with POST /api/proxy/start. SIGINT or SIGTERM stops everything
gracefully.

Examples:
  # Start with ./keyrelay.yaml, or defaults when it does not exist
  keyrelay serve

  # Custom config and relay port
  keyrelay serve --config /etc/keyrelay/keyrelay.yaml --port 9000

  # Start only the management API
  keyrelay serve --no-auto-start`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "override relay bind host")
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0, "override relay port")
	serveCmd.Flags().BoolVar(&serveFlags.noAutoStart, "no-auto-start", false, "do not start the relay listener on startup")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if serveFlags.host != "" {
		cfg.Proxy.Host = serveFlags.host
	}
	if serveFlags.port != 0 {
		cfg.Proxy.Port = serveFlags.port
	}
	if serveFlags.noAutoStart {
		cfg.Proxy.AutoStart = false
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.WrapConfigError(err)
	}

	logger, err := setupLogging(cfg, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer logger.Shutdown()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer a.close()

	if err := a.run(ctx, cmd.OutOrStdout()); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

// app holds every long-lived component of the serve command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tracer     *tracing.Tracer
	collector  *metrics.Collector
	repo       accounts.Repository
	accounts   *accounts.Service
	usage      usage.Storage
	recorder   *recorder.Recorder
	pruner     *retention.Pruner
	backups    *backup.Manager
	proxy      *server.ProxyServer
	checker    *health.Checker
	management *management.Server

	// stopTLS ends certificate reloading for the management listener.
	stopTLS context.CancelFunc
}

// newApp builds the component graph. Nothing listens until run.
func newApp(cfg *config.Config) (a *app, err error) {
	a = &app{
		cfg:    cfg,
		logger: slog.Default().With("component", "serve"),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	tc := cfg.Telemetry.Tracing
	a.tracer, err = tracing.New(tracing.Config{
		Enabled:        tc.Enabled,
		Endpoint:       tc.Endpoint,
		Insecure:       tc.Insecure,
		Timeout:        tc.Timeout,
		Sampler:        tc.Sampler,
		SampleRatio:    tc.SampleRatio,
		ServiceName:    tc.ServiceName,
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	mc := cfg.Telemetry.Metrics
	a.collector = metrics.NewCollector(&metrics.Config{
		Enabled:      mc.Enabled,
		Namespace:    mc.Namespace,
		Path:         mc.Path,
		MaxLabelSets: mc.MaxLabelSets,
	}, prometheus.NewRegistry())

	a.repo, err = openAccounts(cfg)
	if err != nil {
		return nil, err
	}
	a.accounts = accounts.NewService(a.repo)

	hooks := []relay.Hook{a.collector}
	var captureLimit int64
	if cfg.Usage.Enabled {
		a.usage, err = openUsage(cfg)
		if err != nil {
			return nil, err
		}
		a.recorder = recorder.NewRecorder(a.usage, &recorder.Config{
			Enabled:      true,
			AsyncBuffer:  cfg.Usage.Buffer,
			WriteTimeout: cfg.Usage.WriteTimeout,
			Pricing:      pricing(cfg),
			OnRecord:     a.collector.ObserveUsage,
		})
		a.collector.RegisterDropped(a.recorder.Dropped)
		a.pruner = retention.NewPruner(a.usage, &retention.Config{
			RetentionDays: cfg.Usage.Retention.Days,
			PruneSchedule: cfg.Usage.Retention.Schedule,
		})
		hooks = append(hooks, a.recorder)
		captureLimit = cfg.Usage.CaptureLimit
	}

	engine := relay.New(accounts.NewResolver(a.accounts), relay.Config{
		ProviderVersion:       cfg.Proxy.ProviderVersion,
		DialTimeout:           cfg.Proxy.DialTimeout,
		ResponseHeaderTimeout: cfg.Proxy.UpstreamTimeout,
		CaptureLimit:          captureLimit,
	},
		relay.WithHooks(hooks...),
		relay.WithTracer(a.tracer.Tracer()),
	)

	a.proxy = server.New(engine, server.Options{
		Host:              cfg.Proxy.Host,
		AllowedMethods:    cfg.Proxy.AllowedMethods,
		ReadHeaderTimeout: cfg.Proxy.ReadHeaderTimeout,
		IdleTimeout:       cfg.Proxy.IdleTimeout,
		Middleware: []func(http.Handler) http.Handler{
			tracing.HTTPMiddleware,
			a.collector.InFlightMiddleware,
		},
	})
	a.collector.RegisterProxyUp(a.proxy.IsRunning)

	a.backups = newBackupManager(cfg)

	a.checker = health.New(2 * time.Second)
	a.checker.RegisterCheck("accounts", health.PingCheck(a.accounts))
	if p, ok := a.usage.(health.Pinger); ok {
		a.checker.RegisterOptionalCheck("usage", health.PingCheck(p))
	}
	a.checker.RegisterOptionalCheck("proxy", health.RunningCheck(a.proxy.IsRunning))

	mgmtCfg, err := a.managementConfig()
	if err != nil {
		return nil, err
	}
	a.management = management.New(mgmtCfg, a.managementDeps())

	if list, lerr := a.accounts.List(context.Background()); lerr == nil {
		a.collector.SetAccountCount(len(list))
	}
	return a, nil
}

func (a *app) managementConfig() (management.Config, error) {
	mc := a.cfg.Management

	token, err := resolveSecret(context.Background(), a.cfg, mc.Token)
	if err != nil {
		return management.Config{}, cli.NewConfigError("management.token", err.Error())
	}

	var tlsCfg *tls.Config
	if mc.Enabled {
		var tlsCtx context.Context
		tlsCtx, a.stopTLS = context.WithCancel(context.Background())
		if tlsCfg, err = mc.TLS.Options().ServerConfig(tlsCtx); err != nil {
			return management.Config{}, cli.NewConfigError("management.tls", err.Error())
		}
	}

	cors := middleware.DefaultCORSConfig()
	cors.Enabled = mc.CORS.Enabled
	if len(mc.CORS.AllowedOrigins) > 0 {
		cors.AllowedOrigins = mc.CORS.AllowedOrigins
	}
	if mc.CORS.MaxAge > 0 {
		cors.MaxAge = mc.CORS.MaxAge
	}

	return management.Config{
		ListenAddress: mc.ListenAddress,
		Token:         token,
		CORS:          cors,
		TLS:           tlsCfg,
		MetricsPath:   a.collector.Config().Path,
		ProxyPort:     a.cfg.Proxy.Port,
		Version:       Version,
		Commit:        GitCommit,
		BuildTime:     BuildDate,
	}, nil
}

func (a *app) managementDeps() management.Dependencies {
	deps := management.Dependencies{
		Accounts: a.accounts,
		Proxy:    a.proxy,
		Backups:  a.backups,
		Health:   a.checker,
		Observer: a.collector,
	}
	if a.usage != nil {
		deps.Usage = a.usage
	}
	if a.collector.Config().Enabled {
		deps.Metrics = a.collector.Handler()
	}
	return deps
}

// run starts the relay (when auto_start is set), the schedulers and the
// management API, and blocks until ctx is canceled or a listener fails.
func (a *app) run(ctx context.Context, out io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Proxy.AutoStart {
		if err := a.proxy.Start(a.cfg.Proxy.Port); err != nil {
			return fmt.Errorf("failed to start relay: %w", err)
		}
		fmt.Fprintf(out, "✓ Relay listening on %s:%d\n", a.cfg.Proxy.Host, a.proxy.Port())
	} else {
		fmt.Fprintln(out, "Relay not started (proxy.auto_start is off)")
	}

	if a.pruner != nil {
		if err := a.pruner.Scheduler().Start(gctx); err != nil {
			a.logger.Warn("failed to start usage retention scheduler", "error", err)
		}
	}

	if err := backup.NewScheduler(a.backups, a.cfg.Backup.Schedule).Start(gctx); err != nil {
		a.logger.Warn("failed to start backup scheduler", "error", err)
	}

	if a.cfg.Backup.Watch {
		w, err := backup.NewWatcher(a.backups, a.cfg.Backup.Debounce)
		if err != nil {
			a.logger.Warn("settings watcher unavailable", "error", err)
		} else {
			g.Go(func() error {
				// A broken watcher must not take the relay down.
				if err := w.Watch(gctx); err != nil {
					a.logger.Error("settings watcher stopped", "error", err)
				}
				return nil
			})
		}
	}

	if a.cfg.Management.Enabled {
		scheme := "http"
		if a.cfg.Management.TLS.Enabled {
			scheme = "https"
		}
		fmt.Fprintf(out, "✓ Management API on %s://%s\n", scheme, a.cfg.Management.ListenAddress)
		g.Go(func() error {
			return a.management.ListenAndServe(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Proxy.ShutdownTimeout)
		defer cancel()
		return a.proxy.Stop(shutdownCtx)
	})

	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil {
		fmt.Fprintln(out, "✓ Stopped")
	}
	return err
}

// close releases resources in reverse construction order. Safe on a
// partially built app.
func (a *app) close() {
	if a.proxy != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Proxy.ShutdownTimeout)
		_ = a.proxy.Stop(ctx)
		cancel()
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.logger.Warn("usage recorder close failed", "error", err)
		}
	}
	if a.usage != nil {
		if err := a.usage.Close(); err != nil {
			a.logger.Warn("usage store close failed", "error", err)
		}
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Warn("account store close failed", "error", err)
		}
	}
	if a.stopTLS != nil {
		a.stopTLS()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
		cancel()
	}
}

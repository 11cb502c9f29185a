package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/backup"
	"keyrelay-hq/keyrelay/pkg/cli"
	"keyrelay-hq/keyrelay/pkg/config"
	"keyrelay-hq/keyrelay/pkg/security/secrets"
	"keyrelay-hq/keyrelay/pkg/telemetry/logging"
	"keyrelay-hq/keyrelay/pkg/usage"
	"keyrelay-hq/keyrelay/pkg/usage/storage"
)

// loadConfig reads the config file named by --config. The default path may be
// absent; an explicitly named file must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile, optional)
	if err != nil {
		return nil, cli.WrapConfigError(err)
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// setupLogging installs the process logger. One-shot commands log warnings
// only unless --verbose is set, so their output stays readable.
func setupLogging(cfg *config.Config, w io.Writer, daemon bool) (*logging.Logger, error) {
	lc := cfg.Telemetry.Logging
	level := lc.Level
	switch {
	case verbose:
		level = "debug"
	case !daemon:
		level = "warn"
	}

	file := lc.File
	if !daemon {
		file = ""
	}

	logger, err := logging.New(logging.Config{
		Level:         level,
		Format:        lc.Format,
		AddSource:     lc.AddSource,
		RedactSecrets: lc.RedactSecrets,
		File:          file,
		MaxSizeMB:     lc.MaxSizeMB,
		MaxBackups:    lc.MaxBackups,
		Writer:        w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()
	return logger, nil
}

// openAccounts opens the configured account repository.
func openAccounts(cfg *config.Config) (accounts.Repository, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return accounts.NewMemoryRepository(), nil
	case config.BackendSQLite:
		repo, err := accounts.NewSQLiteRepository(accounts.SQLiteConfig{
			Path:        cfg.Store.SQLite.Path,
			BusyTimeout: cfg.Store.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open account store: %w", err)
		}
		return repo, nil
	default:
		return nil, cli.NewConfigError("store.backend", fmt.Sprintf("unsupported backend %q", cfg.Store.Backend))
	}
}

// openUsage opens the configured usage storage.
func openUsage(cfg *config.Config) (usage.Storage, error) {
	switch cfg.Usage.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStorage(), nil
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.Usage.SQLite.Path,
			MaxOpenConns: cfg.Usage.SQLite.MaxOpenConns,
			WALMode:      cfg.Usage.SQLite.WALMode,
			BusyTimeout:  cfg.Usage.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open usage store: %w", err)
		}
		return store, nil
	default:
		return nil, cli.NewConfigError("usage.backend", fmt.Sprintf("unsupported backend %q", cfg.Usage.Backend))
	}
}

// openSecrets builds the resolver for ${secret:name} references: the
// environment first, then secrets.dir when configured.
func openSecrets(cfg *config.Config) (*secrets.Manager, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(cfg.Secrets.EnvPrefix)}
	if cfg.Secrets.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Secrets.Dir, cfg.Secrets.Watch)
		if err != nil {
			return nil, cli.NewConfigError("secrets.dir", err.Error())
		}
		providers = append(providers, fp)
	}
	cache := secrets.DefaultCacheConfig()
	cache.TTL = cfg.Secrets.CacheTTL
	return secrets.NewManager(providers, cache), nil
}

// resolveSecret expands secret references in value. Values without a
// reference are returned as is, without opening any provider.
func resolveSecret(ctx context.Context, cfg *config.Config, value string) (string, error) {
	if !secrets.HasReference(value) {
		return value, nil
	}
	mgr, err := openSecrets(cfg)
	if err != nil {
		return "", err
	}
	defer mgr.Close()
	return mgr.Resolve(ctx, value)
}

func newBackupManager(cfg *config.Config) *backup.Manager {
	return backup.NewManager(backup.Config{
		SettingsPath: cfg.Backup.SettingsPath,
		BackupDir:    cfg.Backup.BackupDir,
		Keep:         cfg.Backup.Keep,
	})
}

// pricing overlays configured prices on the built-in table.
func pricing(cfg *config.Config) usage.Pricing {
	p := usage.DefaultPricing()
	for model, price := range cfg.Usage.Pricing {
		p[model] = usage.Price{Input: price.Input, Output: price.Output}
	}
	return p
}

// render writes data to the command's stdout in the --output format.
func render(cmd *cobra.Command, data any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

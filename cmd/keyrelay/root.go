package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"keyrelay-hq/keyrelay/pkg/cli"
	"keyrelay-hq/keyrelay/pkg/config"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "keyrelay",
	Short: "keyrelay - account-aware relay for the Anthropic API",
	Long: `keyrelay relays LLM API requests through whichever account is active.

Clients point at the local relay once. Accounts are registered with a base URL
and an API key, and exactly one of them is active at a time; the relay injects
its key into every forwarded request and streams the response back.

The serve command also exposes a management API for accounts, the relay
lifecycle, settings backups and recorded token usage.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Real environment variables win over .env entries.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cli.NewConfigError(".env", err.Error())
		}
		if _, err := cli.ParseFormat(outputFormat); err != nil {
			return cli.NewConfigError("--output", err.Error())
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(cli.FormatText), "output format: text, json, csv")
}

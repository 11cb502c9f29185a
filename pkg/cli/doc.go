/*
Package cli provides command-line helpers for the keyrelay command.

Output Formatting:

Listings can be rendered as aligned text tables, JSON or CSV. Values that
implement Table render as rows; anything else falls back to %v in text
mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, accounts); err != nil {
		return err
	}

Errors:

ConfigError and CommandError wrap failures so that ExitCode can pick the
process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"keyrelay-hq/keyrelay/pkg/cli"
	"keyrelay-hq/keyrelay/pkg/usage"
)

var usageFlags struct {
	accountID string
	model     string
	since     string
	limit     int
	offset    int
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show recorded token usage",
	Long: `Show token usage recorded by the relay.

Examples:
  # Totals per account
  keyrelay usage summary

  # The 20 most recent requests of one account as CSV
  keyrelay usage list --account <id> --limit 20 -o csv

  # Requests in the last 24 hours
  keyrelay usage list --since 24h`,
}

var usageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent usage records",
	Args:  cobra.NoArgs,
	RunE:  listUsage,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Sum tokens and cost per account",
	Args:  cobra.NoArgs,
	RunE:  summarizeUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageListCmd, usageSummaryCmd)

	usageCmd.PersistentFlags().StringVar(&usageFlags.accountID, "account", "", "filter by account ID")
	usageListCmd.Flags().StringVar(&usageFlags.model, "model", "", "filter by model")
	usageListCmd.Flags().StringVar(&usageFlags.since, "since", "", "only records newer than an RFC 3339 time or a duration such as 24h")
	usageListCmd.Flags().IntVar(&usageFlags.limit, "limit", usage.DefaultQueryLimit, "max results")
	usageListCmd.Flags().IntVar(&usageFlags.offset, "offset", 0, "pagination offset")
}

func withUsage(cmd *cobra.Command, fn func(store usage.Storage) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logger.Shutdown()

	store, err := openUsage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := fn(store); err != nil {
		return cli.NewCommandError("usage "+cmd.Name(), err)
	}
	return nil
}

func listUsage(cmd *cobra.Command, args []string) error {
	since, err := parseSince(usageFlags.since, time.Now())
	if err != nil {
		return err
	}
	return withUsage(cmd, func(store usage.Storage) error {
		records, err := store.Query(cmd.Context(), usage.Filter{
			AccountID: usageFlags.accountID,
			Model:     usageFlags.model,
			Since:     since,
			Limit:     usageFlags.limit,
			Offset:    usageFlags.offset,
		})
		if err != nil {
			return err
		}
		return render(cmd, recordTable(records))
	})
}

func summarizeUsage(cmd *cobra.Command, args []string) error {
	return withUsage(cmd, func(store usage.Storage) error {
		summaries, err := store.Summary(cmd.Context(), usageFlags.accountID)
		if err != nil {
			return err
		}
		return render(cmd, summaryTable(summaries))
	})
}

// parseSince accepts an RFC 3339 timestamp or a duration counted back from
// now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, cli.NewConfigError("--since", fmt.Sprintf("%q is neither an RFC 3339 time nor a positive duration", s))
	}
	return now.Add(-d), nil
}

type recordTable []*usage.Record

func (t recordTable) Headers() []string {
	return []string{"TIME", "ACCOUNT", "MODEL", "STATUS", "INPUT", "OUTPUT", "COST USD", "LATENCY MS"}
}

func (t recordTable) Rows() [][]string {
	return lo.Map(t, func(r *usage.Record, _ int) []string {
		return []string{
			r.Timestamp.Local().Format(time.DateTime),
			r.AccountID,
			r.Model,
			strconv.Itoa(r.StatusCode),
			strconv.FormatInt(r.InputTokens, 10),
			strconv.FormatInt(r.OutputTokens, 10),
			strconv.FormatFloat(r.CostUSD, 'f', 6, 64),
			strconv.FormatInt(r.LatencyMS, 10),
		}
	})
}

type summaryTable []usage.Summary

func (t summaryTable) Headers() []string {
	return []string{"ACCOUNT", "REQUESTS", "INPUT", "OUTPUT", "COST USD"}
}

func (t summaryTable) Rows() [][]string {
	return lo.Map(t, func(s usage.Summary, _ int) []string {
		return []string{
			s.AccountID,
			strconv.FormatInt(s.Requests, 10),
			strconv.FormatInt(s.InputTokens, 10),
			strconv.FormatInt(s.OutputTokens, 10),
			strconv.FormatFloat(s.CostUSD, 'f', 6, 64),
		}
	})
}

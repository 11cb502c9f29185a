package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"keyrelay-hq/keyrelay/pkg/accounts"
	"keyrelay-hq/keyrelay/pkg/cli"
	"keyrelay-hq/keyrelay/pkg/config"
)

var accountsFlags struct {
	name    string
	baseURL string
	apiKey  string
}

var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"account"},
	Short:   "Manage relay accounts",
	Long: `Manage the accounts the relay forwards through.

These commands operate on the configured account store directly. With the
sqlite backend a running "keyrelay serve" picks up changes on its next
request.`,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts (keys masked)",
	Args:  cobra.NoArgs,
	RunE:  listAccounts,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an account",
	Long: `Register an account. The first account registered becomes active.

The key may be a ${secret:name} reference, resolved from
KEYRELAY_SECRET_<NAME> or from a file in secrets.dir. The resolved key is
stored, so the reference need not stay available.

Examples:
  keyrelay accounts add --name work --base-url https://api.anthropic.com --api-key sk-ant-...
  keyrelay accounts add --name personal --api-key '${secret:personal-key}'`,
	Args: cobra.NoArgs,
	RunE: addAccount,
}

var accountsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make an account the active one",
	Long: `Make an account the active one. Every other account is deactivated.

An id that matches no account leaves no account active, and the relay answers
503 until another account is activated.`,
	Args: cobra.ExactArgs(1),
	RunE: activateAccount,
}

var accountsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an account",
	Args:    cobra.ExactArgs(1),
	RunE:    deleteAccount,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsActivateCmd, accountsDeleteCmd)

	accountsAddCmd.Flags().StringVar(&accountsFlags.name, "name", "", "display name (required)")
	accountsAddCmd.Flags().StringVar(&accountsFlags.baseURL, "base-url", "https://api.anthropic.com", "upstream base URL")
	accountsAddCmd.Flags().StringVar(&accountsFlags.apiKey, "api-key", "", "API key (required)")
	_ = accountsAddCmd.MarkFlagRequired("name")
	_ = accountsAddCmd.MarkFlagRequired("api-key")
}

// withAccounts opens the account store for the duration of fn.
func withAccounts(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, svc *accounts.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logger.Shutdown()

	repo, err := openAccounts(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := fn(cmd.Context(), cfg, accounts.NewService(repo)); err != nil {
		return cli.NewCommandError("accounts "+cmd.Name(), err)
	}
	return nil
}

func listAccounts(cmd *cobra.Command, args []string) error {
	return withAccounts(cmd, func(ctx context.Context, _ *config.Config, svc *accounts.Service) error {
		list, err := svc.List(ctx)
		if err != nil {
			return err
		}
		return render(cmd, accountTable(lo.Map(list, func(a accounts.Account, _ int) accounts.Account {
			return a.Redacted()
		})))
	})
}

func addAccount(cmd *cobra.Command, args []string) error {
	return withAccounts(cmd, func(ctx context.Context, cfg *config.Config, svc *accounts.Service) error {
		apiKey, err := resolveSecret(ctx, cfg, accountsFlags.apiKey)
		if err != nil {
			return err
		}
		acct, err := svc.Create(ctx, accountsFlags.name, accountsFlags.baseURL, apiKey)
		if err != nil {
			return err
		}
		return render(cmd, accountTable{acct.Redacted()})
	})
}

func activateAccount(cmd *cobra.Command, args []string) error {
	return withAccounts(cmd, func(ctx context.Context, _ *config.Config, svc *accounts.Service) error {
		if err := svc.Activate(ctx, args[0]); err != nil {
			return err
		}
		active, ok, err := svc.GetActive(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: no account with id %q; no account is active now\n", args[0])
			return render(cmd, accountTable{})
		}
		return render(cmd, accountTable{active.Redacted()})
	})
}

func deleteAccount(cmd *cobra.Command, args []string) error {
	return withAccounts(cmd, func(ctx context.Context, _ *config.Config, svc *accounts.Service) error {
		if _, err := svc.Get(ctx, args[0]); err != nil {
			return err
		}
		if err := svc.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Deleted account %s\n", args[0])
		return nil
	})
}

// accountTable renders accounts as a listing. It marshals as a plain array.
type accountTable []accounts.Account

func (t accountTable) Headers() []string {
	return []string{"ACTIVE", "ID", "NAME", "BASE URL", "API KEY", "CREATED"}
}

func (t accountTable) Rows() [][]string {
	return lo.Map(t, func(a accounts.Account, _ int) []string {
		return []string{
			lo.Ternary(a.IsActive, "*", ""),
			a.ID,
			a.Name,
			a.BaseURL,
			a.APIKey,
			a.CreatedAt.Local().Format(time.DateTime),
		}
	})
}

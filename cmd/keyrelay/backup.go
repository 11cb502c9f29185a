package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"keyrelay-hq/keyrelay/pkg/backup"
	"keyrelay-hq/keyrelay/pkg/cli"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up and restore the settings file",
	Long: `Back up and restore the client settings file.

Backups are copies named settings_backup_<unix-seconds>.json in the backup
directory. Paths come from backup.settings_path and backup.backup_dir, or the
platform defaults when those are empty.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Copy the settings file to a new backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd, func(m *backup.Manager) error {
			info, err := m.Backup()
			if err != nil {
				return err
			}
			return render(cmd, backupTable{info})
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd, func(m *backup.Manager) error {
			list, err := m.List()
			if err != nil {
				return err
			}
			return render(cmd, backupTable(list))
		})
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <filename>",
	Short: "Overwrite the settings file with a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd, func(m *backup.Manager) error {
			if err := m.Restore(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Restored %s to %s\n", args[0], m.SettingsPath())
			return nil
		})
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:     "delete <filename>",
	Aliases: []string{"rm"},
	Short:   "Delete a backup",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackups(cmd, func(m *backup.Manager) error {
			if err := m.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd, backupDeleteCmd)
}

func withBackups(cmd *cobra.Command, fn func(m *backup.Manager) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer logger.Shutdown()

	if err := fn(newBackupManager(cfg)); err != nil {
		return cli.NewCommandError("backup "+cmd.Name(), err)
	}
	return nil
}

// backupTable renders backups as a listing.
type backupTable []backup.Info

func (t backupTable) Headers() []string {
	return []string{"FILENAME", "CREATED", "SIZE"}
}

func (t backupTable) Rows() [][]string {
	return lo.Map(t, func(i backup.Info, _ int) []string {
		return []string{i.Filename, i.Time().Format(time.DateTime), strconv.FormatInt(i.Size, 10)}
	})
}

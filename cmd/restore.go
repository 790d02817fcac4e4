package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polish-dev/polish/internal/patch"
)

var (
	restoreList bool
	restoreFrom string
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore a file from its most recent backup",
	Long: `Restore a file from a backup taken before a rewrite.

By default the most recent backup is restored. Use --list to see the
available backups for a file, and --from to pick a specific one. The
restore itself is backed up first, so it can be undone the same way.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return restoreRun(args[0])
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreList, "list", false, "List available backups instead of restoring")
	restoreCmd.Flags().StringVar(&restoreFrom, "from", "", "Restore from this backup file instead of the most recent")
	rootCmd.AddCommand(restoreCmd)
}

func restoreRun(file string) error {
	committer := patch.NewCommitter(viper.GetString("backup_dir"))

	backups, err := committer.ListBackups(file)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ui.Info("No backups found for %s", file)
		return nil
	}

	if restoreList {
		table := ui.Table([]string{"Created", "Backup"})
		for _, b := range backups {
			_ = table.Append([]string{
				b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				b.Path,
			})
		}
		_ = table.Render()
		return nil
	}

	ref := backups[0]
	if restoreFrom != "" {
		found := false
		for _, b := range backups {
			if b.Path == restoreFrom {
				ref, found = b, true
				break
			}
		}
		if !found {
			return fmt.Errorf("backup not found for %s: %s (use --list to see candidates)", file, restoreFrom)
		}
	}

	if dryRun {
		ui.DryRunMsg("Would restore %s from %s", file, ref.Path)
		return nil
	}

	if err := committer.Restore(file, ref); err != nil {
		return err
	}
	ui.Success("Restored %s from backup taken %s", file,
		ref.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

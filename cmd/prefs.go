package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or manage saved preferences",
	Long: `Show or manage saved preferences.

Preferences are flat key=value pairs remembered across runs, for
example the run mode chosen with "remember this choice". They sit
between command-line flags and the config file in precedence.

Running bare 'polish prefs' is the same as 'polish prefs list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsListRun()
	},
}

var prefsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsListRun()
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsSetRun(args[0], args[1])
	},
}

var prefsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a saved preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsUnsetRun(args[0])
	},
}

func init() {
	prefsCmd.AddCommand(prefsListCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsUnsetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func prefsListRun() error {
	values, err := prefsStore().Load()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		ui.Info("No preferences saved.")
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(ui.Out, "  %s=%s\n", k, values[k])
	}
	return nil
}

func prefsSetRun(key, value string) error {
	if dryRun {
		ui.DryRunMsg("Would set %s=%s", key, value)
		return nil
	}
	if err := prefsStore().Set(key, value); err != nil {
		return err
	}
	ui.Success("%s=%s", key, value)
	return nil
}

func prefsUnsetRun(key string) error {
	if dryRun {
		ui.DryRunMsg("Would unset %s", key)
		return nil
	}
	if err := prefsStore().Unset(key); err != nil {
		return err
	}
	ui.Success("Removed %s", key)
	return nil
}

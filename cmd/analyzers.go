package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/output"
)

var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List or test configured analyzers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzersListRun()
	},
}

var analyzersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured analyzers in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzersListRun()
	},
}

var analyzersTestCmd = &cobra.Command{
	Use:   "test <name> <file>",
	Short: "Run a single analyzer against a file and show its raw suggestions",
	Long: `Run one configured analyzer against a file and show every parsed
suggestion, the malformed line count, and the diagnostic output.
Nothing is applied; this is for debugging analyzer configurations.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyzersTestRun(cmd, args[0], args[1])
	},
}

func init() {
	analyzersCmd.AddCommand(analyzersListCmd)
	analyzersCmd.AddCommand(analyzersTestCmd)
	rootCmd.AddCommand(analyzersCmd)
}

func analyzersListRun() error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if reg.Len() == 0 {
		ui.Info("No analyzers configured. Add them under 'analyzers:' in the config file.")
		return nil
	}

	table := ui.Table([]string{"#", "Name", "Command", "Status"})
	for i, def := range reg.All() {
		status := output.Green("enabled")
		if def.Disabled {
			status = output.Yellow("disabled")
		}
		command := def.Command
		for _, a := range def.Args {
			command += " " + a
		}
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			def.Name,
			command,
			status,
		})
	}
	_ = table.Render()
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func analyzersTestRun(cmd *cobra.Command, name, file string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	def, ok := reg.Get(name)
	if !ok {
		return fmt.Errorf("analyzer not configured: %s", name)
	}

	inv := analyzer.NewInvoker()
	res := inv.Invoke(cmd.Context(), def, file, viper.GetDuration("analyzer_timeout"))

	ui.Info("%s: %s in %s", def.Name, res.Status, res.Elapsed.Round(time.Millisecond))
	if res.Diagnostic != "" {
		ui.Warning("%s", res.Diagnostic)
	}
	if res.Malformed > 0 {
		ui.Warning("%d malformed line(s) ignored", res.Malformed)
	}
	if len(res.Suggestions) == 0 {
		ui.Info("No suggestions.")
		return nil
	}

	table := ui.Table([]string{"Lines", "Category", "Severity", "Rationale"})
	for _, s := range res.Suggestions {
		_ = table.Append([]string{
			s.Lines.String(),
			string(s.Category),
			output.SeverityColor(string(s.Severity)),
			truncate(s.Rationale, 60),
		})
	}
	_ = table.Render()
	return nil
}

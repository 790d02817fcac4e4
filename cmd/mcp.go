package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/decision"
	"github.com/polish-dev/polish/internal/gitutil"
	"github.com/polish-dev/polish/internal/mcp"
	"github.com/polish-dev/polish/internal/pipeline"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for editor and agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients run analyzers, preview suggestions, and query
run history without shelling out. Configure with:

  {
    "mcpServers": {
      "polish": { "command": "polish", "args": ["mcp"] }
    }
  }

Available tools: polish_run, polish_preview, polish_list_analyzers,
polish_history. Interactive mode is not available over MCP; polish_run
accepts auto and preview only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		// History tools degrade gracefully; the pipeline still works.
		ui.Warning("run history unavailable: %v", err)
		s = nil
	}

	base := pipeline.Config{
		Mode:            decision.ModePreview,
		DefaultAction:   decision.ActionSkip,
		PromptTimeout:   time.Second,
		AnalyzerTimeout: viper.GetDuration("analyzer_timeout"),
		MaxFileSize:     viper.GetInt64("max_file_size"),
		Workers:         viper.GetInt("workers"),
	}

	srv := mcp.NewServer(s, gitutil.NewClient(), reg, analyzer.NewInvoker(),
		viper.GetString("backup_dir"), base)
	return srv.ServeStdio(cmd.Context())
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polish-dev/polish/internal/analyzer"
	"github.com/polish-dev/polish/internal/output"
	"github.com/polish-dev/polish/internal/prefs"
	"github.com/polish-dev/polish/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

// Build metadata, set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "polish",
	Short: "Commit polisher - run analyzers over changed files and apply their fixes",
	Long: `polish runs configured analyzers over files about to be committed
and applies the improvements they suggest. Analyzers are external commands
emitting suggestions on stdout; polish validates each suggestion against
the current file content, backs the file up, and rewrites it atomically.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/polish/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "polish")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("POLISH")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultStateDir := filepath.Join(home, ".config", "polish")

	viper.SetDefault("state_dir", defaultStateDir)
	viper.SetDefault("db_path", filepath.Join(defaultStateDir, "polish.db"))
	viper.SetDefault("backup_dir", filepath.Join(defaultStateDir, "backups"))
	viper.SetDefault("prefs_path", filepath.Join(defaultStateDir, "prefs"))
	viper.SetDefault("mode", "ask")
	viper.SetDefault("default_action", "skip")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("analyzer_timeout", 60*time.Second)
	viper.SetDefault("max_file_size", 1<<20)
	viper.SetDefault("workers", 4)
	viper.SetDefault("analyzers", []map[string]any{})

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store is initialized lazily so config/version commands run
	// without touching the database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// loadRegistry builds the analyzer registry from configuration.
func loadRegistry() (*analyzer.Registry, error) {
	var defs []analyzer.Definition
	if err := viper.UnmarshalKey("analyzers", &defs); err != nil {
		return nil, fmt.Errorf("invalid analyzers configuration: %w", err)
	}
	return analyzer.NewRegistry(defs)
}

// prefsStore returns the flat key=value preference store.
func prefsStore() *prefs.Store {
	return prefs.NewStore(viper.GetString("prefs_path"))
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "polish"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage polish configuration.

Running bare 'polish config' is the same as 'polish config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# polish configuration
# See: polish config show (for effective values and sources)

# State/data directory (default: ~/.config/polish)
# state_dir: {{ .StateDir }}

# SQLite run-history database path (default: ~/.config/polish/polish.db)
# db_path: {{ .DBPath }}

# Backup directory for pre-rewrite copies (default: ~/.config/polish/backups)
# backup_dir: {{ .BackupDir }}

# Run mode: interactive, auto, preview, skip, ask (default: "{{ .Mode }}")
mode: "{{ .Mode }}"

# Action taken when an interactive prompt times out: apply, preview, skip
default_action: "{{ .DefaultAction }}"

# How long to wait for a prompt answer before default_action runs
timeout: {{ .Timeout }}

# Per-analyzer wall clock budget per file
analyzer_timeout: {{ .AnalyzerTimeout }}

# Files larger than this many bytes are skipped without analysis
max_file_size: {{ .MaxFileSize }}

# Files processed concurrently (interactive mode always uses 1)
workers: {{ .Workers }}

# Analyzers run in the order listed; earlier entries win overlap ties.
# Each analyzer is an external command receiving the file path as its
# only positional argument and emitting SUGGESTION lines on stdout.
analyzers: []
#  - name: formatter
#    command: polish-format
#  - name: docs
#    command: python3
#    args: ["-m", "polish_docs"]
`

type configTemplateData struct {
	StateDir        string
	DBPath          string
	BackupDir       string
	Mode            string
	DefaultAction   string
	Timeout         string
	AnalyzerTimeout string
	MaxFileSize     int64
	Workers         int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:        viper.GetString("state_dir"),
		DBPath:          viper.GetString("db_path"),
		BackupDir:       viper.GetString("backup_dir"),
		Mode:            viper.GetString("mode"),
		DefaultAction:   viper.GetString("default_action"),
		Timeout:         viper.GetDuration("timeout").String(),
		AnalyzerTimeout: viper.GetDuration("analyzer_timeout").String(),
		MaxFileSize:     viper.GetInt64("max_file_size"),
		Workers:         viper.GetInt("workers"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "POLISH_STATE_DIR"},
	{Key: "db_path", EnvVar: "POLISH_DB_PATH"},
	{Key: "backup_dir", EnvVar: "POLISH_BACKUP_DIR"},
	{Key: "prefs_path", EnvVar: "POLISH_PREFS_PATH"},
	{Key: "mode", EnvVar: "POLISH_MODE"},
	{Key: "default_action", EnvVar: "POLISH_DEFAULT_ACTION"},
	{Key: "timeout", EnvVar: "POLISH_TIMEOUT"},
	{Key: "analyzer_timeout", EnvVar: "POLISH_ANALYZER_TIMEOUT"},
	{Key: "max_file_size", EnvVar: "POLISH_MAX_FILE_SIZE"},
	{Key: "workers", EnvVar: "POLISH_WORKERS"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-18s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'polish config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

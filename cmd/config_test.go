package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polish-dev/polish/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "polish.db"))
	viper.SetDefault("backup_dir", filepath.Join(dir, "backups"))
	viper.SetDefault("prefs_path", filepath.Join(dir, "prefs"))
	viper.SetDefault("mode", "ask")
	viper.SetDefault("default_action", "skip")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("analyzer_timeout", 60*time.Second)
	viper.SetDefault("max_file_size", 1<<20)
	viper.SetDefault("workers", 4)

	// Initialize output
	ui = output.New()

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "polish configuration")
	assert.Contains(t, string(data), "analyzers")
	assert.Contains(t, string(data), "default_action")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "polish configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_MissingFile(t *testing.T) {
	testEnv(t)

	t.Setenv("EDITOR", "true")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"mode": true}

	t.Setenv("POLISH_WORKERS", "8")

	assert.Contains(t, detectSource("workers", "POLISH_WORKERS", fileValues), "env")
	assert.Equal(t, "(file)", detectSource("mode", "POLISH_MODE", fileValues))
	assert.Equal(t, "(default)", detectSource("timeout", "POLISH_TIMEOUT", fileValues))
}

func TestFlattenKeys(t *testing.T) {
	parsed := map[string]any{
		"mode": "auto",
		"nested": map[string]any{
			"inner": 1,
		},
	}
	result := make(map[string]bool)
	flattenKeys("", parsed, result)

	assert.True(t, result["mode"])
	assert.True(t, result["nested.inner"])
	assert.False(t, result["nested"])
}

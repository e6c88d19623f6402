package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitialization(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Non-existent settings file falls back to defaults
	err := InitConfig(WithConfigPath("/nonexistent/path/handyman.yaml"))
	assert.NoError(t, err)

	assert.Equal(t, "INFO", GetString(LogLevelKey))
	assert.Equal(t, DefaultConfigDir, GetString(ConfigDirKey))
	assert.Equal(t, DefaultShell, GetString(ShellKey))
	assert.Equal(t, "none", GetString(TelemetryTracingExporterKey))
	assert.Equal(t, "none", GetString(TelemetryMetricsExporterKey))
	assert.False(t, GetBool(ServerEnabledKey))
	assert.Equal(t, DefaultAddr, GetString(ServerAddrKey))
	assert.Equal(t, 5*time.Second, GetDuration(ServerReadTimeoutKey))
	assert.False(t, GetBool("nonexistent"))
	assert.Empty(t, UsedFile())
}

func TestInitConfigWithPath(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "handyman.yaml")
	configContent := `
log_level: DEBUG
handyman:
  config_dir: /srv/handyman/checks
  shell: bash
server:
  enabled: true
  addr: ":9100"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	err := InitConfig(WithConfigPath(configFile))
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", GetString(LogLevelKey))
	assert.Equal(t, "/srv/handyman/checks", GetString(ConfigDirKey))
	assert.Equal(t, "bash", GetString(ShellKey))
	assert.True(t, GetBool(ServerEnabledKey))
	assert.Equal(t, ":9100", GetString(ServerAddrKey))
	assert.Equal(t, configFile, UsedFile())
}

func TestInitConfigRejectsMalformedFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	configFile := filepath.Join(t.TempDir(), "handyman.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log_level: [unterminated"), 0644))

	err := InitConfig(WithConfigPath(configFile))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read settings file")

	// Defaults remain usable after a parse failure
	assert.Equal(t, "INFO", GetString(LogLevelKey))
}

func TestEnvironmentOverride(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	t.Setenv("HANDYMAN_HANDYMAN_SHELL", "zsh")
	t.Setenv("HANDYMAN_LOG_LEVEL", "warn")

	require.NoError(t, InitConfig(WithOnlySearchPaths(t.TempDir())))
	assert.Equal(t, "zsh", GetString(ShellKey))
	assert.Equal(t, "warn", GetString(LogLevelKey))
}

func TestRequiredKeys(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	RegisterRequiredKey("test_key")
	RegisterRequiredKey("test_key") // Should not add duplicate

	assert.False(t, HasKey("test_key"))
	require.Error(t, CheckRequiredKeys())
	assert.Equal(t, []string{"test_key"}, MissingKeys)
}

func TestCheckRequiredKeys(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	RegisterRequiredKey("required_key1")
	RegisterRequiredKey("required_key2")

	err := CheckRequiredKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration keys")

	SetForTest("required_key1", "value1")
	err = CheckRequiredKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required_key2")
	assert.NotContains(t, err.Error(), "required_key1")

	SetForTest("required_key2", "value2")
	require.NoError(t, CheckRequiredKeys())
	assert.Empty(t, MissingKeys)
}

func TestDefaultKeysSatisfyRequirements(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	require.NoError(t, InitConfig(WithOnlySearchPaths(t.TempDir())))
	RegisterRequiredKey(ConfigDirKey)
	RegisterRequiredKey(ShellKey)
	assert.NoError(t, CheckRequiredKeys())
}

func TestInitConfigMultipleCalls(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	configFile := filepath.Join(t.TempDir(), "handyman.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`log_level: "DEBUG"`), 0644))

	require.NoError(t, InitConfig(WithConfigPath(configFile)))
	assert.Equal(t, "DEBUG", GetString(LogLevelKey))

	// Second initialization with different path should not change config (singleton)
	require.NoError(t, InitConfig(WithConfigPath("/different/path/handyman.yaml")))
	assert.Equal(t, "DEBUG", GetString(LogLevelKey))
}

func TestWithSearchPaths(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "custom", "config")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "handyman.yaml"), []byte(`log_level: "WARN"`), 0644))

	require.NoError(t, InitConfig(WithOnlySearchPaths(configDir)))
	assert.Equal(t, "WARN", GetString(LogLevelKey))
}

func TestSetOverridesFileValue(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	require.NoError(t, InitConfig(WithOnlySearchPaths(t.TempDir())))
	Set(ConfigDirKey, "/tmp/checks")
	assert.Equal(t, "/tmp/checks", GetString(ConfigDirKey))
}

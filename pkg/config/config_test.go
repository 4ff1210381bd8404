package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfigFromAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
LogLevel: DEBUG
LicenseServerHost: fslic.campus.example.edu
CloseAppsCountdownSeconds: 120
AdditionalCloseApps:
  - sitecustom.exe
`)

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "fslic.campus.example.edu", cfg.LicenseServerHost)
	assert.Equal(t, 120, cfg.CloseAppsCountdownSeconds)
	assert.Equal(t, []string{"sitecustom.exe"}, cfg.AdditionalCloseApps)
}

func TestLoadConfigFromFillsDefaultsForPartialFile(t *testing.T) {
	path := writeConfig(t, "LogLevel: WARN\n")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	defaults := GetDefaultConfig()

	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, defaults.LogPath, cfg.LogPath)
	assert.Equal(t, defaults.LicenseServerHost, cfg.LicenseServerHost)
	assert.Equal(t, defaults.CloseAppsCountdownSeconds, cfg.CloseAppsCountdownSeconds)
	assert.Equal(t, defaults.RestartCountdownSeconds, cfg.RestartCountdownSeconds)
	assert.Equal(t, defaults.InstallerTimeoutMinutes, cfg.InstallerTimeoutMinutes)
}

func TestLoadConfigFromRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "LogLevel: [unterminated\n")

	_, err := LoadConfigFrom(path)
	assert.Error(t, err)
}

func TestLoadConfigFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	// Values come from defaults, possibly overlaid by machine policy; the
	// knobs below have no policy names in common test environments.
	assert.NotEmpty(t, cfg.LogPath)
	assert.Greater(t, cfg.InstallerTimeoutMinutes, 0)
}

func TestNegativeCountdownsFallBackToDefaults(t *testing.T) {
	path := writeConfig(t, "CloseAppsCountdownSeconds: -5\nRestartCountdownSeconds: 0\n")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	defaults := GetDefaultConfig()

	assert.Equal(t, defaults.CloseAppsCountdownSeconds, cfg.CloseAppsCountdownSeconds)
	assert.Equal(t, defaults.RestartCountdownSeconds, cfg.RestartCountdownSeconds)
}

// pkg/config/config.go - configuration settings for the Fusion deployment tool.

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
	"gopkg.in/yaml.v3"
)

const ConfigPath = `C:\ProgramData\FreedomScientific\Deploy\Config.yaml`

// Policy registry path for enterprise configuration pushed via Intune/GPO.
const PolicyRegistryPath = `SOFTWARE\FreedomScientific\Deploy`

// Configuration holds the configurable options for fusiondeploy in YAML format.
// Everything has a working default; the file and registry policy only
// override the knobs a site cares about.
type Configuration struct {
	LogLevel       string `yaml:"LogLevel"`
	LogPath        string `yaml:"LogPath"`
	DisableLogging bool   `yaml:"DisableLogging"`
	Debug          bool   `yaml:"Debug"`
	Verbose        bool   `yaml:"Verbose"`

	// PayloadPath points at the directory holding the vendor installer
	// files. Empty means the Files directory next to the executable.
	PayloadPath string `yaml:"PayloadPath"`

	// PayloadSHA256, when set, is checked against the installer
	// bootstrapper before anything runs. Guards against a half-synced
	// distribution share.
	PayloadSHA256 string `yaml:"PayloadSHA256"`

	// LicenseServerHost is written to the machine-scoped LSFORCEHOST
	// environment variable after a successful install so networked Fusion
	// licenses resolve without per-user setup.
	LicenseServerHost string `yaml:"LicenseServerHost"`

	// AdditionalCloseApps are closed on top of the built-in conflicting
	// application list.
	AdditionalCloseApps []string `yaml:"AdditionalCloseApps"`

	CloseAppsCountdownSeconds int `yaml:"CloseAppsCountdownSeconds"`
	RestartCountdownSeconds   int `yaml:"RestartCountdownSeconds"`
	InstallerTimeoutMinutes   int `yaml:"InstallerTimeoutMinutes"`
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		LogLevel:                  "INFO",
		LogPath:                   `C:\ProgramData\FreedomScientific\Deploy\Logs`,
		LicenseServerHost:         "fusion-license.example.edu",
		CloseAppsCountdownSeconds: 300,
		RestartCountdownSeconds:   60,
		InstallerTimeoutMinutes:   30,
	}
}

// LoadConfig loads the configuration from the default YAML path. If the file
// doesn't exist it falls back to registry policy settings layered over the
// defaults, and finally to plain defaults. A deployment must be able to run
// on a machine that has never seen this tool before.
func LoadConfig() (*Configuration, error) {
	return LoadConfigFrom(ConfigPath)
}

// LoadConfigFrom loads the configuration from an explicit YAML path.
func LoadConfigFrom(path string) (*Configuration, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := GetDefaultConfig()
		if regErr := loadFromRegistryPath(PolicyRegistryPath, config); regErr != nil {
			log.Printf("No configuration file or registry policy found, using defaults")
		} else {
			log.Printf("Loaded configuration from registry policy: %s", PolicyRegistryPath)
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}

	applyFallbacks(config)
	return config, nil
}

// SaveConfig saves the current configuration to the default YAML path.
func SaveConfig(config *Configuration) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("serializing configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ConfigPath), 0755); err != nil {
		return fmt.Errorf("creating configuration directory: %w", err)
	}

	if err := os.WriteFile(ConfigPath, data, 0644); err != nil {
		return fmt.Errorf("writing configuration file: %w", err)
	}
	return nil
}

// applyFallbacks fills any zero values a partial YAML file left behind.
func applyFallbacks(config *Configuration) {
	defaults := GetDefaultConfig()
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.LogPath == "" {
		config.LogPath = defaults.LogPath
	}
	if config.LicenseServerHost == "" {
		config.LicenseServerHost = defaults.LicenseServerHost
	}
	if config.CloseAppsCountdownSeconds <= 0 {
		config.CloseAppsCountdownSeconds = defaults.CloseAppsCountdownSeconds
	}
	if config.RestartCountdownSeconds <= 0 {
		config.RestartCountdownSeconds = defaults.RestartCountdownSeconds
	}
	if config.InstallerTimeoutMinutes <= 0 {
		config.InstallerTimeoutMinutes = defaults.InstallerTimeoutMinutes
	}
}

// loadFromRegistryPath loads configuration values from a registry policy key.
func loadFromRegistryPath(registryPath string, config *Configuration) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, registryPath, registry.READ)
	if err != nil {
		return fmt.Errorf("opening policy registry key %s: %w", registryPath, err)
	}
	defer key.Close()

	loadStringFromRegistry(key, "LogLevel", &config.LogLevel)
	loadStringFromRegistry(key, "LogPath", &config.LogPath)
	loadStringFromRegistry(key, "PayloadPath", &config.PayloadPath)
	loadStringFromRegistry(key, "PayloadSHA256", &config.PayloadSHA256)
	loadStringFromRegistry(key, "LicenseServerHost", &config.LicenseServerHost)

	loadIntFromRegistry(key, "CloseAppsCountdownSeconds", &config.CloseAppsCountdownSeconds)
	loadIntFromRegistry(key, "RestartCountdownSeconds", &config.RestartCountdownSeconds)
	loadIntFromRegistry(key, "InstallerTimeoutMinutes", &config.InstallerTimeoutMinutes)

	loadBoolFromRegistry(key, "Debug", &config.Debug)
	loadBoolFromRegistry(key, "Verbose", &config.Verbose)
	loadBoolFromRegistry(key, "DisableLogging", &config.DisableLogging)

	loadStringArrayFromRegistry(key, "AdditionalCloseApps", &config.AdditionalCloseApps)

	return nil
}

// loadStringFromRegistry loads a string value from registry if it exists.
func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
	}
}

// loadBoolFromRegistry loads a boolean value from registry if it exists.
// Accepts "true"/"false", "1"/"0", or a DWORD.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}

	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

// loadIntFromRegistry loads an integer value from registry if it exists.
func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}

	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}

// loadStringArrayFromRegistry loads a string array stored either as
// REG_MULTI_SZ or as a comma-separated string.
func loadStringArrayFromRegistry(key registry.Key, valueName string, target *[]string) {
	if vals, _, err := key.GetStringsValue(valueName); err == nil && len(vals) > 0 {
		filtered := make([]string, 0, len(vals))
		for _, val := range vals {
			if strings.TrimSpace(val) != "" {
				filtered = append(filtered, strings.TrimSpace(val))
			}
		}
		if len(filtered) > 0 {
			*target = filtered
			return
		}
	}

	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		parts := strings.Split(val, ",")
		filtered := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				filtered = append(filtered, trimmed)
			}
		}
		if len(filtered) > 0 {
			*target = filtered
		}
	}
}

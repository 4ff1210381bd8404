// pkg/status/status.go - queries about what is already installed: uninstall
// registry entries, MSI product codes, and file presence.

package status

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	version "github.com/hashicorp/go-version"
	"golang.org/x/sys/windows/registry"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
)

// RegistryApplication contains attributes for an installed application.
type RegistryApplication struct {
	Key       string
	Name      string
	Version   string
	Uninstall string
}

// FileExists checks if a path exists on the filesystem.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetSystemArchitecture returns a normalized string for the local system arch.
func GetSystemArchitecture() string {
	switch runtime.GOARCH {
	case "amd64", "x86_64":
		return "x64"
	case "386":
		return "x86"
	default:
		return runtime.GOARCH
	}
}

// IsOlderVersion returns true if local is strictly older than remote.
// Unparsable versions compare as not-older so callers never force action
// on garbage data.
func IsOlderVersion(local, remote string) bool {
	vLocal, errLocal := version.NewVersion(local)
	vRemote, errRemote := version.NewVersion(remote)
	if errLocal != nil || errRemote != nil {
		logging.Debug("Version parse error, treating as current",
			"local", local, "remote", remote)
		return false
	}
	return vLocal.LessThan(vRemote)
}

// ProductCodeInstalled reports whether an MSI product code has an uninstall
// registry entry, and returns its DisplayVersion when present.
func ProductCodeInstalled(productCode string) (bool, string) {
	paths := []string{
		`SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall\` + productCode,
		`SOFTWARE\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall\` + productCode,
	}
	for _, path := range paths {
		ver, err := getRegistryValue(path, "DisplayVersion")
		if err == nil {
			return true, ver
		}
		// Entry may exist without a DisplayVersion value.
		if keyExists(path) {
			return true, ""
		}
	}
	return false, ""
}

// InstalledVersion looks an application up by DisplayName in the uninstall
// registry and returns its DisplayVersion. Partial name matches count, the
// way vendor suites register components with decorated names.
func InstalledVersion(displayName string) (string, bool) {
	apps, err := UninstallKeys()
	if err != nil {
		logging.Warn("Failed to enumerate uninstall registry", "error", err)
		return "", false
	}

	if app, ok := apps[displayName]; ok {
		return app.Version, true
	}
	for name, app := range apps {
		if strings.Contains(name, displayName) {
			logging.Debug("Partial registry match", "wanted", displayName, "found", name)
			return app.Version, true
		}
	}
	return "", false
}

func keyExists(keyPath string) bool {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, keyPath, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	k.Close()
	return true
}

// getRegistryValue reads a string value from local-machine registry.
func getRegistryValue(keyPath, valueName string) (string, error) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, keyPath, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer k.Close()

	val, _, err := k.GetStringValue(valueName)
	if err != nil {
		return "", err
	}
	return val, nil
}

// UninstallKeys enumerates the registry for installed applications.
func UninstallKeys() (map[string]RegistryApplication, error) {
	installedApps := make(map[string]RegistryApplication)
	regPaths := []string{
		`Software\Microsoft\Windows\CurrentVersion\Uninstall`,
		`Software\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`,
	}
	for _, rPath := range regPaths {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, rPath, registry.READ)
		if err != nil {
			continue
		}

		subKeys, err := key.ReadSubKeyNames(0)
		key.Close()
		if err != nil {
			continue
		}

		for _, subKey := range subKeys {
			fullPath := rPath + `\` + subKey
			subKeyObj, err := registry.OpenKey(registry.LOCAL_MACHINE, fullPath, registry.READ)
			if err != nil {
				continue
			}

			var app RegistryApplication
			app.Key = fullPath
			if name, _, err := subKeyObj.GetStringValue("DisplayName"); err == nil {
				app.Name = name
			}
			if versionStr, _, err := subKeyObj.GetStringValue("DisplayVersion"); err == nil {
				app.Version = versionStr
			}
			if uninstallStr, _, err := subKeyObj.GetStringValue("UninstallString"); err == nil {
				app.Uninstall = uninstallStr
			}
			subKeyObj.Close()

			if app.Name != "" {
				installedApps[app.Name] = app
			}
		}
	}

	if len(installedApps) == 0 {
		return installedApps, fmt.Errorf("no uninstall registry entries readable")
	}
	return installedApps, nil
}

// pkg/shortcut/shortcut.go - cleanup of installer-created shortcuts.

package shortcut

import (
	"os"
	"path/filepath"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
)

// CommonDesktopDir returns the all-users desktop directory.
func CommonDesktopDir() string {
	public := os.Getenv("PUBLIC")
	if public == "" {
		public = `C:\Users\Public`
	}
	return filepath.Join(public, "Desktop")
}

// CommonStartMenuDir returns the all-users start menu programs directory.
func CommonStartMenuDir() string {
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	return filepath.Join(programData, `Microsoft\Windows\Start Menu\Programs`)
}

// Remove deletes a single shortcut file. A shortcut that does not exist
// is not an error; the installers do not create every shortcut on every
// configuration.
func Remove(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Debug("Shortcut not present, skipping", "path", path)
		return nil
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	logging.Info("Removed shortcut", "path", path)
	return nil
}

// RemoveAll deletes every shortcut in paths, logging failures rather than
// stopping. Shortcut cleanup is cosmetic and never fails a deployment.
func RemoveAll(paths []string) {
	for _, p := range paths {
		if err := Remove(p); err != nil {
			logging.Warn("Failed to remove shortcut", "path", p, "error", err)
		}
	}
}

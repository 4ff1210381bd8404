// pkg/scripts/prepost.go - Functions for running pre-deploy and post-deploy hooks.

package scripts

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// HookDir is where site-local deployment hooks live. Hooks are optional;
// a missing script is skipped, a failing one is reported but never fails
// the deployment.
var HookDir = `C:\ProgramData\FreedomScientific\Deploy\Hooks`

// runScript executes the PowerShell script at the provided path,
// logs each line via logInfo and logs errors via logError.
func runScript(scriptPath, displayName string, logInfo func(string, ...interface{}), logError func(string, ...interface{})) error {
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		logInfo("%s hook not present, skipping", displayName)
		return nil
	}

	cmd := exec.Command(
		"powershell.exe",
		"-NoLogo",
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-Command", fmt.Sprintf(`& "%s" 2>&1`, scriptPath),
	)
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}

	outputBytes, err := cmd.CombinedOutput()

	// Log each non-empty output line.
	for _, line := range strings.Split(string(outputBytes), "\n") {
		txt := strings.TrimSpace(line)
		if txt == "" {
			continue
		}
		txt = strings.TrimPrefix(txt, "\ufeff")
		txt = strings.ReplaceAll(txt, "\u001b[0m", "")
		txt = strings.ReplaceAll(txt, "\u001b[", "")
		logInfo("%s", txt)
	}

	if err != nil {
		logError("%s hook error: %v", displayName, err)
		return fmt.Errorf("%s hook error: %w", displayName, err)
	}

	logInfo("%s hook completed successfully", displayName)
	return nil
}

// RunPreDeploy runs the pre-deploy hook if one is installed.
func RunPreDeploy(logInfo func(string, ...interface{}), logError func(string, ...interface{})) error {
	return runScript(filepath.Join(HookDir, "pre-deploy.ps1"), "Pre-deploy", logInfo, logError)
}

// RunPostDeploy runs the post-deploy hook if one is installed.
func RunPostDeploy(logInfo func(string, ...interface{}), logError func(string, ...interface{})) error {
	return runScript(filepath.Join(HookDir, "post-deploy.ps1"), "Post-deploy", logInfo, logError)
}

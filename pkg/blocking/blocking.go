// pkg/blocking/blocking.go - closing conflicting applications before a
// deployment touches their files.

package blocking

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
)

// ErrDeferred is returned when the user declines to close the conflicting
// applications during an interactive deployment.
var ErrDeferred = errors.New("user deferred closing applications")

// matchesTarget reports whether a process matches a close-app target.
// Targets can be a full path, an image name with .exe, or a bare name.
func matchesTarget(procName, procExe, target string) bool {
	cleanTarget := strings.ToLower(target)
	procName = strings.ToLower(procName)

	switch {
	case strings.HasPrefix(cleanTarget, `c:\`) || strings.HasPrefix(cleanTarget, "/"):
		return strings.EqualFold(procExe, target)
	case strings.HasSuffix(cleanTarget, ".exe"):
		return procName == cleanTarget
	default:
		return procName == cleanTarget || procName == cleanTarget+".exe"
	}
}

// IsAppRunning checks if a specific application is currently running.
func IsAppRunning(appName string) bool {
	procs, err := process.Processes()
	if err != nil {
		logging.Error("Failed to get process list", "error", err)
		return false
	}

	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		exe := ""
		if strings.HasPrefix(strings.ToLower(appName), `c:\`) {
			exe, _ = proc.Exe()
		}
		if matchesTarget(name, exe, appName) {
			return true
		}
	}
	return false
}

// RunningApps returns the subset of targets that are currently running.
func RunningApps(apps []string) []string {
	var running []string
	for _, app := range apps {
		if IsAppRunning(app) {
			running = append(running, app)
		}
	}
	return running
}

// promptProceed asks the user whether to close the listed applications.
// Overridable for tests.
var promptProceed = func(apps []string) bool {
	fmt.Printf("The following applications must be closed before the deployment can continue:\n")
	for _, app := range apps {
		fmt.Printf("  - %s\n", app)
	}
	fmt.Print("Close them now? (Y/n): ")

	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "" || response == "y" || response == "yes"
}

// CloseApps closes every running target application, forcing termination
// after the countdown elapses. In interactive mode the user is first asked
// for consent and given the countdown to save their work; declining returns
// ErrDeferred. In silent modes the applications are terminated immediately.
func CloseApps(apps []string, countdown time.Duration, interactive bool) error {
	running := RunningApps(apps)
	if len(running) == 0 {
		logging.Debug("No conflicting applications running")
		return nil
	}

	logging.Info("Conflicting applications are running", "apps", strings.Join(running, ", "))

	if interactive {
		if !promptProceed(running) {
			logging.Warn("User deferred closing applications")
			return ErrDeferred
		}
		if countdown > 0 {
			waitCountdown(running, countdown)
		}
	}

	for _, app := range RunningApps(apps) {
		logging.Info("Force closing application", "app", app)
		killMatching(app)
	}

	// Give terminated processes a moment to disappear from the table.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if len(RunningApps(apps)) == 0 {
			logging.Info("All conflicting applications closed")
			return nil
		}
		time.Sleep(time.Second)
	}

	still := RunningApps(apps)
	return fmt.Errorf("applications still running after close: %s", strings.Join(still, ", "))
}

// waitCountdown gives the user time to close applications themselves,
// checking periodically whether they already have.
func waitCountdown(apps []string, countdown time.Duration) {
	fmt.Printf("Applications will be closed automatically in %s. Save your work now.\n",
		countdown.Round(time.Second))

	deadline := time.Now().Add(countdown)
	for time.Now().Before(deadline) {
		if len(RunningApps(apps)) == 0 {
			return
		}
		remaining := time.Until(deadline).Round(time.Second)
		if remaining >= 30*time.Second && int(remaining.Seconds())%30 == 0 {
			fmt.Printf("  %s remaining...\n", remaining)
		}
		time.Sleep(time.Second)
	}
}

// killMatching terminates every process matching the target, including
// child processes.
func killMatching(target string) {
	procs, err := process.Processes()
	if err != nil {
		logging.Error("Failed to get process list", "error", err)
		return
	}

	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		exe := ""
		if strings.HasPrefix(strings.ToLower(target), `c:\`) {
			exe, _ = proc.Exe()
		}
		if !matchesTarget(name, exe, target) {
			continue
		}

		if children, err := proc.Children(); err == nil {
			for _, child := range children {
				if err := child.Kill(); err != nil {
					logging.Debug("Failed to kill child process", "pid", child.Pid, "error", err)
				}
			}
		}
		if err := proc.Kill(); err != nil {
			logging.Warn("Failed to kill process", "app", target, "pid", proc.Pid, "error", err)
		}
	}
}

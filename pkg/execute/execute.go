// pkg/execute/execute.go - synchronous process and msiexec execution with
// hidden windows, timeouts, and exit-code capture.

package execute

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/retry"
)

var commandMsi = filepath.Join(os.Getenv("WINDIR"), "system32", "msiexec.exe")

// MsiexecPath returns the full path of the Windows Installer executable.
func MsiexecPath() string {
	return commandMsi
}

// Result captures the outcome of a completed process.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Options describes one process invocation.
type Options struct {
	Path           string
	Args           []string
	WorkingDir     string
	TimeoutMinutes int

	// WaitForProcessName, when set, makes Run block after the main process
	// exits until no process with this image name remains. Installer
	// bootstrappers routinely fork a child and return early; callers that
	// need the whole transaction finished set this.
	WaitForProcessName string
}

// Run executes a process synchronously and returns its exit code in Result.
// A non-zero exit code is not an error here; err is reserved for failures to
// start, timeouts, and the post-exit process wait. Callers decide what a
// given exit code means.
func Run(opts Options) (Result, error) {
	if opts.TimeoutMinutes <= 0 {
		opts.TimeoutMinutes = 30
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(opts.TimeoutMinutes)*time.Minute)
	defer cancel()

	logging.Info("Executing process", "path", opts.Path, "args", strings.Join(opts.Args, " "))
	start := time.Now()

	cmd := exec.CommandContext(ctx, opts.Path, opts.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
	if opts.WorkingDir != "" {
		cmd.Dir = opts.WorkingDir
	}

	output, err := cmd.CombinedOutput()
	res := Result{
		Output:   string(output),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			if cmd.Process != nil {
				terminateProcessTree(cmd.Process.Pid)
			}
			return res, fmt.Errorf("process %s timed out after %d minutes",
				filepath.Base(opts.Path), opts.TimeoutMinutes)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			return res, fmt.Errorf("failed to start %s: %w", opts.Path, err)
		}
	}

	if opts.WaitForProcessName != "" {
		remaining := time.Duration(opts.TimeoutMinutes)*time.Minute - res.Duration
		if remaining < time.Minute {
			remaining = time.Minute
		}
		if err := WaitForProcessGone(opts.WaitForProcessName, remaining); err != nil {
			return res, err
		}
		res.Duration = time.Since(start)
	}

	logging.Info("Process completed",
		"path", filepath.Base(opts.Path),
		"exit_code", res.ExitCode,
		"duration", res.Duration.Round(time.Second).String())
	return res, nil
}

// msiInstallArgs builds the msiexec argument list for a silent install.
func msiInstallArgs(msiPath string, extraArgs []string, logFile string) []string {
	args := []string{"/i", msiPath, "/qn", "/norestart"}
	if logFile != "" {
		args = append(args, "/l*v", logFile)
	}
	return append(args, extraArgs...)
}

// msiRemoveArgs builds the msiexec argument list for a silent removal by
// product code.
func msiRemoveArgs(productCode string, extraArgs []string, logFile string) []string {
	args := []string{"/x", productCode, "/qn", "/norestart"}
	if logFile != "" {
		args = append(args, "/l*v", logFile)
	}
	return append(args, extraArgs...)
}

// RunMSIInstall installs an MSI package silently.
func RunMSIInstall(msiPath string, extraArgs []string, logFile string, timeoutMinutes int) (Result, error) {
	if err := WaitForMSIAvailable(2 * time.Minute); err != nil {
		logging.Warn("Windows Installer availability check failed", "error", err)
	}
	return Run(Options{
		Path:           commandMsi,
		Args:           msiInstallArgs(msiPath, extraArgs, logFile),
		TimeoutMinutes: timeoutMinutes,
	})
}

// RunMSIRemove uninstalls an MSI product by its product code.
func RunMSIRemove(productCode string, extraArgs []string, logFile string, timeoutMinutes int) (Result, error) {
	if err := WaitForMSIAvailable(2 * time.Minute); err != nil {
		logging.Warn("Windows Installer availability check failed", "error", err)
	}
	return Run(Options{
		Path:           commandMsi,
		Args:           msiRemoveArgs(productCode, extraArgs, logFile),
		TimeoutMinutes: timeoutMinutes,
	})
}

// WaitForMSIAvailable waits for the Windows Installer service to release its
// mutex. msiexec refuses concurrent installs with exit 1618; probing first
// turns most of those into a short wait instead of a failed step.
func WaitForMSIAvailable(maxWait time.Duration) error {
	attempts := int(maxWait / (10 * time.Second))
	if attempts < 1 {
		attempts = 1
	}
	return retry.Retry(retry.Config{
		MaxAttempts:     attempts,
		InitialInterval: 10 * time.Second,
		Multiplier:      1.0,
	}, func() error {
		busy := msiBusy()
		if busy {
			return fmt.Errorf("windows installer service is busy")
		}
		return nil
	})
}

// msiBusy probes the installer service with a trivial invocation. If the
// probe cannot finish within a few seconds another installation holds the
// service.
func msiBusy() bool {
	cmd := exec.Command(commandMsi, "/help")
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return false
	}
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
		return false
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return true
	}
}

// ProcessRunning reports whether any process with the given image name is
// currently running. The comparison is case-insensitive.
func ProcessRunning(name string) bool {
	procs, err := process.Processes()
	if err != nil {
		logging.Error("Failed to get process list", "error", err)
		return false
	}

	target := strings.ToLower(name)
	for _, proc := range procs {
		pname, err := proc.Name()
		if err != nil {
			continue
		}
		if strings.ToLower(pname) == target {
			return true
		}
	}
	return false
}

// WaitForProcessGone polls until no process with the given image name
// remains, or the timeout elapses.
func WaitForProcessGone(name string, timeout time.Duration) error {
	logging.Info("Waiting for process to finish", "process", name)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessRunning(name) {
			logging.Debug("Process is gone", "process", name)
			return nil
		}
		time.Sleep(2 * time.Second)
	}
	return fmt.Errorf("process %s still running after %s", name, timeout)
}

// terminateProcessTree kills a process and all of its children.
func terminateProcessTree(pid int) {
	logging.Debug("Terminating process tree", "root_pid", pid)

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	if children, err := p.Children(); err == nil {
		for _, child := range children {
			if err := child.Kill(); err != nil {
				logging.Debug("Failed to kill child process", "pid", child.Pid, "error", err)
			}
		}
	}
	if err := p.Kill(); err != nil {
		logging.Warn("Failed to kill process", "pid", pid, "error", err)
	}
}

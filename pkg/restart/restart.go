// pkg/restart/restart.go - post-install restart handling.

package restart

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
)

// scheduleRestart invokes the system restart with a delay in seconds.
// This abstraction allows us to override when testing.
var scheduleRestart = func(delaySeconds int) error {
	shutdown := exec.Command("shutdown.exe", "/r", "/t", strconv.Itoa(delaySeconds),
		"/c", "Fusion installation requires a restart to complete.")
	shutdown.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return shutdown.Run()
}

// promptRestart asks the logged-on user whether to restart now.
// This abstraction allows us to override when testing.
var promptRestart = func(countdownSeconds int) bool {
	fmt.Printf("A restart is required to finish installing Fusion.\n")
	fmt.Printf("Restart now? The system will restart in %d seconds after confirming. [Y/n]: ", countdownSeconds)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "" || answer == "y" || answer == "yes"
}

// Handle decides what to do when an installer signalled that a reboot is
// pending. With passThru set the pending reboot is reported to the caller
// instead of acted on. In interactive mode a declined prompt also leaves
// the reboot to the caller.
func Handle(countdownSeconds int, interactive, passThru bool) {
	if passThru {
		logging.Info("Reboot required, passing through to caller")
		return
	}
	if !interactive {
		logging.Info("Reboot required, silent deployment leaves restart to management tooling")
		return
	}
	if !promptRestart(countdownSeconds) {
		logging.Info("User postponed the restart")
		return
	}
	if err := scheduleRestart(countdownSeconds); err != nil {
		logging.Error("Failed to schedule restart", "error", err)
		return
	}
	logging.Info("Restart scheduled", "delay_seconds", countdownSeconds)
}

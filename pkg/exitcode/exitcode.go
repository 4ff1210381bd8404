// pkg/exitcode/exitcode.go - exit code constants and the final-code accumulator.

package exitcode

// Exit codes returned by fusiondeploy. Installer steps may additionally
// propagate any vendor or msiexec exit code.
const (
	// Success indicates the deployment completed with no pending actions.
	Success = 0

	// RebootRequired is the Windows Installer ERROR_SUCCESS_REBOOT_REQUIRED
	// code: the deployment succeeded but a restart must happen before the
	// product is usable.
	RebootRequired = 3010

	// MsiBusy is ERROR_INSTALL_ALREADY_RUNNING: another installation is in
	// progress and the Windows Installer service rejected ours.
	MsiBusy = 1618

	// DeployFailure is returned when orchestration itself fails with an
	// unhandled error.
	DeployFailure = 60001

	// MissingPrereqs is returned when the deployment prerequisites are
	// absent (msiexec.exe or the bundled installer payload cannot be found)
	// and no steps were executed.
	MissingPrereqs = 60008

	// UserDeferred is returned when the user declined to close the
	// conflicting applications during an interactive deployment.
	UserDeferred = 60012
)

// IsSuccess reports whether a final exit code represents a successful
// deployment. A pending reboot still counts as success.
func IsSuccess(code int) bool {
	return code == Success || code == RebootRequired
}

// Accumulator collects per-step exit codes into the single code the process
// exits with. A reboot-required result sticks: once RebootRequired has been
// recorded, later step failures do not overwrite it. It also counts how many
// steps ran and how many of them failed, for the session summary.
type Accumulator struct {
	code     int
	steps    int
	failures int
}

// Record folds a step's exit code into the accumulator.
func (a *Accumulator) Record(code int) {
	a.steps++
	if code == 0 {
		return
	}
	if code != RebootRequired {
		a.failures++
	}
	if a.code == RebootRequired && code != RebootRequired {
		return
	}
	a.code = code
}

// Force sets the final code unconditionally. Used for orchestrator-level
// failures that override whatever the steps reported.
func (a *Accumulator) Force(code int) {
	a.code = code
}

// Code returns the accumulated exit code.
func (a *Accumulator) Code() int {
	return a.code
}

// Steps returns how many step results have been recorded.
func (a *Accumulator) Steps() int {
	return a.steps
}

// Failures returns how many recorded steps reported a failure. A pending
// reboot does not count as one.
func (a *Accumulator) Failures() int {
	return a.failures
}

// pkg/deploy/deploy.go - the deployment orchestrator: a fixed branch-and-
// sequence runner over the Fusion 2018 installer steps.

package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/blocking"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/config"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/envvar"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/execute"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/exitcode"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/restart"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/scripts"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/shortcut"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/status"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/utils"
)

// DeploymentType selects the install or uninstall branch.
type DeploymentType int

const (
	Install DeploymentType = iota
	Uninstall
)

func (d DeploymentType) String() string {
	if d == Uninstall {
		return "Uninstall"
	}
	return "Install"
}

// ParseDeploymentType maps the CLI flag value to a DeploymentType.
func ParseDeploymentType(s string) (DeploymentType, error) {
	switch strings.ToLower(s) {
	case "install":
		return Install, nil
	case "uninstall":
		return Uninstall, nil
	}
	return Install, fmt.Errorf("unknown deployment type %q (want Install or Uninstall)", s)
}

// DeployMode controls how much the deployment interacts with a logged-on user.
type DeployMode int

const (
	// Interactive prompts before closing applications and before restarting.
	Interactive DeployMode = iota
	// Silent closes applications and suppresses every prompt.
	Silent
	// NonInteractive behaves like Silent but is used when no user session
	// exists at all, such as under a management agent.
	NonInteractive
)

func (m DeployMode) String() string {
	switch m {
	case Silent:
		return "Silent"
	case NonInteractive:
		return "NonInteractive"
	}
	return "Interactive"
}

// ParseDeployMode maps the CLI flag value to a DeployMode.
func ParseDeployMode(s string) (DeployMode, error) {
	switch strings.ToLower(s) {
	case "interactive":
		return Interactive, nil
	case "silent":
		return Silent, nil
	case "noninteractive":
		return NonInteractive, nil
	}
	return Interactive, fmt.Errorf("unknown deploy mode %q (want Interactive, Silent, or NonInteractive)", s)
}

// Request is the immutable description of one deployment run, built from
// the command line.
type Request struct {
	DeploymentType      DeploymentType
	DeployMode          DeployMode
	AllowRebootPassThru bool
	TerminalServerMode  bool
	DisableLogging      bool
}

// Interactive reports whether the run may prompt a logged-on user.
func (r Request) Interactive() bool {
	return r.DeployMode == Interactive
}

// These abstractions allow us to override when testing.
var (
	runProcess       = execute.Run
	removeMSI        = execute.RunMSIRemove
	closeApps        = blocking.CloseApps
	setMachineEnv    = envvar.SetMachine
	removeShortcuts  = shortcut.RemoveAll
	handleRestart    = restart.Handle
	fileExists       = status.FileExists
	productInstalled = status.ProductCodeInstalled
	installedVersion = status.InstalledVersion
	executablePath   = os.Executable
	runPreDeploy     = scripts.RunPreDeploy
	runPostDeploy    = scripts.RunPostDeploy
	verifyPayload    = utils.VerifySHA256
)

// Run executes the requested deployment and returns the process exit code.
// Step failures are folded into the exit-code accumulator and never abort
// the sequence; only missing prerequisites and a deferring user stop a run
// before its steps complete.
func Run(req Request, cfg *config.Configuration) (code int) {
	acc := &exitcode.Accumulator{}
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Unhandled deployment failure", "panic", fmt.Sprint(r))
			code = exitcode.DeployFailure
		}
		if err := logging.EndSession(logging.SessionSummary{
			ExitCode: code,
			Steps:    acc.Steps(),
			Failures: acc.Failures(),
		}); err != nil {
			logging.Warn("Failed to write session summary", "error", err)
		}
	}()

	logging.SetDeployType(req.DeploymentType.String())
	logging.Info("Starting deployment",
		"type", req.DeploymentType.String(),
		"mode", req.DeployMode.String(),
		"reboot_passthru", req.AllowRebootPassThru,
		"terminal_server", req.TerminalServerMode)

	if err := CheckPrerequisites(req, cfg); err != nil {
		logging.Error("Deployment prerequisites missing", "error", err)
		return exitcode.MissingPrereqs
	}

	if req.TerminalServerMode {
		if err := changeUserMode("/install"); err != nil {
			logging.Warn("Failed to enter terminal server install mode", "error", err)
		}
		defer func() {
			if err := changeUserMode("/execute"); err != nil {
				logging.Warn("Failed to leave terminal server install mode", "error", err)
			}
		}()
	}

	// Hooks are site-local extensions and never fail the deployment.
	_ = runPreDeploy(logInfof, logErrorf)

	var err error
	switch req.DeploymentType {
	case Uninstall:
		err = runUninstall(req, cfg, acc)
	default:
		err = runInstall(req, cfg, acc)
	}
	if errors.Is(err, blocking.ErrDeferred) {
		logging.Info("User deferred the deployment")
		return exitcode.UserDeferred
	}
	if err != nil {
		logging.Error("Deployment failed", "error", err)
		acc.Force(exitcode.DeployFailure)
	}

	_ = runPostDeploy(logInfof, logErrorf)

	final := acc.Code()
	if exitcode.IsSuccess(final) {
		// Fusion's drivers load at boot, so even a clean install wants a
		// restart before the product is usable.
		handleRestart(cfg.RestartCountdownSeconds, req.Interactive(), req.AllowRebootPassThru)
	}

	logging.Info("Deployment finished", "exit_code", final)
	return final
}

// CheckPrerequisites verifies the deployment can run at all: the Windows
// Installer executable must exist, and an install needs the bundled payload
// on disk. Nothing is executed when this fails.
func CheckPrerequisites(req Request, cfg *config.Configuration) error {
	if !fileExists(execute.MsiexecPath()) {
		return fmt.Errorf("windows installer not found at %s", execute.MsiexecPath())
	}
	if req.DeploymentType == Install {
		installer := filepath.Join(payloadDir(cfg), fusionSetupExe)
		if !fileExists(installer) {
			return fmt.Errorf("installer payload not found at %s", installer)
		}
		if cfg.PayloadSHA256 != "" {
			if err := verifyPayload(installer, cfg.PayloadSHA256); err != nil {
				return fmt.Errorf("payload verification failed: %w", err)
			}
		}
	}
	return nil
}

// payloadDir resolves the directory holding the vendor installer files:
// the configured path, or the Files directory next to the executable.
func payloadDir(cfg *config.Configuration) string {
	if cfg.PayloadPath != "" {
		return cfg.PayloadPath
	}
	exe, err := executablePath()
	if err != nil {
		return "Files"
	}
	return filepath.Join(filepath.Dir(exe), "Files")
}

func runInstall(req Request, cfg *config.Configuration, acc *exitcode.Accumulator) error {
	apps := append(append([]string{}, defaultCloseApps...), cfg.AdditionalCloseApps...)
	countdown := time.Duration(cfg.CloseAppsCountdownSeconds) * time.Second
	if err := closeApps(apps, countdown, req.Interactive()); err != nil {
		return err
	}

	for _, step := range preInstallRemovalSteps() {
		if !fileExists(step.ConditionPath) {
			logging.Info("Skipping conditional removal, path not present",
				"step", step.Name, "path", step.ConditionPath)
			continue
		}
		runStep(step, cfg, acc)
	}

	runStep(Step{
		Name:               "Fusion 2018 installer",
		TargetPath:         filepath.Join(payloadDir(cfg), fusionSetupExe),
		Args:               []string{"/Type", "silent"},
		WaitForProcessName: fusionSetupChild,
	}, cfg, acc)

	removeShortcuts(shortcutPaths())

	if err := setMachineEnv(licenseHostVariable, cfg.LicenseServerHost); err != nil {
		logging.Warn("Failed to set license server variable", "error", err)
	}

	if err := checkInstalledBuild(); err != nil {
		logging.Warn("Post-install verification", "error", err)
	} else {
		logging.Info("Fusion registered in uninstall registry", "build", fusionPayloadBuild)
	}
	return nil
}

// checkInstalledBuild verifies that Fusion ended up registered in the
// uninstall registry with at least the build the payload ships. An older
// registration means a previous generation survived the upgrade.
func checkInstalledBuild() error {
	v, ok := installedVersion(fusionDisplayName)
	if !ok {
		return fmt.Errorf("%s not found in uninstall registry", fusionDisplayName)
	}
	if status.IsOlderVersion(v, fusionPayloadBuild) {
		return fmt.Errorf("registered build %s is older than payload build %s", v, fusionPayloadBuild)
	}
	return nil
}

func runUninstall(req Request, cfg *config.Configuration, acc *exitcode.Accumulator) error {
	apps := append(append([]string{}, defaultCloseApps...), cfg.AdditionalCloseApps...)
	// Uninstall always uses the fixed countdown so unattended removals on a
	// machine with Fusion running do not hang on a prompt.
	if err := closeApps(apps, 60*time.Second, false); err != nil {
		return err
	}

	for _, step := range uninstallSteps() {
		runStep(step, cfg, acc)
	}
	return nil
}

// runStep executes one step and folds its result into the accumulator.
// Steps whose target is already gone are reported but still count as run:
// the sequence position is never skipped, only its work turns out to be done.
func runStep(step Step, cfg *config.Configuration, acc *exitcode.Accumulator) {
	logging.Info("Running step", "step", step.Name)

	if step.ProductCode != "" {
		if installed, v := productInstalled(step.ProductCode); !installed {
			logging.Info("Product code not installed, removal will be a no-op",
				"step", step.Name, "product_code", step.ProductCode)
		} else {
			logging.Debug("Product code present", "product_code", step.ProductCode, "version", v)
		}
		res, err := removeMSI(step.ProductCode, nil, stepLogFile(step), cfg.InstallerTimeoutMinutes)
		recordStep(step, res.ExitCode, err, acc)
		return
	}

	if !fileExists(step.TargetPath) {
		logging.Info("Step target not present, nothing to do",
			"step", step.Name, "path", step.TargetPath)
		acc.Record(exitcode.Success)
		return
	}
	res, err := runProcess(execute.Options{
		Path:               step.TargetPath,
		Args:               step.Args,
		TimeoutMinutes:     cfg.InstallerTimeoutMinutes,
		WaitForProcessName: step.WaitForProcessName,
	})
	recordStep(step, res.ExitCode, err, acc)
}

// recordStep applies one step outcome to the accumulator. An msiexec
// "unknown product" result on removal means the product was already gone
// and is treated as done.
func recordStep(step Step, code int, err error, acc *exitcode.Accumulator) {
	if err != nil {
		logging.Error("Step failed to run", "step", step.Name, "error", err)
		acc.Record(exitcode.DeployFailure)
		return
	}
	if step.ProductCode != "" && code == msiErrorUnknownProduct {
		logging.Info("Product already removed", "step", step.Name)
		code = exitcode.Success
	}
	switch code {
	case exitcode.Success:
		logging.Info("Step succeeded", "step", step.Name)
	case exitcode.RebootRequired:
		logging.Info("Step succeeded, reboot required", "step", step.Name)
	default:
		logging.Warn("Step returned failure", "step", step.Name, "exit_code", code)
	}
	acc.Record(code)
}

// stepLogFile places a verbose msiexec log next to the session logs so a
// failed removal can be diagnosed from the same directory.
func stepLogFile(step Step) string {
	dir := logging.GetCurrentLogDir()
	if dir == "" {
		return ""
	}
	name := strings.ToLower(strings.ReplaceAll(step.Name, " ", "-"))
	return filepath.Join(dir, name+".msi.log")
}

// shortcutPaths lists the vendor shortcuts cleaned up after install.
func shortcutPaths() []string {
	desktop := shortcut.CommonDesktopDir()
	paths := make([]string, 0, len(leftoverShortcuts))
	for _, name := range leftoverShortcuts {
		paths = append(paths, filepath.Join(desktop, name))
	}
	return paths
}

// changeUserMode toggles the terminal services install mode around a
// deployment on multi-session hosts.
// This abstraction allows us to override when testing.
var changeUserMode = func(mode string) error {
	res, err := runProcess(execute.Options{
		Path:           filepath.Join(os.Getenv("WINDIR"), "system32", "change.exe"),
		Args:           []string{"user", mode},
		TimeoutMinutes: 1,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("change user %s exited with %d", mode, res.ExitCode)
	}
	logging.Info("Terminal services user mode changed", "mode", mode)
	return nil
}

func logInfof(format string, v ...interface{}) {
	logging.Info(fmt.Sprintf(format, v...))
}

func logErrorf(format string, v ...interface{}) {
	logging.Error(fmt.Sprintf(format, v...))
}

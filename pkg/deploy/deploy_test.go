package deploy

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/blocking"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/config"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/execute"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/exitcode"
)

// stubEnv replaces every external effect of the orchestrator and records
// the calls it received.
type stubEnv struct {
	existing      map[string]bool
	processCodes  map[string]int
	msiCodes      map[string]int
	processCalls  []string
	processOpts   []execute.Options
	msiCalls      []string
	closeAppsErr  error
	closedApps    []string
	envVars       map[string]string
	restartCalled bool
	restartPass   bool
	installerOK   bool
}

func newStubEnv(t *testing.T) *stubEnv {
	t.Helper()
	env := &stubEnv{
		existing:     map[string]bool{execute.MsiexecPath(): true},
		processCodes: map[string]int{},
		msiCodes:     map[string]int{},
		envVars:      map[string]string{},
		installerOK:  true,
	}

	origRun, origMSI := runProcess, removeMSI
	origClose, origEnv := closeApps, setMachineEnv
	origShortcuts, origRestart := removeShortcuts, handleRestart
	origExists, origInstalled := fileExists, productInstalled
	origVersion, origExe := installedVersion, executablePath
	origPre, origPost := runPreDeploy, runPostDeploy
	origChange := changeUserMode

	runProcess = func(opts execute.Options) (execute.Result, error) {
		env.processCalls = append(env.processCalls, opts.Path)
		env.processOpts = append(env.processOpts, opts)
		return execute.Result{ExitCode: env.processCodes[opts.Path]}, nil
	}
	removeMSI = func(productCode string, extraArgs []string, logFile string, timeoutMinutes int) (execute.Result, error) {
		env.msiCalls = append(env.msiCalls, productCode)
		return execute.Result{ExitCode: env.msiCodes[productCode]}, nil
	}
	closeApps = func(apps []string, countdown time.Duration, interactive bool) error {
		env.closedApps = apps
		return env.closeAppsErr
	}
	setMachineEnv = func(name, value string) error {
		env.envVars[name] = value
		return nil
	}
	removeShortcuts = func(paths []string) {}
	handleRestart = func(countdownSeconds int, interactive, passThru bool) {
		env.restartCalled = true
		env.restartPass = passThru
	}
	fileExists = func(path string) bool { return env.existing[path] }
	productInstalled = func(productCode string) (bool, string) { return true, "2018" }
	installedVersion = func(displayName string) (string, bool) { return "2018.1811.2", env.installerOK }
	executablePath = func() (string, error) { return `C:\Deploy\fusiondeploy.exe`, nil }
	runPreDeploy = func(func(string, ...interface{}), func(string, ...interface{})) error { return nil }
	runPostDeploy = func(func(string, ...interface{}), func(string, ...interface{})) error { return nil }
	changeUserMode = func(mode string) error { return nil }

	t.Cleanup(func() {
		runProcess, removeMSI = origRun, origMSI
		closeApps, setMachineEnv = origClose, origEnv
		removeShortcuts, handleRestart = origShortcuts, origRestart
		fileExists, productInstalled = origExists, origInstalled
		installedVersion, executablePath = origVersion, origExe
		runPreDeploy, runPostDeploy = origPre, origPost
		changeUserMode = origChange
	})
	return env
}

func installConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.PayloadPath = `C:\Payload`
	return cfg
}

func installerPath(cfg *config.Configuration) string {
	return filepath.Join(cfg.PayloadPath, fusionSetupExe)
}

func TestInstallAllStepsSucceedExitsZero(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true

	code := Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.Success, code)
	assert.Equal(t, []string{installerPath(cfg)}, env.processCalls)
	assert.Equal(t, cfg.LicenseServerHost, env.envVars[licenseHostVariable])
}

func TestInstallRebootCodePropagates(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true
	env.processCodes[installerPath(cfg)] = exitcode.RebootRequired

	code := Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.RebootRequired, code)
	assert.True(t, env.restartCalled)
}

func TestInstallWaitsForForkedSetupProcess(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true

	Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	require.Len(t, env.processOpts, 1)
	opts := env.processOpts[0]
	assert.Equal(t, installerPath(cfg), opts.Path)
	assert.Equal(t, []string{"/Type", "silent"}, opts.Args)
	assert.Equal(t, fusionSetupChild, opts.WaitForProcessName,
		"the bootstrapper forks and returns early; the step must wait for the child")
}

func TestCheckInstalledBuild(t *testing.T) {
	newStubEnv(t)

	installedVersion = func(string) (string, bool) { return fusionPayloadBuild, true }
	assert.NoError(t, checkInstalledBuild())

	installedVersion = func(string) (string, bool) { return "2018.1803.2", true }
	assert.Error(t, checkInstalledBuild(), "an older registered build must be reported")

	installedVersion = func(string) (string, bool) { return "", false }
	assert.Error(t, checkInstalledBuild())
}

func TestInstallSkipsConditionalRemovalsWhenAbsent(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true

	Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	require.Len(t, env.processCalls, 1)
	assert.Equal(t, installerPath(cfg), env.processCalls[0])
}

func TestInstallRunsConditionalRemovalsWhenPresent(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true
	removals := preInstallRemovalSteps()
	for _, step := range removals {
		env.existing[step.ConditionPath] = true
	}

	Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	require.Len(t, env.processCalls, len(removals)+1)
	for i, step := range removals {
		assert.Equal(t, step.TargetPath, env.processCalls[i])
	}
	assert.Equal(t, installerPath(cfg), env.processCalls[len(removals)])
}

func TestUninstallAlwaysRunsThreeStepsInOrder(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[fusionUninstallPath] = true
	// First step fails hard; the MSI removals must still run.
	env.processCodes[fusionUninstallPath] = 1603

	code := Run(Request{DeploymentType: Uninstall, DeployMode: Silent}, cfg)

	assert.Equal(t, []string{fusionUninstallPath}, env.processCalls)
	assert.Equal(t, []string{jawsProductCode, zoomTextProductCode}, env.msiCalls)
	assert.Equal(t, 1603, code)
}

func TestLastFailingStepCodeWins(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[fusionUninstallPath] = true
	env.processCodes[fusionUninstallPath] = 1603
	env.msiCodes[zoomTextProductCode] = 1618

	code := Run(Request{DeploymentType: Uninstall, DeployMode: Silent}, cfg)

	assert.Equal(t, 1618, code)
}

func TestRebootSentinelNeverOverwritten(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[fusionUninstallPath] = true
	env.processCodes[fusionUninstallPath] = exitcode.RebootRequired
	env.msiCodes[jawsProductCode] = 1603
	env.msiCodes[zoomTextProductCode] = 1618

	code := Run(Request{DeploymentType: Uninstall, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.RebootRequired, code)
	// All three steps still ran.
	assert.Len(t, env.msiCalls, 2)
}

func TestUnknownProductRemovalTreatedAsDone(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[fusionUninstallPath] = true
	env.msiCodes[jawsProductCode] = msiErrorUnknownProduct

	code := Run(Request{DeploymentType: Uninstall, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.Success, code)
}

func TestMissingPayloadExitsWithoutSteps(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	// Payload installer intentionally absent.

	code := Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.MissingPrereqs, code)
	assert.Empty(t, env.processCalls)
	assert.Empty(t, env.closedApps)
}

func TestMissingMsiexecExitsWithoutSteps(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true
	delete(env.existing, execute.MsiexecPath())

	code := Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.MissingPrereqs, code)
	assert.Empty(t, env.processCalls)
}

func TestPayloadChecksumMismatchExitsWithoutSteps(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	cfg.PayloadSHA256 = "deadbeef"
	env.existing[installerPath(cfg)] = true

	origVerify := verifyPayload
	verifyPayload = func(path, expected string) error {
		return errors.New("checksum mismatch")
	}
	t.Cleanup(func() { verifyPayload = origVerify })

	code := Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.MissingPrereqs, code)
	assert.Empty(t, env.processCalls)
}

func TestUserDeferralExitsWithDeferCode(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true
	env.closeAppsErr = blocking.ErrDeferred

	code := Run(Request{DeploymentType: Install, DeployMode: Interactive}, cfg)

	assert.Equal(t, exitcode.UserDeferred, code)
	assert.Empty(t, env.processCalls)
}

func TestPanicDuringOrchestrationReturnsGenericFailure(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true
	closeApps = func([]string, time.Duration, bool) error {
		panic("installer metadata corrupted")
	}

	code := Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Equal(t, exitcode.DeployFailure, code)
}

func TestRebootPassThruReachesRestartHandler(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	env.existing[installerPath(cfg)] = true
	env.processCodes[installerPath(cfg)] = exitcode.RebootRequired

	Run(Request{DeploymentType: Install, DeployMode: Silent, AllowRebootPassThru: true}, cfg)

	assert.True(t, env.restartCalled)
	assert.True(t, env.restartPass)
}

func TestParseDeploymentType(t *testing.T) {
	dt, err := ParseDeploymentType("uninstall")
	require.NoError(t, err)
	assert.Equal(t, Uninstall, dt)

	_, err = ParseDeploymentType("repair")
	assert.Error(t, err)
}

func TestParseDeployMode(t *testing.T) {
	m, err := ParseDeployMode("NonInteractive")
	require.NoError(t, err)
	assert.Equal(t, NonInteractive, m)

	_, err = ParseDeployMode("loud")
	assert.Error(t, err)
}

func TestCloseAppListIncludesConfiguredExtras(t *testing.T) {
	env := newStubEnv(t)
	cfg := installConfig()
	cfg.AdditionalCloseApps = []string{"Dragon.exe"}
	env.existing[installerPath(cfg)] = true

	Run(Request{DeploymentType: Install, DeployMode: Silent}, cfg)

	assert.Contains(t, env.closedApps, "Dragon.exe")
	assert.Contains(t, env.closedApps, "JFW.exe")
}

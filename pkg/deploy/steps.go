// pkg/deploy/steps.go - the fixed vendor-specific step definitions for
// Fusion 2018.

package deploy

// Windows Installer result codes handled specially by the step runner.
const (
	msiErrorUnknownProduct = 1605
)

const (
	// fusionSetupExe is the bundled installer bootstrapper, relative to the
	// payload directory.
	fusionSetupExe = "FusionSetup.exe"

	// fusionSetupChild is the child process the bootstrapper forks. The
	// bootstrapper itself returns before the MSI transaction is done, so the
	// install step waits for this image name to disappear.
	fusionSetupChild = "FSSetup.exe"

	// fusionUninstallPath is where Fusion 2018 registers its uninstaller.
	fusionUninstallPath = `C:\Program Files\Freedom Scientific\Fusion\2018\FusionUninstall.exe`

	// licenseHostVariable is read by the Freedom Scientific license client
	// to locate the network license server.
	licenseHostVariable = "LSFORCEHOST"

	// fusionDisplayName is how Fusion registers itself in the uninstall
	// registry.
	fusionDisplayName = "Fusion 2018"

	// fusionPayloadBuild is the DisplayVersion the bundled installer
	// registers. Post-install verification compares against it to catch a
	// stale product left behind by a failed upgrade.
	fusionPayloadBuild = "2018.1811.2"
)

// Product codes for the MSI components Fusion 2018 layers on top of its
// bootstrapper. These are removed explicitly on uninstall because the
// bootstrapper's uninstaller leaves them behind.
const (
	jawsProductCode     = "{8F3BB4A1-40C2-4B33-9E36-7A8D2F9C1D05}"
	zoomTextProductCode = "{C1E1E0A4-55A3-4F52-8E61-2D4B9A7C3F18}"
)

// defaultCloseApps are the Freedom Scientific processes that hold locks on
// files the installers replace. They are closed before any step runs.
var defaultCloseApps = []string{
	"Fusion.exe",
	"JFW.exe",
	"ZoomText.exe",
	"FusionUI.exe",
	"FSReader.exe",
}

// leftoverShortcuts are created by the vendor installer on the all-users
// desktop and removed after installation. Managed endpoints publish these
// through the start menu instead.
var leftoverShortcuts = []string{
	`Fusion 2018.lnk`,
	`JAWS 2018.lnk`,
	`ZoomText 2018.lnk`,
	`FSReader 3.0.lnk`,
}

// Step is one installer invocation in a deployment sequence. Exactly one of
// TargetPath and ProductCode is set: TargetPath runs an executable,
// ProductCode removes an MSI product through msiexec.
type Step struct {
	Name               string
	TargetPath         string
	Args               []string
	WaitForProcessName string
	ProductCode        string

	// ConditionPath, when set, gates the step on a filesystem presence
	// check. Used by the pre-install cleanup of older product generations.
	ConditionPath string
}

// preInstallRemovalSteps returns the conditional cleanup of older Freedom
// Scientific generations that conflict with Fusion 2018. Each step only runs
// when its legacy uninstaller is still on disk.
func preInstallRemovalSteps() []Step {
	return []Step{
		{
			Name:          "Remove JAWS 18",
			TargetPath:    `C:\Program Files\Freedom Scientific\JAWS\18.0\JAWSUninstall.exe`,
			Args:          []string{"/Type", "silent"},
			ConditionPath: `C:\Program Files\Freedom Scientific\JAWS\18.0\JAWSUninstall.exe`,
		},
		{
			Name:          "Remove ZoomText 11",
			TargetPath:    `C:\Program Files (x86)\ZoomText 11\Uninstall.exe`,
			Args:          []string{"/S"},
			ConditionPath: `C:\Program Files (x86)\ZoomText 11\Uninstall.exe`,
		},
	}
}

// uninstallSteps returns the fixed removal sequence. All three steps always
// run in this order; a failing step never shortens the sequence.
func uninstallSteps() []Step {
	return []Step{
		{
			Name:       "Fusion 2018 uninstaller",
			TargetPath: fusionUninstallPath,
			Args:       []string{"/Type", "silent"},
		},
		{
			Name:        "Remove JAWS 2018 component",
			ProductCode: jawsProductCode,
		},
		{
			Name:        "Remove ZoomText 2018 component",
			ProductCode: zoomTextProductCode,
		},
	}
}

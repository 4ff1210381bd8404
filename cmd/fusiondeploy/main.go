// cmd/fusiondeploy/main.go

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sys/windows"
	"gopkg.in/yaml.v3"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/config"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/deploy"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/exitcode"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/sysinfo"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/utils"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/version"
)

var logger *logging.Logger

// enableANSIConsole enables ANSI colors in the console.
func enableANSIConsole() {
	for _, stream := range []*os.File{os.Stdout, os.Stderr} {
		handle := windows.Handle(stream.Fd())
		var mode uint32
		if err := windows.GetConsoleMode(handle, &mode); err == nil {
			mode |= windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
			_ = windows.SetConsoleMode(handle, mode)
		}
	}
}

func main() {
	utils.PatchWindowsArgs()
	enableANSIConsole()

	// Define command-line flags.
	deploymentType := pflag.String("deployment-type", "Install", "Deployment type: Install or Uninstall.")
	deployMode := pflag.String("deploy-mode", "Interactive", "Deploy mode: Interactive, Silent, or NonInteractive.")
	allowRebootPassThru := pflag.Bool("allow-reboot-passthru", false, "Pass a pending-reboot exit code (3010) through to the caller instead of prompting.")
	terminalServerMode := pflag.Bool("terminal-server-mode", false, "Toggle terminal services install mode around the deployment.")
	disableLogging := pflag.Bool("disable-logging", false, "Disable file logging; console output only.")
	showConfig := pflag.Bool("show-config", false, "Display the current configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv, -vvv)")
	pflag.Parse()

	if *versionFlag {
		version.Print()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitcode.DeployFailure)
	}

	// Dynamically override LogLevel based on the number of -v flags.
	switch verbosity {
	case 0:
		// keep the configured level
	case 1:
		cfg.LogLevel = "INFO"
	default:
		cfg.LogLevel = "DEBUG"
	}
	if verbosity > 0 {
		cfg.Verbose = true
		if verbosity >= 2 {
			cfg.Debug = true
		}
	}
	if *disableLogging {
		cfg.DisableLogging = true
	}

	if *showConfig {
		if cfgYaml, err := yaml.Marshal(cfg); err == nil {
			fmt.Printf("Current configuration:\n%s", string(cfgYaml))
		}
		os.Exit(0)
	}

	dt, err := deploy.ParseDeploymentType(*deploymentType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		pflag.Usage()
		os.Exit(exitcode.DeployFailure)
	}
	dm, err := deploy.ParseDeployMode(*deployMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		pflag.Usage()
		os.Exit(exitcode.DeployFailure)
	}

	logger = logging.New(verbosity > 0)
	if err := logging.Init(cfg); err != nil {
		logger.Error("Error initializing logger: %v", err)
		os.Exit(exitcode.DeployFailure)
	}
	defer logging.CloseLogger()

	// Check administrative privileges. Installer steps write to Program
	// Files, HKLM, and the machine environment; nothing works without them.
	admin, adminErr := adminCheck()
	if adminErr != nil || !admin {
		logger.Error("Administrative access required. Error: %v, Admin: %v", adminErr, admin)
		logging.CloseLogger()
		os.Exit(exitcode.DeployFailure)
	}

	// Handle system signals for graceful shutdown.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		logger.Warning("Signal received, exiting gracefully: %s", sig.String())
		logging.CloseLogger()
		os.Exit(exitcode.DeployFailure)
	}()

	facts := sysinfo.Collect()
	logging.Info("Session environment",
		"hostname", facts.Hostname,
		"machine", facts.MachineModel,
		"machine_type", facts.MachineType,
		"arch", facts.Architecture,
		"os", facts.OSName,
		"os_version", facts.OSVersion,
		"os_build", facts.OSBuild)

	req := deploy.Request{
		DeploymentType:      dt,
		DeployMode:          dm,
		AllowRebootPassThru: *allowRebootPassThru,
		TerminalServerMode:  *terminalServerMode,
		DisableLogging:      *disableLogging,
	}

	code := deploy.Run(req, cfg)

	if exitcode.IsSuccess(code) {
		logger.Success("%s completed with exit code %d", dt.String(), code)
	} else {
		logger.Error("%s failed with exit code %d", dt.String(), code)
	}

	logging.CloseLogger()
	os.Exit(code)
}

// adminCheck verifies whether the current process has administrative privileges.
func adminCheck() (bool, error) {
	var adminSid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&adminSid)
	if err != nil {
		return false, err
	}
	defer windows.FreeSid(adminSid)
	token := windows.Token(0)
	isMember, err := token.IsMember(adminSid)
	return isMember, err
}

// pkg/sysinfo/sysinfo.go - hardware and OS facts recorded at session start.

package sysinfo

import (
	"fmt"
	"os"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows/registry"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/status"
)

// WMI structures for querying system information
type Win32_SystemEnclosure struct {
	ChassisTypes []uint16 `wmi:"ChassisTypes"`
}

type Win32_ComputerSystem struct {
	Model        string `wmi:"Model"`
	Manufacturer string `wmi:"Manufacturer"`
}

// Facts describes the machine a deployment is running on. They are logged
// with every session so a failed deployment can be tied to the hardware
// and OS build it ran against.
type Facts struct {
	Hostname     string `yaml:"hostname"`
	MachineType  string `yaml:"machine_type"`
	MachineModel string `yaml:"machine_model"`
	Architecture string `yaml:"architecture"`
	OSName       string `yaml:"os_name"`
	OSVersion    string `yaml:"os_version"`
	OSBuild      string `yaml:"os_build"`
}

// Collect gathers machine facts. Individual lookups that fail produce
// "unknown" rather than failing the collection.
func Collect() Facts {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	name, version, build := osVersion()

	return Facts{
		Hostname:     hostname,
		MachineType:  machineType(),
		MachineModel: machineModel(),
		Architecture: status.GetSystemArchitecture(),
		OSName:       name,
		OSVersion:    version,
		OSBuild:      build,
	}
}

// machineType determines if the machine is a laptop or desktop based on chassis type
func machineType() string {
	var enclosures []Win32_SystemEnclosure

	err := wmi.Query("SELECT ChassisTypes FROM Win32_SystemEnclosure", &enclosures)
	if err != nil {
		logging.Warn("Failed to query system enclosure information", "error", err)
		return "unknown"
	}

	if len(enclosures) == 0 || len(enclosures[0].ChassisTypes) == 0 {
		logging.Warn("No chassis type information available")
		return "unknown"
	}

	for _, chassisType := range enclosures[0].ChassisTypes {
		switch chassisType {
		case 8, 9, 10, 14, 30, 31, 32:
			// 8=Portable, 9=Laptop, 10=Notebook, 14=Sub Notebook,
			// 30=Tablet, 31=Convertible, 32=Detachable
			return "laptop"
		case 3, 4, 5, 6, 7, 15, 16:
			// 3=Desktop, 4=Low Profile Desktop, 5=Pizza Box, 6=Mini Tower,
			// 7=Tower, 15=Space-saving, 16=Lunch Box
			return "desktop"
		}
	}

	logging.Debug("Unknown chassis type, defaulting to desktop", "chassisTypes", enclosures[0].ChassisTypes)
	return "desktop"
}

// machineModel determines the computer model and manufacturer
func machineModel() string {
	var systems []Win32_ComputerSystem

	err := wmi.Query("SELECT Model, Manufacturer FROM Win32_ComputerSystem", &systems)
	if err != nil {
		logging.Warn("Failed to query computer system model information", "error", err)
		return "unknown"
	}

	if len(systems) == 0 {
		logging.Warn("No computer system model information available")
		return "unknown"
	}

	system := systems[0]
	switch {
	case system.Manufacturer != "" && system.Model != "":
		return fmt.Sprintf("%s %s", system.Manufacturer, system.Model)
	case system.Model != "":
		return system.Model
	case system.Manufacturer != "":
		return system.Manufacturer
	}
	return "unknown"
}

// osVersion reads the product name, display version, and build number
// from the CurrentVersion registry key.
func osVersion() (name, version, build string) {
	name, version, build = "unknown", "unknown", "unknown"

	key, err := registry.OpenKey(registry.LOCAL_MACHINE,
		`SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
	if err != nil {
		logging.Warn("Failed to open CurrentVersion key", "error", err)
		return
	}
	defer key.Close()

	if v, _, err := key.GetStringValue("ProductName"); err == nil {
		name = v
	}
	if v, _, err := key.GetStringValue("DisplayVersion"); err == nil {
		version = v
	} else if v, _, err := key.GetStringValue("ReleaseId"); err == nil {
		version = v
	}
	if v, _, err := key.GetStringValue("CurrentBuild"); err == nil {
		build = v
	}
	return
}

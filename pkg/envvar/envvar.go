// pkg/envvar/envvar.go - machine-scoped environment variables.

package envvar

import (
	"fmt"
	"unsafe"

	"github.com/gonutz/w32"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/MSUDenverSystemsEngineering/Freedom-Scientific-Fusion/pkg/logging"
)

const machineEnvKeyPath = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`

// SetMachine writes a machine-scoped environment variable and broadcasts
// the change so new processes pick it up without a reboot.
func SetMachine(name, value string) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, machineEnvKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("opening machine environment key: %w", err)
	}
	defer key.Close()

	if err := key.SetStringValue(name, value); err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}

	logging.Info("Set machine environment variable", "name", name, "value", value)
	broadcastEnvironmentChange()
	return nil
}

// DeleteMachine removes a machine-scoped environment variable. A variable
// that does not exist is not an error.
func DeleteMachine(name string) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, machineEnvKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("opening machine environment key: %w", err)
	}
	defer key.Close()

	if err := key.DeleteValue(name); err != nil {
		if err == registry.ErrNotExist {
			logging.Debug("Machine environment variable not present", "name", name)
			return nil
		}
		return fmt.Errorf("deleting %s: %w", name, err)
	}

	logging.Info("Removed machine environment variable", "name", name)
	broadcastEnvironmentChange()
	return nil
}

// broadcastEnvironmentChange tells running top-level windows that the
// environment block changed. Explorer refreshes its copy on this message.
func broadcastEnvironmentChange() {
	env, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	w32.SendMessage(w32.HWND(0xFFFF), w32.WM_SETTINGCHANGE, 0, uintptr(unsafe.Pointer(env)))
}

package execute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMsiInstallArgs(t *testing.T) {
	args := msiInstallArgs(`C:\payload\shared.msi`, nil, "")
	assert.Equal(t, []string{"/i", `C:\payload\shared.msi`, "/qn", "/norestart"}, args)
}

func TestMsiInstallArgsWithLogAndExtras(t *testing.T) {
	args := msiInstallArgs(`C:\payload\shared.msi`, []string{"REBOOT=ReallySuppress"}, `C:\logs\shared.log`)
	assert.Equal(t, []string{
		"/i", `C:\payload\shared.msi`, "/qn", "/norestart",
		"/l*v", `C:\logs\shared.log`,
		"REBOOT=ReallySuppress",
	}, args)
}

func TestMsiRemoveArgs(t *testing.T) {
	args := msiRemoveArgs("{3F2504E0-4F89-41D3-9A0C-0305E82C3301}", nil, "")
	assert.Equal(t, []string{"/x", "{3F2504E0-4F89-41D3-9A0C-0305E82C3301}", "/qn", "/norestart"}, args)
}

func TestMsiRemoveArgsWithLog(t *testing.T) {
	args := msiRemoveArgs("{3F2504E0-4F89-41D3-9A0C-0305E82C3301}", nil, `C:\logs\remove.log`)
	assert.Contains(t, args, "/l*v")
	assert.Contains(t, args, `C:\logs\remove.log`)
}

func TestMsiexecPathEndsWithMsiexec(t *testing.T) {
	assert.Contains(t, MsiexecPath(), "msiexec.exe")
}

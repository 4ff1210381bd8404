package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesTargetBareName(t *testing.T) {
	assert.True(t, matchesTarget("jfw.exe", "", "jfw"))
	assert.True(t, matchesTarget("JFW.EXE", "", "jfw"))
	assert.False(t, matchesTarget("jfwui.exe", "", "jfw"))
}

func TestMatchesTargetExeName(t *testing.T) {
	assert.True(t, matchesTarget("fusion.exe", "", "Fusion.exe"))
	assert.False(t, matchesTarget("fusion32.exe", "", "fusion.exe"))
}

func TestMatchesTargetFullPath(t *testing.T) {
	exe := `C:\Program Files (x86)\Freedom Scientific\Fusion\2018\Fusion.exe`
	assert.True(t, matchesTarget("fusion.exe", exe, exe))
	assert.False(t, matchesTarget("fusion.exe", `C:\Other\Fusion.exe`, exe))
}

func TestCloseAppsNoRunningAppsIsNoop(t *testing.T) {
	err := CloseApps([]string{"definitely-not-a-real-process-name-zz.exe"}, 0, false)
	assert.NoError(t, err)
}

func TestCloseAppsInteractiveDefer(t *testing.T) {
	orig := promptProceed
	promptProceed = func([]string) bool { return false }
	defer func() { promptProceed = orig }()

	// The current test binary always shows up in the process table, which
	// makes it a convenient stand-in for a running conflicting app.
	self := "blocking.test.exe"
	if !IsAppRunning(self) {
		t.Skip("test binary name not visible in process table")
	}

	err := CloseApps([]string{self}, 0, true)
	assert.ErrorIs(t, err, ErrDeferred)
}

func TestRunningAppsFiltersNonRunning(t *testing.T) {
	apps := RunningApps([]string{"definitely-not-a-real-process-name-zz.exe"})
	assert.Empty(t, apps)
}

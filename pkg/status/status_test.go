package status

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOlderVersion(t *testing.T) {
	assert.True(t, IsOlderVersion("2018.1803.2", "2018.1808.10"))
	assert.False(t, IsOlderVersion("2018.1808.10", "2018.1803.2"))
	assert.False(t, IsOlderVersion("2018.1808.10", "2018.1808.10"))
}

func TestIsOlderVersionUnparsable(t *testing.T) {
	assert.False(t, IsOlderVersion("not-a-version", "2018.1808.10"))
	assert.False(t, IsOlderVersion("2018.1808.10", ""))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing.exe")))
}

func TestGetSystemArchitectureNormalized(t *testing.T) {
	arch := GetSystemArchitecture()
	assert.NotEqual(t, "amd64", arch, "amd64 must normalize to x64")
	assert.NotEmpty(t, arch)
}

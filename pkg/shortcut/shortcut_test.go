package shortcut

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveMissingIsNotAnError(t *testing.T) {
	err := Remove(filepath.Join(t.TempDir(), "no-such-shortcut.lnk"))
	assert.NoError(t, err)
}

func TestRemoveDeletesExistingShortcut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Fusion.lnk")
	require.NoError(t, os.WriteFile(path, []byte("link"), 0644))

	require.NoError(t, Remove(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveAllContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "JAWS 2018.lnk")
	require.NoError(t, os.WriteFile(keep, []byte("link"), 0644))

	RemoveAll([]string{
		filepath.Join(dir, "missing.lnk"),
		keep,
	})

	_, err := os.Stat(keep)
	assert.True(t, os.IsNotExist(err))
}

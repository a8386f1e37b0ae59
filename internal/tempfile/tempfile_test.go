package tempfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_CreatesNamespacedDirectory(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, time.Hour)

	dir, err := m.Dir("backend-a")
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(root, "backend-a"), dir)
}

func TestWriteFile_CreatesFileUnderNamespace(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, time.Hour)

	path, err := m.WriteFile("backend-a", "scratch.txt", []byte("hello"))
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestCleanup_RemovesOnlyStaleNamespaces(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, 20*time.Millisecond)

	_, err := m.WriteFile("stale", "f.txt", []byte("old"))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = m.WriteFile("fresh", "f.txt", []byte("new"))
	require.NoError(t, err)

	removed, err := m.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, []string{"stale"}, removed)
	assert.NoDirExists(t, filepath.Join(root, "stale"))
	assert.DirExists(t, filepath.Join(root, "fresh"))
}

func TestCleanup_NoRootIsNotAnError(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"), time.Hour)
	removed, err := m.Cleanup()
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRemove_DeletesImmediatelyRegardlessOfTTL(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, time.Hour)

	dir, err := m.Dir("backend-a")
	require.NoError(t, err)

	require.NoError(t, m.Remove("backend-a"))
	assert.NoDirExists(t, dir)
}

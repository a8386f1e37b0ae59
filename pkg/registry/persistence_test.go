package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/relay/pkg/resource"
)

func writeResourceFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadOrScan_ScansWhenNoSnapshotExists(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	calls := 0
	scan := func() ([]*resource.Resource, error) {
		calls++
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	}

	store := NewStore(stateDir, time.Minute)
	reg, err := store.LoadOrScan(scan)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, reg.Count())
	assert.FileExists(t, filepath.Join(stateDir, "last_scan.json"))
	assert.FileExists(t, filepath.Join(stateDir, "resources_snapshot.json"))
}

func TestLoadOrScan_ReusesFreshSnapshotWithoutRescanning(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	calls := 0
	scan := func() ([]*resource.Resource, error) {
		calls++
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	}

	store := NewStore(stateDir, time.Minute)
	_, err := store.LoadOrScan(scan)
	require.NoError(t, err)

	reg, err := store.LoadOrScan(scan)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second LoadOrScan should reuse the fresh snapshot")
	assert.Equal(t, 1, reg.Count())
}

func TestLoadOrScan_RescansWhenFileContentChanges(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	calls := 0
	scan := func() ([]*resource.Resource, error) {
		calls++
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	}

	store := NewStore(stateDir, time.Minute)
	_, err := store.LoadOrScan(scan)
	require.NoError(t, err)

	writeResourceFile(t, resourcePath, "# reviewer\nchanged\n")

	_, err = store.LoadOrScan(scan)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "changed fingerprint should force a rescan")
}

func TestLoadOrScan_RescansWhenTTLExpired(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	calls := 0
	scan := func() ([]*resource.Resource, error) {
		calls++
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	}

	store := NewStore(stateDir, time.Millisecond)
	_, err := store.LoadOrScan(scan)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = store.LoadOrScan(scan)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsFresh_FalseWhenNoSnapshotExists(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)
	assert.False(t, store.IsFresh())
}

func TestInvalidate_ForcesRescan(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	calls := 0
	scan := func() ([]*resource.Resource, error) {
		calls++
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	}

	store := NewStore(stateDir, time.Minute)
	_, err := store.LoadOrScan(scan)
	require.NoError(t, err)

	require.NoError(t, store.Invalidate())
	assert.False(t, store.IsFresh())

	_, err = store.LoadOrScan(scan)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetStats_ReportsScanMetadata(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	store := NewStore(stateDir, time.Minute)
	_, err := store.LoadOrScan(func() ([]*resource.Resource, error) {
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	})
	require.NoError(t, err)

	stats := store.GetStats()
	assert.Equal(t, "cached", stats.Status)
	assert.Equal(t, 1, stats.TotalResources)
	assert.True(t, stats.IsValid)
	assert.GreaterOrEqual(t, stats.AgeSeconds, 0.0)
}

func TestGetStats_NoCacheWhenNoSnapshotExists(t *testing.T) {
	store := NewStore(t.TempDir(), time.Minute)

	stats := store.GetStats()
	assert.Equal(t, "no_cache", stats.Status)
	assert.False(t, stats.IsValid)
	assert.Equal(t, 0, stats.TotalResources)
}

func TestGetStats_InvalidWhenTTLExpired(t *testing.T) {
	stateDir := t.TempDir()
	resourcePath := filepath.Join(t.TempDir(), "reviewer.md")
	writeResourceFile(t, resourcePath, "# reviewer\n")

	store := NewStore(stateDir, time.Millisecond)
	_, err := store.LoadOrScan(func() ([]*resource.Resource, error) {
		return []*resource.Resource{{Type: "skill", Name: "reviewer", Path: resourcePath}}, nil
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	stats := store.GetStats()
	assert.Equal(t, "invalid", stats.Status)
	assert.False(t, stats.IsValid)
}

func TestFingerprint_DifferentContentDifferentHash(t *testing.T) {
	a := Fingerprint([]byte("one"))
	b := Fingerprint([]byte("two"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint([]byte("one")))
}

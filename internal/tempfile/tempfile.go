// Package tempfile manages scoped per-namespace working directories under
// a temp root, with TTL-based cleanup: unlike a workdir tied to one
// in-process task, these directories persist across invocations and are
// reaped once stale.
package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/relay/internal/fileutil"
)

// Manager creates and reaps scoped working directories under root, one
// subdirectory per namespace.
type Manager struct {
	root string
	ttl  time.Duration
}

// NewManager returns a Manager rooted at root with files older than ttl
// eligible for cleanup.
func NewManager(root string, ttl time.Duration) *Manager {
	return &Manager{root: root, ttl: ttl}
}

// Dir returns (creating if needed) the working directory scoped to
// namespace.
func (m *Manager) Dir(namespace string) (string, error) {
	dir := filepath.Join(m.root, namespace)
	if err := fileutil.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create temp dir for %s: %w", namespace, err)
	}
	return dir, nil
}

// WriteFile writes content to name inside namespace's working directory,
// creating the directory if needed.
func (m *Manager) WriteFile(namespace, name string, content []byte) (string, error) {
	dir, err := m.Dir(namespace)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := fileutil.WriteFile(path, content); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", path, err)
	}
	return path, nil
}

// Cleanup removes every namespace directory whose most recent modification
// is older than the TTL. Returns the namespaces removed.
func (m *Manager) Cleanup() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read temp root: %w", err)
	}

	var removed []string
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		stale, err := m.isStale(path, now)
		if err != nil {
			continue
		}
		if !stale {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove stale temp dir %s: %w", path, err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

// isStale reports whether every file under dir was last modified before
// now minus the TTL.
func (m *Manager) isStale(dir string, now time.Time) (bool, error) {
	stale := true
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if now.Sub(info.ModTime()) < m.ttl {
			stale = false
		}
		return nil
	})
	return stale, err
}

// Remove deletes namespace's working directory immediately, regardless of
// TTL.
func (m *Manager) Remove(namespace string) error {
	dir := filepath.Join(m.root, namespace)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove temp dir for %s: %w", namespace, err)
	}
	return nil
}

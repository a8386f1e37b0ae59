package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ternarybob/relay/internal/logger"
)

// Watcher watches resource roots for Markdown descriptor changes and
// calls an invalidate callback once changes settle, adapted from the
// teacher's debounced file-system watcher (index/watcher.go) and
// retargeted at resource roots instead of source files.
type Watcher struct {
	watcher    *fsnotify.Watcher
	roots      []string
	debounce   time.Duration
	invalidate func()

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher returns a Watcher over roots that calls invalidate after
// debounce has elapsed with no further changes.
func NewWatcher(roots []string, debounce time.Duration, invalidate func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		watcher:    fsWatcher,
		roots:      roots,
		debounce:   debounce,
		invalidate: invalidate,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching. Idempotent.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return fmt.Errorf("add watch directories: %w", err)
	}

	go w.processEvents()
	go w.processDebounced()
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.watcher.Close()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) addDirectories() error {
	for _, root := range w.roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !info.IsDir() {
				return nil
			}
			if err := w.watcher.Add(path); err != nil {
				logger.GetLogger().Warn().Err(err).Str("path", path).Msg("cannot watch directory")
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending = true
			w.pendingMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Warn().Err(err).Msg("registry watcher error")
		}
	}
}

func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pendingMu.Lock()
			fire := w.pending
			w.pending = false
			w.pendingMu.Unlock()
			if fire {
				w.invalidate()
			}
		}
	}
}

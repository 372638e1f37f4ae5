// Package watchlist supplies the user's tracked terms from a YAML file,
// hot-reloaded on edit so a restart is never needed to pick up changes.
package watchlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileSource reads watchlist terms from a YAML file and watches it for
// changes. A missing file is an empty watchlist, not an error.
type FileSource struct {
	mu     sync.RWMutex
	path   string
	terms  []string
	log    *zap.Logger
	stopCh chan struct{}
	doneCh chan struct{}

	running     bool
	debounceDur time.Duration
}

type watchlistFile struct {
	Terms []string `yaml:"terms"`
}

// New creates a FileSource and performs the initial load.
func New(path string, log *zap.Logger) *FileSource {
	if log == nil {
		log = zap.NewNop()
	}
	f := &FileSource{
		path:        path,
		log:         log,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		debounceDur: 500 * time.Millisecond,
	}
	if err := f.reload(); err != nil {
		log.Warn("watchlist initial load failed, starting empty", zap.Error(err))
	}
	return f
}

// Terms returns the current tracked terms. Never fails: a broken file keeps
// the last good set.
func (f *FileSource) Terms(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out, nil
}

func (f *FileSource) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read watchlist: %w", err)
	}

	var parsed watchlistFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse watchlist: %w", err)
	}

	terms := make([]string, 0, len(parsed.Terms))
	for _, t := range parsed.Terms {
		if strings.TrimSpace(t) != "" {
			terms = append(terms, strings.TrimSpace(t))
		}
	}

	f.mu.Lock()
	f.terms = terms
	f.mu.Unlock()
	f.log.Debug("watchlist reloaded", zap.Int("terms", len(terms)))
	return nil
}

// Start begins watching the file's directory for edits. Non-blocking.
func (f *FileSource) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.setRunning(false)
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors replace files rather than writing in place.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		f.setRunning(false)
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	go f.loop(watcher)
	return nil
}

func (f *FileSource) loop(watcher *fsnotify.Watcher) {
	defer close(f.doneCh)
	defer watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-f.stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce rapid saves.
			pending = time.After(f.debounceDur)
		case <-pending:
			pending = nil
			if err := f.reload(); err != nil {
				f.log.Warn("watchlist reload failed, keeping previous terms", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("watchlist watcher error", zap.Error(err))
		}
	}
}

func (f *FileSource) setRunning(v bool) {
	f.mu.Lock()
	f.running = v
	f.mu.Unlock()
}

// Stop halts the watcher and waits for the loop to exit.
func (f *FileSource) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh
}

// Package watch rebuilds the pattern registry when its configuration file or
// one of the pattern files it lists changes on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/diffkemp/diffpat/internal/config"
	"github.com/diffkemp/diffpat/internal/errors"
	"github.com/diffkemp/diffpat/internal/pattern"
)

// DefaultDelay is how long the reloader waits for changes to settle.
const DefaultDelay = 100 * time.Millisecond

// ErrStopped is returned by Reload after Stop.
var ErrStopped = errors.New("reloader stopped")

// Reloader owns the current pattern registry and replaces it whenever a
// watched file changes. The replaced registry is closed, so callers should
// fetch Current for every comparison rather than hold on to it.
type Reloader struct {
	configPath string
	options    []pattern.Option
	logger     *zap.Logger

	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	onReload  func(*pattern.Comparator)

	mu      sync.RWMutex
	current *pattern.Comparator
	files   map[string]bool
	dirs    map[string]bool
	stopped bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReloader loads the configuration at configPath and builds the first
// registry. A configuration error is returned as is.
func NewReloader(configPath string, logger *zap.Logger, opts ...pattern.Option) (*Reloader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Reloader{
		configPath: filepath.Clean(configPath),
		options:    append([]pattern.Option{pattern.WithLogger(logger)}, opts...),
		logger:     logger,
		debouncer:  NewDebouncer(DefaultDelay),
		files:      make(map[string]bool),
		dirs:       make(map[string]bool),
		stopChan:   make(chan struct{}),
	}

	cfg, err := config.Load(r.configPath)
	if err != nil {
		return nil, err
	}
	r.current = pattern.NewFromConfiguration(cfg, r.options...)
	r.trackFiles(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = r.current.Close()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	r.watcher = watcher

	r.debouncer.SetCallback(func(paths []string) {
		r.logger.Info("pattern files changed", zap.Strings("files", paths))
		if err := r.Reload(); err != nil {
			r.logger.Error("keeping previous patterns", zap.Error(err))
		}
	})

	return r, nil
}

// OnReload registers fn to receive every newly built registry.
func (r *Reloader) OnReload(fn func(*pattern.Comparator)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = fn
}

// Current returns the registry built by the latest successful load.
func (r *Reloader) Current() *pattern.Comparator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Start begins watching the directories of the configuration and pattern
// files.
func (r *Reloader) Start() error {
	if err := r.watchDirectories(); err != nil {
		return err
	}

	r.wg.Add(1)
	go r.watch()
	return nil
}

// Stop ends watching and closes the current registry.
func (r *Reloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
		r.debouncer.Stop()
		err = r.watcher.Close()

		r.mu.Lock()
		r.stopped = true
		if r.current != nil {
			_ = r.current.Close()
		}
		r.mu.Unlock()
	})
	return err
}

// Reload re-reads the configuration and swaps in a new registry. On a
// configuration error the previous registry stays in place. A registry
// built while Stop runs is closed instead of swapped in.
func (r *Reloader) Reload() error {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return err
	}
	next := pattern.NewFromConfiguration(cfg, r.options...)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		_ = next.Close()
		return ErrStopped
	}
	prev := r.current
	r.current = next
	r.trackFiles(cfg)
	callback := r.onReload
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	if r.watcher != nil {
		if err := r.watchDirectories(); err != nil {
			r.logger.Warn("failed to watch new pattern directories", zap.Error(err))
		}
	}

	r.logger.Info("reloaded difference patterns", zap.Int("patterns", len(next.Patterns())))
	if callback != nil {
		callback(next)
	}
	return nil
}

// trackFiles records the files whose changes trigger a reload.
func (r *Reloader) trackFiles(cfg *config.PatternConfiguration) {
	r.files = map[string]bool{r.configPath: true}
	for _, f := range cfg.PatternFiles {
		r.files[filepath.Clean(f)] = true
	}
}

// watchDirectories adds the parent directory of every tracked file. Editors
// often replace files instead of writing them, so directories are watched
// rather than the files themselves.
func (r *Reloader) watchDirectories() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil
	}
	for file := range r.files {
		dir := filepath.Dir(file)
		if r.dirs[dir] {
			continue
		}
		if err := r.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		r.dirs[dir] = true
		r.logger.Debug("watching directory", zap.String("dir", dir))
	}
	return nil
}

func (r *Reloader) tracked(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files[filepath.Clean(path)]
}

// watch is the event loop
func (r *Reloader) watch() {
	defer r.wg.Done()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&relevant == 0 || !r.tracked(event.Name) {
				continue
			}
			r.logger.Debug("file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			r.debouncer.Add(event.Name)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("file watcher error", zap.Error(err))

		case <-r.stopChan:
			return
		}
	}
}

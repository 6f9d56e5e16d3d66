// Package watcher reports changes to a set of module files, debounced per file.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/hotswap/internal/log"
)

// Watcher monitors module files and emits the path of each file that changed.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	onChange  chan string
	done      chan struct{}
	stopOnce  sync.Once

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]int
}

// Config holds watcher configuration options.
type Config struct {
	// Debounce is how long a file must stay quiet before its change is
	// reported. Each file is debounced independently.
	Debounce time.Duration
	// Buffer is the capacity of the change channel.
	Buffer int
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig() Config {
	return Config{
		Debounce: 200 * time.Millisecond,
		Buffer:   64,
	}
}

// New creates a watcher with no files.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	return &Watcher{
		fsWatcher: fsw,
		debounce:  cfg.Debounce,
		onChange:  make(chan string, cfg.Buffer),
		done:      make(chan struct{}),
		files:     make(map[string]struct{}),
		dirs:      make(map[string]int),
	}, nil
}

// Add starts reporting changes to path. The containing directory is watched
// so editors that replace the file by rename are still seen.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	log.Debug(log.CatWatcher, "watching file", "path", abs)
	return nil
}

// Remove stops reporting changes to path.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)
	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if err := w.fsWatcher.Remove(dir); err != nil {
		return fmt.Errorf("unwatching directory %s: %w", dir, err)
	}
	return nil
}

// Files returns the watched files.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Start begins processing events. The returned channel receives the absolute
// path of every file whose change has settled.
func (w *Watcher) Start() <-chan string {
	go w.loop()
	return w.onChange
}

// Stop terminates the watcher and releases resources. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop debounces events per file. pending maps a file to the time its
// change may be reported; one timer is armed for the earliest deadline.
func (w *Watcher) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]time.Time)

	arm := func() {
		var next time.Time
		for _, due := range pending {
			if next.IsZero() || due.Before(next) {
				next = due
			}
		}
		timer.Stop()
		if !next.IsZero() {
			timer.Reset(time.Until(next))
		}
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			path, relevant := w.relevant(event)
			if !relevant {
				continue
			}
			pending[path] = time.Now().Add(w.debounce)
			arm()

		case now := <-timer.C:
			for path, due := range pending {
				if due.After(now) {
					continue
				}
				delete(pending, path)
				select {
				case w.onChange <- path:
				default:
					log.Warn(log.CatWatcher, "change dropped, channel full", "path", path)
				}
			}
			arm()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatWatcher, "watch error", "error", err)

		case <-w.done:
			return
		}
	}
}

// relevant reports whether event is a write or create of a watched file.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return "", false
	}
	path := filepath.Clean(event.Name)
	w.mu.Lock()
	_, ok := w.files[path]
	w.mu.Unlock()
	return path, ok
}

// Package watcher notices writes to the contacts database made by other
// processes and coalesces each burst into a single notification.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/rolodex/internal/log"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Path is the SQLite database file. Its -wal sidecar is watched too.
	Path string
	// Debounce is how long writes must stop before a notification is sent.
	Debounce time.Duration
}

// Watcher reports changes to a SQLite database file.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	files    map[string]struct{}
	debounce time.Duration

	changes  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for cfg.Path. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("watcher: database path is required")
	}
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("watcher: negative debounce %s", cfg.Debounce)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	base := filepath.Base(cfg.Path)
	return &Watcher{
		fs:       fsw,
		path:     cfg.Path,
		files:    map[string]struct{}{base: {}, base + "-wal": {}},
		debounce: cfg.Debounce,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the database's directory and returns the notification channel.
// At most one notification is buffered; a reader that falls behind sees one
// signal for any number of bursts.
func (w *Watcher) Start() (<-chan struct{}, error) {
	// SQLite creates and removes the WAL file, so the directory is watched
	// rather than the files themselves.
	dir := filepath.Dir(w.path)
	if err := w.fs.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	log.Debug(log.CatWatcher, "Watching database", "path", w.path, "debounce", w.debounce)
	go w.run()
	return w.changes, nil
}

// Stop ends watching. It may be called more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) run() {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.concerns(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
				log.Debug(log.CatWatcher, "Database changed", "path", w.path)
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Watch error", err, "path", w.path)
		}
	}
}

// concerns reports whether ev is a write to the database or its WAL.
func (w *Watcher) concerns(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	_, ok := w.files[filepath.Base(ev.Name)]
	return ok
}

// Package watch nudges a refresh when Claude writes session or task files.
// It only ever calls a trigger; the refresh scheduler still decides when a
// scan runs.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDelay collapses bursts of writes into one trigger.
const DefaultDelay = 500 * time.Millisecond

// Watcher watches directories and their immediate subdirectories.
type Watcher struct {
	fs      *fsnotify.Watcher
	trigger func()
	delay   time.Duration
	log     *log.Logger
}

// New watches each of dirs plus one level of subdirectories. Directories
// that do not exist yet are skipped.
func New(dirs []string, delay time.Duration, trigger func(), logger *log.Logger) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{fs: fw, trigger: trigger, delay: delay, log: logger.WithPrefix("watch")}
	for _, d := range dirs {
		w.addTree(d)
	}
	return w, nil
}

// Watched lists the directories currently watched.
func (w *Watcher) Watched() []string {
	return w.fs.WatchList()
}

func (w *Watcher) addTree(dir string) {
	if err := w.fs.Add(dir); err != nil {
		w.log.Debug("not watching", "dir", dir, "err", err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.fs.Add(filepath.Join(dir, e.Name())); err != nil {
				w.log.Debug("not watching", "dir", e.Name(), "err", err)
			}
		}
	}
}

// Run forwards debounced events to the trigger until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
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
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := w.fs.Add(ev.Name); err != nil {
						w.log.Debug("not watching", "dir", ev.Name, "err", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "err", err)

		case <-fire:
			fire = nil
			w.log.Debug("change detected")
			w.trigger()
		}
	}
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

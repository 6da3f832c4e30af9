package server

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is how long the watcher waits after the last event before
// signalling a rebuild, coalescing editor save bursts into one.
const debounceDelay = 300 * time.Millisecond

// watchDirs are the site subdirectories whose changes trigger rebuilds.
var watchDirs = []string{"content", "templates", "sass", "static"}

// Watcher bridges fsnotify events into a debounced rebuild signal.
// Trigger carries at most one pending signal; a rebuild already queued
// absorbs further changes.
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	Trigger chan struct{}
	done    chan struct{}
}

// NewWatcher watches the site's content, templates, sass, and static
// trees plus config.toml, recursively.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		root:    root,
		Trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	for _, dir := range watchDirs {
		path := filepath.Join(root, dir)
		if _, err := os.Stat(path); err == nil {
			if err := w.addTree(path); err != nil {
				fsw.Close()
				return nil, err
			}
		}
	}
	configPath := filepath.Join(root, "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if err := fsw.Add(configPath); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	go w.run()
	return w, nil
}

// Close stops the event loop, releases the underlying watcher, and
// closes Trigger so the rebuild consumer drains out.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	close(w.Trigger)
	return err
}

// run owns the blocking fsnotify loop. It exits when the watcher closes.
func (w *Watcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// New directories must be picked up so files created
			// inside them keep triggering rebuilds.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						slog.Debug("Watch add failed", "path", event.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Watch error", "error", err)

		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case w.Trigger <- struct{}{}:
			default:
			}
		}
	}
}

// addTree registers a directory and all its subdirectories.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

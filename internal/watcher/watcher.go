// Package watcher reports changes to the files stride keeps in its home
// directory, so that state written by another stride process is picked up.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the kind of file change detected.
type EventType int

const (
	EventFileWritten EventType = iota
	EventFileRemoved
)

func (t EventType) String() string {
	switch t {
	case EventFileWritten:
		return "file_written"
	case EventFileRemoved:
		return "file_removed"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is a change to one watched file.
type Event struct {
	Type EventType
	Name string // base name inside the watched directory
	Path string
}

// Watcher monitors a single directory and emits debounced file-level events.
type Watcher struct {
	dir   string
	names map[string]struct{}

	fsWatcher *fsnotify.Watcher
	events    chan Event
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once

	debouncer *debouncer

	wg sync.WaitGroup
}

const (
	defaultDebounceDelay = 100 * time.Millisecond
	defaultEventsBuffer  = 100
	defaultErrorsBuffer  = 10
)

// New creates a watcher for dir using the default debounce delay (100ms).
// When names is non-empty only those files produce events.
func New(dir string, names ...string) (*Watcher, error) {
	return NewWithDebounceDelay(dir, defaultDebounceDelay, names...)
}

// NewWithDebounceDelay creates a watcher with a configurable debounce delay.
func NewWithDebounceDelay(dir string, delay time.Duration, names ...string) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs dir: %w", err)
	}

	if err := os.MkdirAll(absDir, 0700); err != nil {
		return nil, fmt.Errorf("ensure dir exists: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		dir:       absDir,
		names:     make(map[string]struct{}, len(names)),
		fsWatcher: fsw,
		events:    make(chan Event, defaultEventsBuffer),
		errors:    make(chan error, defaultErrorsBuffer),
		done:      make(chan struct{}),
		debouncer: newDebouncer(delay),
	}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			w.names[name] = struct{}{}
		}
	}

	// Watch the directory, not the files: atomic writes replace the inode.
	if err := fsw.Add(absDir); err != nil {
		_ = fsw.Close()
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("watch %s: directory vanished", absDir)
		}
		return nil, fmt.Errorf("watch %s: %w", absDir, err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()

	return w, nil
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.errors)

	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if translated := w.translateEvent(evt); translated != nil {
				w.emitEvent(*translated)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// Dir returns the absolute path of the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Events returns a channel of debounced file events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns a channel of watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher and releases OS resources.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	w.closeOnce.Do(func() {
		close(w.done)
	})

	// Closing the underlying watcher unblocks the run loop.
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) emitEvent(e Event) {
	select {
	case w.events <- e:
	default:
		// Best-effort: drop if consumer is stalled.
	}
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) translateEvent(e fsnotify.Event) *Event {
	if w == nil || e.Name == "" {
		return nil
	}

	cleanPath := filepath.Clean(e.Name)
	if filepath.Dir(cleanPath) != w.dir {
		return nil
	}

	name := filepath.Base(cleanPath)
	if shouldIgnore(name) {
		return nil
	}
	if len(w.names) > 0 {
		if _, ok := w.names[name]; !ok {
			return nil
		}
	}

	var etype EventType
	switch {
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		etype = EventFileRemoved
		w.debouncer.removed(name)
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if isDirNoSymlink(cleanPath) {
			return nil
		}
		etype = EventFileWritten
		// Debounce only writes; a removal is always reported.
		if !w.debouncer.allowWrite(name) {
			return nil
		}
	default:
		return nil
	}

	return &Event{Type: etype, Name: name, Path: cleanPath}
}

// shouldIgnore filters OS clutter and the temp files left by atomic writes.
func shouldIgnore(name string) bool {
	switch name {
	case "", ".DS_Store", "Thumbs.db", "desktop.ini":
		return true
	}
	return strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, "~")
}

func isDirNoSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return false
	}
	return info.IsDir()
}

// Package watcher reports changes to article files under a source directory.
package watcher

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Operation is the kind of change seen on a file
type Operation int

const (
	FileCreated Operation = iota
	FileModified
	FileDeleted
)

func (o Operation) String() string {
	switch o {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a change to one watched file. A directory moved into or out of the
// tree is reported once under the directory's own path.
type Event struct {
	Path      string
	Operation Operation
}

// Watcher watches a directory tree with fsnotify, following new subdirectories.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool

	mu   sync.Mutex
	dirs map[string]bool
}

// New creates a watcher reporting files with the given extensions.
func New(extensions []string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Watcher{watcher: w, extensions: exts, dirs: make(map[string]bool)}, nil
}

// Watch starts monitoring dir and its subdirectories. The returned channel is
// closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	if _, err := w.addTree(dir); err != nil {
		return nil, err
	}

	events := make(chan Event, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				out, ok := w.translate(event)
				if !ok {
					continue
				}

				select {
				case events <- out:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watcher: %v", err)
			}
		}
	}()

	return events, nil
}

// translate maps a raw fsnotify event onto an Event, reporting false for
// changes that cannot affect the article set.
func (w *Watcher) translate(event fsnotify.Event) (Event, bool) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				return Event{}, false
			}
			files, err := w.addTree(event.Name)
			if err != nil {
				log.Printf("watcher: failed to watch %s: %v", event.Name, err)
			}
			// Files that arrive inside a moved-in directory raise no events of their own.
			return Event{Path: event.Name, Operation: FileCreated}, files > 0
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetTree(event.Name) {
		return Event{Path: event.Name, Operation: FileDeleted}, true
	}

	if !w.watched(event.Name) {
		return Event{}, false
	}

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		return Event{Path: event.Name, Operation: FileCreated}, true
	case event.Op&fsnotify.Write == fsnotify.Write:
		return Event{Path: event.Name, Operation: FileModified}, true
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Event{Path: event.Name, Operation: FileDeleted}, true
	default:
		return Event{}, false
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// addTree watches root and every non-hidden directory below it, returning
// how many watched files it passed on the way.
func (w *Watcher) addTree(root string) (int, error) {
	files := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if w.watched(path) {
				files++
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
	return files, err
}

// forgetTree drops path and its subdirectories from the watch list. It
// reports whether path was a watched directory.
func (w *Watcher) forgetTree(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
			// Removed directories drop their watch on their own.
			_ = w.watcher.Remove(dir)
		}
	}
	return true
}

func (w *Watcher) watched(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return w.extensions[strings.ToLower(filepath.Ext(base))]
}

package internal

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports new and changed files below an input directory. Hidden
// and partial files are ignored, as is an excluded subtree (the output
// directory when it lives inside the input). Relevant events are only
// consumed through Settled.
type Watcher struct {
	watcher *fsnotify.Watcher
	exclude string
	events  chan struct{}
	errors  chan error
	done    chan struct{}
}

func NewWatcher(root, exclude string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsWatcher,
		exclude: exclude,
		events:  make(chan struct{}, 1),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.processEvents()
	return w, nil
}

// addRecursive adds a directory and all its subdirectories to the watcher
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(path) || (path != root && isHidden(path)) {
			return fs.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) excluded(path string) bool {
	if w.exclude == "" {
		return false
	}
	rel, err := filepath.Rel(w.exclude, path)
	return err == nil && filepath.IsLocal(rel)
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.excluded(event.Name) || isHidden(event.Name) || isPartial(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Create):
				// New directories must be watched too; files already
				// inside them are picked up by the next run's walk.
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.sendError(err)
					}
				}
			case event.Has(fsnotify.Write), event.Has(fsnotify.Rename):
			default:
				continue
			}

			select {
			case w.events <- struct{}{}:
			default:
				// A signal is pending already.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Settled delivers one signal each time events stop arriving for quiet.
// The channel closes when ctx ends.
func (w *Watcher) Settled(ctx context.Context, quiet time.Duration) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		timer := time.NewTimer(quiet)
		timer.Stop()
		pending := false
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case _, ok := <-w.events:
				if !ok {
					return
				}
				pending = true
				timer.Reset(quiet)
			case <-timer.C:
				if !pending {
					continue
				}
				pending = false
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close stops the watcher and cleans up resources
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// isPartial matches files that are still being written by common tools.
func isPartial(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range []string{".tmp", ".part", ".crdownload", "~"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Package filewatcher implements the optional watch-folder ingestion
// trigger: fsnotify-backed monitoring of a directory, filtered to
// extensions the Document Parser understands, feeding the Ingestion
// Orchestrator automatically as files land. Adapted from the teacher's
// FSNotifyWatcher (internal/adapters/filewatcher/fsnotify.go).
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/baiyu-ai/ragspace/internal/domain/ports"
	"github.com/fsnotify/fsnotify"
)

// defaultExtensions is the document subset of the Document Parser's
// formats; the extra text and source-code extensions the parser also
// reads (.markdown, .text, .go, .py, ...) are not watched by default.
var defaultExtensions = []string{
	".pdf", ".doc", ".docx", ".csv", ".html", ".htm", ".txt", ".md",
}

// Watcher implements ports.FileWatcher using fsnotify.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
}

// New creates a Watcher. An empty extensions list falls back to
// defaultExtensions.
func New(extensions []string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	return &Watcher{watcher: w, extensions: extensions}, nil
}

// Watch starts monitoring dir and emits FileEvents for watched-extension
// files until ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

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
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&fsnotify.Remove == fsnotify.Remove:
					op = ports.FileDeleted
				default:
					continue
				}

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

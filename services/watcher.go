package services

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LocalSessionID is the session a watched PDF is loaded into.
const LocalSessionID = "local"

// DefaultWatchDebounce is how long the file must stay quiet before a reload.
const DefaultWatchDebounce = 300 * time.Millisecond

// DocumentWatcher keeps a session in sync with a PDF on disk: the file is
// uploaded once at start and again whenever it is written or re-created.
// A burst of events (truncate, then write) results in a single reload.
type DocumentWatcher struct {
	session  *Session
	path     string
	Debounce time.Duration
}

func NewDocumentWatcher(session *Session, path string) (*DocumentWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &DocumentWatcher{session: session, path: abs, Debounce: DefaultWatchDebounce}, nil
}

// Watch blocks until ctx is cancelled.
func (w *DocumentWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace a file by renaming a temp file over it, so the
	// directory is watched rather than the file.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Printf("WATCHER: Watching %s", w.path)

	w.load(ctx)

	reload := time.NewTimer(time.Hour)
	reload.Stop()
	defer reload.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				reload.Reset(w.Debounce)
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				log.Printf("WATCHER: %s removed/renamed. Keeping the last processed version.", event.Name)
			}
		case <-reload.C:
			log.Printf("WATCHER: %s modified/created. Re-processing...", w.path)
			w.load(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WATCHER ERROR: %v", err)
		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			return nil
		}
	}
}

func (w *DocumentWatcher) load(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		log.Printf("WATCHER WARN: Could not read %s: %v", w.path, err)
		return
	}
	// A zero-length file is a write in progress; the current index is kept.
	if len(data) == 0 {
		log.Printf("WATCHER: %s is empty, waiting for the next write.", w.path)
		return
	}
	resp, err := w.session.Upload(ctx, filepath.Base(w.path), data)
	switch {
	case errors.Is(err, ErrSessionBusy):
		log.Printf("WATCHER WARN: Session %s is busy, skipping this change.", w.session.ID)
	case err != nil:
		log.Printf("WATCHER ERROR: Failed to process %s: %v", w.path, err)
	case resp.AlreadyProcessed:
		log.Printf("WATCHER: %s is unchanged.", w.path)
	default:
		log.Printf("WATCHER: %s indexed into session %s (%d chunks).", w.path, w.session.ID, resp.Document.ChunkCount)
	}
}

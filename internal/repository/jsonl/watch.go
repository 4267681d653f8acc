// Provides reloading of a store modified by another process.

package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/georepo/internal/errs"
	"github.com/maruel/ksid"
	"golang.org/x/time/rate"
)

// reloadInterval bounds how often Watch rereads the file.
const reloadInterval = 100 * time.Millisecond

// Watch reloads the store whenever its file is changed by someone else, until
// ctx is canceled.
//
// The parent directory is watched so atomic replacements are seen. Writes
// made through this Store are recognized by their revision and size and do
// not trigger a reload. On a failed reload the previous content is kept.
func (s *Store[T]) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Storage("failed to create file watcher", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return errs.Storage(fmt.Sprintf("failed to watch %s", dir), err)
	}
	target := filepath.Clean(s.path)
	limiter := rate.NewLimiter(rate.Every(reloadInterval), 1)
	go func() {
		defer func() {
			_ = w.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
					continue
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				reloaded, err := s.reloadIfChanged()
				if err != nil {
					slog.WarnContext(ctx, "failed to reload records", "path", s.path, "err", err)
				}
				if (reloaded || err != nil) && s.onReload != nil {
					s.onReload(err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "file watcher error", "path", s.path, "err", err)
			}
		}
	}()
	return nil
}

// reloadIfChanged reloads the file unless it is what this store last wrote or
// read.
func (s *Store[T]) reloadIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := os.Stat(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, errs.Storage(fmt.Sprintf("failed to stat %s", s.path), err)
		}
		if s.revision == 0 && s.size == 0 {
			return false, nil
		}
		return true, s.load()
	}
	if st.Size() == s.size && s.peekRevision() == s.revision {
		return false, nil
	}
	return true, s.load()
}

// peekRevision returns the revision in the file header, 0 if unreadable.
func (s *Store[T]) peekRevision() ksid.ID {
	f, err := os.Open(s.path)
	if err != nil {
		return 0
	}
	defer func() {
		_ = f.Close()
	}()
	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return 0
	}
	var h header
	if json.Unmarshal(line, &h) != nil {
		return 0
	}
	return h.Revision
}

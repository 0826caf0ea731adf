package rules

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"celestetracker.ai/internal/tracker/catalog"
)

// Watch reloads the rules file at path whenever it is written or replaced and
// hands each successful translation to onChange. It blocks until ctx is done.
//
// The parent directory is watched rather than the file so editors that save
// by rename keep triggering reloads. Invalid documents are logged and skipped.
func Watch(ctx context.Context, path string, cat *catalog.Catalog, logger *log.Logger, onChange func(Translation)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			doc, err := Load(path)
			if err != nil {
				if logger != nil {
					logger.Printf("rules_reload_failed path=%s err=%v", path, err)
				}
				continue
			}
			t := Translate(doc, cat)
			if logger != nil {
				logger.Printf("rules_reloaded path=%s objectives=%d unmapped=%d", path, len(t.Keys), len(t.Unmapped))
			}
			onChange(t)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Printf("rules_watch_error path=%s err=%v", path, err)
			}
		}
	}
}

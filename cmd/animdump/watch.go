package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long the input must stay unchanged before it is
// decoded again. Some writers truncate the file before writing the new
// content.
const watchDebounce = 50 * time.Millisecond

// watch calls fn each time the file at path is written or replaced, until
// ctx is done. Errors from fn are logged and do not stop watching.
func watch(ctx context.Context, path string, debounce time.Duration, fn func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory so that files replaced by a rename are seen.
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debugf("%s: %s", ev.Name, ev.Op)
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watching %s: %v", path, err)
		case <-timer.C:
			if err := fn(); err != nil {
				logger.Errorf("%s: %v", path, err)
			}
		}
	}
}

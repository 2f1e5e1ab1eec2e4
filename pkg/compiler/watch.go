package compiler

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

// debounce groups the burst of events an editor save produces
const debounce = 100 * time.Millisecond

// Watch calls rebuild once, then again whenever path is written, until ctx
// is done. The directory is watched rather than the file so that editors
// that replace the file on save keep triggering rebuilds. Errors from
// rebuild are reported to onError and do not stop the watch.
func Watch(ctx context.Context, path string, rebuild func() error, onError func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	log := logger.With("path", abs)
	run := func() {
		if err := rebuild(); err != nil && onError != nil {
			onError(err)
		}
	}
	run()

	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Debug("Input changed", "op", ev.Op.String())
				timer = time.After(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("Watch error", "error", err)
		case <-timer:
			timer = nil
			run()
		}
	}
}

package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gost/core/logger"
)

const reloadDebounce = 500 * time.Millisecond

// watcher re-applies the config file after it changed.
type watcher struct {
	watcher *fsnotify.Watcher
	file    string
	reload  func() error
}

func newWatcher(file string, reload func() error) (*watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	file = filepath.Clean(file)
	// editors replace the file, watch the directory instead.
	if err := w.Add(filepath.Dir(file)); err != nil {
		w.Close()
		return nil, err
	}
	return &watcher{
		watcher: w,
		file:    file,
		reload:  reload,
	}, nil
}

func (w *watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	log := logger.Default().WithFields(map[string]any{"kind": "config"})

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := w.reload(); err != nil {
					log.Errorf("reload %s: %v", w.file, err)
					return
				}
				log.Infof("reload %s: OK", w.file)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("watch: %v", err)
		}
	}
}

package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Bucknalla/go-truck-tracker/route"
)

// WatchRoute reloads the route file whenever it changes on disk and hands the
// new route to onChange. Files that fail to load are logged and skipped. The
// returned function stops watching.
func WatchRoute(path string, onChange func(route.Route)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch route: %w", err)
	}

	// Watch the directory so editors that replace the file are seen too.
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch route: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch route %q: %w", path, err)
	}

	go func() {
		for {
			select {
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != abs || !(e.Has(fsnotify.Write) || e.Has(fsnotify.Create)) {
					continue
				}
				r, err := route.LoadRouteFile(abs)
				if err != nil {
					log.Printf("route reload failed: %v", err)
					continue
				}
				log.Printf("route reloaded from %s (%d points)", path, len(r))
				onChange(r)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("route watcher error: %v", err)
			}
		}
	}()

	return watcher.Close, nil
}

package auth

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher reloads the directory whenever the user file changes. Falls
// back to a 60s polling loop when fsnotify is unavailable.
func (d *Directory) StartWatcher(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false

	if err != nil {
		log.Printf("Directory watcher: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(path); err != nil {
		log.Printf("Directory watcher: failed to watch %s (%v), falling back to polling", path, err)
		usePolling = true
		watcher.Close()
	}

	if usePolling {
		go d.pollLoop(ctx, path)
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Brief debounce; editors often write in two steps.
					time.Sleep(100 * time.Millisecond)
					if err := d.LoadFile(path); err != nil {
						log.Printf("Directory watcher: reload failed: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Directory watcher error: %v", err)
			}
		}
	}()
}

func (d *Directory) pollLoop(ctx context.Context, path string) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.LoadFile(path); err != nil {
				log.Printf("Directory poll: reload failed: %v", err)
			}
		}
	}
}

package scene

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"

	"github.com/mogaika/assetpipe/asset"
)

// Watch drops cached decodes of files in dir as they change on disk, so the
// next Load decodes them again. It returns once the watcher is set up and
// keeps running until ctx is done.
func (m *Manager) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return asset.NewIOError("watch", dir, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return asset.NewIOError("watch", dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					if n := m.Invalidate(event.Name); n != 0 {
						log.Printf("[scene] %s changed, dropped %d cached decodes", event.Name, n)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[scene] Watcher error: %v", err)
			}
		}
	}()
	return nil
}

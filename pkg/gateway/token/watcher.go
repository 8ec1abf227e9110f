package token

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/tollgate/internal/logger"
)

// watchKey watches the key file's directory so atomic replacement (write to
// a temp file, then rename over the key) is observed as well as in-place
// writes.
func (v *Verifier) watchKey() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create key watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(v.keyPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch key directory: %w", err)
	}

	v.watcher = watcher
	v.doneCh = make(chan struct{})
	go v.watchLoop()

	logger.Info("Public key hot-reload started", "path", v.keyPath)
	return nil
}

func (v *Verifier) watchLoop() {
	defer close(v.doneCh)

	for {
		select {
		case event, ok := <-v.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != v.keyPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			v.reloadKey()

		case err, ok := <-v.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Public key watcher error", "error", err)
		}
	}
}

// reloadKey swaps in the key from disk. A key that fails to load leaves the
// previous key in place, so a botched rotation degrades to stale instead of
// broken.
func (v *Verifier) reloadKey() {
	key, err := loadPublicKey(v.keyPath, v.algorithm)
	if err != nil {
		logger.Error("Public key reload failed, keeping previous key",
			"path", v.keyPath,
			"error", err,
		)
		return
	}

	v.mu.Lock()
	v.key = key
	v.mu.Unlock()

	logger.Info("Public key reloaded", "path", v.keyPath)
}

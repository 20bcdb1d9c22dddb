// Package watcher monitors the configuration file for changes and hot-reloads
// runtime-tunable settings (API key, model name filters, debug and request
// logging flags) without a restart.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/luispater/VertexBridge/internal/config"
)

// Watcher watches the config file and invokes the reload callback with the
// freshly loaded configuration.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu             sync.Mutex
	lastConfigHash string
}

// NewWatcher creates a new file watcher instance.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}, nil
}

// Start begins watching the configuration file until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.configPath); err != nil {
		log.Errorf("failed to watch config file %s: %v", w.configPath, err)
		return err
	}
	log.Debugf("watching config file: %s", w.configPath)

	go w.processEvents(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name != w.configPath || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		// Editors often truncate before writing; wait for the real content.
		log.Debug("ignoring empty config file write event")
		return
	}
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	unchanged := w.lastConfigHash != "" && w.lastConfigHash == newHash
	w.mu.Unlock()
	if unchanged {
		log.Debug("config file content unchanged, skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	newConfig, errLoad := config.LoadConfig(w.configPath)
	if errLoad != nil {
		// Keep running with the previous configuration.
		log.Errorf("failed to reload config, keeping current settings: %v", errLoad)
		return
	}

	w.mu.Lock()
	w.lastConfigHash = newHash
	w.mu.Unlock()
	w.reloadCallback(newConfig)
}

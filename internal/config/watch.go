package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// Watcher reloads a RunConfig whenever the top-level file backing it changes
// on disk. Only that file is watched: an edit to one of its $include
// fragments does not trigger a reload. Reload failures are logged and leave
// the last good config in place — a broken edit must never tear down a
// running orchestrator.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	current *orchestrator.RunConfig
}

// NewWatcher loads path once and starts watching it for changes.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadRunConfig(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{path: path, watcher: fsw, logger: logger, current: cfg}, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *orchestrator.RunConfig {
	return w.current
}

// Run blocks, reloading the config on every write/create event until the
// watcher is closed. onReload, if non-nil, is invoked after each successful
// reload with the new config.
func (w *Watcher) Run(onReload func(*orchestrator.RunConfig)) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadRunConfig(w.path)
			if err != nil {
				w.logger.Error("config reload failed; keeping previous config", "path", w.path, "error", err)
				continue
			}
			w.current = cfg
			w.logger.Info("config reloaded", "path", w.path)
			if onReload != nil {
				onReload(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

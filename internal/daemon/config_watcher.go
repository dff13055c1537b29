package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/intrahub/internal/config"
	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

// reloadDebounce absorbs the burst of events an editor save produces
// (write, chmod, rename) into one reload.
const reloadDebounce = 2 * time.Second

// ConfigWatcher reloads the daemon configuration when the file changes
// on disk. It watches the containing directory rather than the file
// itself, so atomic replaces (write temp + rename) are still seen.
type ConfigWatcher struct {
	path    string
	daemon  *Daemon
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewConfigWatcher prepares a watcher for the given configuration file.
func NewConfigWatcher(configPath string, daemon *Daemon) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryDaemon, huberr.SeverityError, "failed to resolve config path").
			WithContext("path", configPath)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategoryDaemon, huberr.SeverityError, "failed to create file watcher")
	}
	return &ConfigWatcher{
		path:    absPath,
		daemon:  daemon,
		watcher: watcher,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; events are handled on
// a background goroutine until Stop or context cancelation.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return huberr.Wrap(err, huberr.CategoryDaemon, huberr.SeverityError, "failed to watch config directory").
			WithContext("path", dir)
	}
	slog.Info("Watching configuration file", logfields.Path(w.path))
	go w.run(ctx)
	return nil
}

// Stop ends watching and releases the underlying notifier.
func (w *ConfigWatcher) Stop(context.Context) error {
	close(w.done)
	return w.watcher.Close()
}

// run consumes filesystem events, collapsing rapid successive changes
// into a single debounced reload.
func (w *ConfigWatcher) run(ctx context.Context) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Rename):
				slog.Debug("Configuration file changed", logfields.Path(event.Name))
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, func() { w.reload(ctx) })
			case event.Op.Has(fsnotify.Remove):
				slog.Warn("Configuration file removed, keeping current configuration", logfields.Path(event.Name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Configuration watcher error", logfields.Error(err))
		}
	}
}

// reload parses the file and hands it to the daemon. A file that fails
// to load or validate leaves the running configuration untouched.
func (w *ConfigWatcher) reload(ctx context.Context) {
	cfg, err := config.Load(w.path)
	if err != nil {
		slog.Error("Configuration reload failed, keeping current configuration",
			logfields.Path(w.path), logfields.Error(err))
		return
	}
	if err := w.daemon.ReloadConfig(ctx, cfg); err != nil {
		slog.Error("Configuration rejected, keeping current configuration",
			logfields.Path(w.path), logfields.Error(err))
		return
	}
	slog.Info("Configuration reloaded", logfields.Path(w.path))
}

package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads configuration from disk whenever the backing file
// changes, so settings that can safely change at runtime (log level) are
// picked up without a restart.
type Watcher struct {
	fsw    *fsnotify.Watcher
	path   string
	logger *logrus.Logger
	onLoad func(*Config)
	done   chan struct{}
}

// Watch starts watching path for writes and renames (the two events an
// editor or a `kubectl cp`/ConfigMap remount produce) and invokes onLoad
// with the freshly parsed and validated Config on each one. A reload that
// fails validation is logged and discarded; the previous in-memory config
// keeps running.
func Watch(path string, logger *logrus.Logger, onLoad func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, path: path, logger: logger, onLoad: onLoad, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.WithError(err).WithField("path", w.path).Warn("config reload failed, keeping previous configuration")
				continue
			}
			w.logger.WithField("path", w.path).Info("configuration reloaded")
			w.onLoad(cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("config watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher. Safe to call once; implements
// controller.ShutdownFunc's synchronous-cleanup shape without needing a
// context, since closing the fsnotify handle never blocks on I/O.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeepSignSecurity/trackpad-go/memorywriter"
)

// editors replace files instead of writing in place, so several events
// arrive per save; collect them and reload once
const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the config file on change and hands the result to a
// callback. Reload errors are logged and the previous config stays in
// effect.
type Watcher struct {
	path     string
	mw       *memorywriter.MemoryWriter
	onReload func(*Config)

	fs   *fsnotify.Watcher
	stop chan struct{}
}

func Watch(path string, mw *memorywriter.MemoryWriter, onReload func(*Config)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory, the file itself may be renamed away
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close() //nolint:errcheck
		return nil, err
	}

	w := &Watcher{
		path:     path,
		mw:       mw,
		onReload: onReload,
		fs:       fs,
		stop:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-w.stop:
			return

		case <-timer.C:
			if pending {
				pending = false
				w.reload()
			}

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(reloadDebounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.mw.Log("watch error " + err.Error())
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.mw.Log("reload failed " + err.Error())
		return
	}
	w.mw.Log("reloaded " + w.path)
	w.onReload(cfg)
}

func (w *Watcher) Close() error {
	close(w.stop)
	return w.fs.Close()
}

package ui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

type reloadMsg struct{}

// fileWatcher reports writes to the lecture source so it can be
// re-ingested.
type fileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
}

func newFileWatcher(path string) *fileWatcher {
	if path == "" {
		return nil
	}
	path, err := filepath.Abs(path)
	if err != nil {
		log.Error("error resolving watched path", "error", err)
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
		return nil
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		_ = w.Close()
		return nil
	}
	log.Info("fsnotify watching dir", "dir", filepath.Dir(path))
	return &fileWatcher{path: path, watcher: w}
}

// wait blocks until the watched file changes.
func (f *fileWatcher) wait() tea.Msg {
	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != f.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "file", f.path, "error", err)
		}
	}
}

func (f *fileWatcher) close() {
	if err := f.watcher.Close(); err != nil {
		log.Error("fsnotify fail to close watcher", "error", err)
	}
}

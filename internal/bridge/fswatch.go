package bridge

import (
	"github.com/fsnotify/fsnotify"
)

// fsnotifyWatcher adapts fsnotify.Watcher to the bridge's fs.watch
// contract. fsnotify watches real host paths; against an in-memory
// VFS it degrades to watching the host path of the same name, which
// only observes real filesystem activity, not VFS-internal writes.
// Grounded on the "enableJIT"/config-adjacent third-party watch
// surface spec.md §4.3(b) names explicitly (fs.watch), using the
// teacher's dependency on fsnotify for filesystem events.
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher(path string) (*fsnotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) run(emit func(eventType, filename string)) {
	for {
		select {
		case ev, ok := <-f.w.Events:
			if !ok {
				return
			}
			emit(ev.Op.String(), ev.Name)
		case _, ok := <-f.w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (f *fsnotifyWatcher) close() {
	f.w.Close()
}

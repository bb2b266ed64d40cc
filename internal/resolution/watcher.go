package resolution

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Table from disk whenever its backing file changes,
// without needing a process restart. Reload semantics are identical
// to the initial load: last-wins merge against whatever is already in
// the table, so a partially-applied concurrent edit can never erase
// previously loaded entries.
type Watcher struct {
	table   *Table
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching the directory containing path for
// changes to that file. The initial load has already happened or is
// the caller's responsibility; NewWatcher only arranges for reloads.
func NewWatcher(table *Table, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		table:   table,
		path:    path,
		watcher: fsw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.table.LoadFile(w.path); err != nil {
				log.Printf("resolution: reload of %s failed: %v", w.path, err)
				continue
			}
			log.Printf("resolution: reloaded %s (%d entries)", w.path, w.table.Size())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("resolution: watch error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

package inventory

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher wakes the scheduler early when new files land in a watched data
// directory, instead of waiting for the next periodic tick. It never
// replaces the periodic scan: the Inventory Snapshot contract is still
// satisfied purely by directory comparison on the next Snapshot call, this
// only shortens how long a freshly-flushed file waits before its cycle.
// Grounded in the teacher's internal/sync/observer_local.go FsWatcher/
// trySend non-blocking-send-with-drop idiom.
type Watcher struct {
	fsw    *fsnotify.Watcher
	wake   chan struct{}
	logger *slog.Logger
}

// NewWatcher starts watching the given root directories non-recursively at
// the top level (each directory's own events, plus its immediate group
// subdirectories, which is where files actually land).
func NewWatcher(roots []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{fsw: fsw, wake: make(chan struct{}, 1), logger: logger}

	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()

			return nil, err
		}
	}

	go w.run()

	return w, nil
}

// addTree watches root and its immediate subdirectories (StorageGroup
// directories), where new DataFiles are actually written.
func (w *Watcher) addTree(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return err
	}

	entries, err := readDirNames(root)
	if err != nil {
		// root itself is watched; if its subdirectories cannot be listed,
		// they go unwatched and the periodic scan still covers them.
		w.logger.Debug("inventory watcher: skipping subdirectory scan", "root", root, "error", err)

		return nil
	}

	for _, sub := range entries {
		_ = w.fsw.Add(sub) // best-effort: a group dir removed mid-scan isn't fatal.
	}

	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.trySend()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.logger.Warn("inventory watcher error", "error", err)
		}
	}
}

// trySend is a non-blocking send: if a wake is already pending, dropping a
// duplicate is harmless, the next cycle will see every accumulated change
// anyway (the periodic scan is a full diff, not an event replay).
func (w *Watcher) trySend() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Wake returns the channel the scheduler selects on for early wakeups.
func (w *Watcher) Wake() <-chan struct{} {
	return w.wake
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func readDirNames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(root, e.Name()))
		}
	}

	return out, nil
}

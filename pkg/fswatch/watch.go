package fswatch

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
)

var fs = afero.NewOsFs()

// Op describes what happened to a path.
type Op uint8

const (
	// Create means the path was created.
	Create Op = iota + 1
	// Write means the contents of the path changed.
	Write
	// Remove means the path was deleted or renamed away.
	Remove
	// Chmod means the metadata of the path changed.
	Chmod
)

// IsDelete returns whether the event means the path no longer exists.
func (op Op) IsDelete() bool {
	return op == Remove
}

func (op Op) String() string {
	switch op {
	case Create:
		return "create"
	case Write:
		return "write"
	case Remove:
		return "remove"
	case Chmod:
		return "chmod"
	default:
		return "unknown"
	}
}

// Event is a change notification for a single path.
type Event struct {
	Path string
	Op   Op
}

// Options configures a Watcher.
type Options struct {
	// Skip returns whether `path` should be ignored. Skipped directories are
	// never watched, and skipped paths never generate events. May be nil.
	Skip func(path string, isDir bool) bool

	// NoRecurse returns whether the directory at `path` should be reported
	// on, but not watched inside. May be nil.
	NoRecurse func(path string) bool
}

// Watcher delivers change notifications for every path under a root.
type Watcher struct {
	root    string
	opts    Options
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
}

// Watch starts watching `root` recursively. Because fsnotify doesn't watch
// directories recursively, we walk the tree and add every directory, and add
// new directories as they're created. Symlinked directories are never
// followed.
func Watch(root string, opts Options) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	w := &Watcher{
		root:    filepath.Clean(root),
		opts:    opts,
		watcher: watcher,
		events:  make(chan Event, 1024),
		errors:  make(chan error, 16),
	}

	if err := watcher.Add(w.root); err != nil {
		// Close the watcher so that we release the file handles.
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return nil, errors.WithContext(err, "watch root")
	}

	if err := w.watchTree(w.root); err != nil {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return nil, errors.WithContext(err, "watch subdirectories")
	}

	go w.run()
	return w, nil
}

// Root returns the directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Events returns the channel of change notifications. It's closed after
// Close is called.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns errors reported by the underlying notification mechanism.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops watching. Pending events are dropped.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.errors)

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				log.WithError(err).Warn("File watcher error")
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}

	isDir, isLink := false, false
	if !op.IsDelete() {
		fi, err := lstat(path)
		if err != nil {
			// The path was removed before we got to it. The remove event
			// will follow.
			return
		}
		isDir = fi.IsDir()
		isLink = fi.Mode()&os.ModeSymlink != 0
	}

	if w.skip(path, isDir) {
		return
	}

	if op == Create && isDir && !isLink && !w.noRecurse(path) {
		if err := w.watcher.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Warn(
				"Failed to watch new directory. Changes within it won't be synced.")
		} else if err := w.watchTree(path); err != nil {
			log.WithError(err).WithField("path", path).Warn(
				"Failed to watch new subdirectories")
		}
	}

	w.events <- Event{Path: path, Op: op}
}

// watchTree adds watches for every directory beneath `dir`.
func (w *Watcher) watchTree(dir string) error {
	return afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			// Entries can disappear while we're walking.
			if os.IsNotExist(err) {
				return nil
			}
			if path == dir {
				return errors.WithContext(err, "walk error")
			}
			log.WithError(err).WithField("path", path).Warn(
				"Failed to read directory. Changes within it won't be synced.")
			return nil
		}

		if path == dir || !fi.IsDir() {
			return nil
		}

		if w.skip(path, true) {
			return filepath.SkipDir
		}

		if w.noRecurse(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Warn(
				"Failed to watch directory. Changes within it won't be synced.")
			return filepath.SkipDir
		}
		return nil
	})
}

func (w *Watcher) skip(path string, isDir bool) bool {
	return w.opts.Skip != nil && w.opts.Skip(path, isDir)
}

func (w *Watcher) noRecurse(path string) bool {
	return w.opts.NoRecurse != nil && w.opts.NoRecurse(path)
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return Remove
	case op&fsnotify.Create != 0:
		return Create
	case op&fsnotify.Write != 0:
		return Write
	case op&fsnotify.Chmod != 0:
		return Chmod
	}
	return 0
}

func lstat(path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}

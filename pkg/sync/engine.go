package sync

import (
	"path/filepath"
	goSync "sync"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/fswatch"
	"github.com/sidkik/samar/pkg/mirror"
	"github.com/sidkik/samar/pkg/rules"
)

// Resetter rebuilds the mirror from scratch. It's implemented by
// mirror.Builder.
type Resetter interface {
	Cleanup()
	Initialize(dryRun bool) error
}

// direction describes one way of propagating changes.
type direction struct {
	name string

	// from is the root the events come from, and to is the root they're
	// applied to.
	from, to string

	// echoes holds the marks for changes the engine made to `from`, and
	// marks holds the marks for changes it's about to make to `to`.
	echoes, marks *pendingSet

	toMirror bool
}

// Engine propagates changes between a workspace and its mirror.
type Engine struct {
	sourceRoot string
	mirrorRoot string
	rules      *rules.Evaluator
	builder    Resetter
	strict     bool

	pendingInMirror *pendingSet
	pendingInSource *pendingSet

	toMirror, toSource direction

	// resetLock is held for reading while a change is applied, and for
	// writing while the mirror is rebuilt.
	resetLock goSync.RWMutex

	// lifecycleLock serializes Start, Stop and Reset.
	lifecycleLock goSync.Mutex
	started       bool
	sourceWatcher *fswatch.Watcher
	mirrorWatcher *fswatch.Watcher
	sourceDone    chan struct{}
	mirrorDone    chan struct{}
}

// NewEngine creates an Engine that syncs `sourceRoot` with `mirrorRoot`. The
// mirror must already be materialized before Start is called.
func NewEngine(sourceRoot, mirrorRoot string, evaluator *rules.Evaluator,
	builder Resetter, strict bool) *Engine {
	return newEngine(sourceRoot, mirrorRoot, evaluator, builder, strict, clockwork.NewRealClock())
}

func newEngine(sourceRoot, mirrorRoot string, evaluator *rules.Evaluator,
	builder Resetter, strict bool, clock clockwork.Clock) *Engine {

	e := &Engine{
		sourceRoot:      filepath.Clean(sourceRoot),
		mirrorRoot:      filepath.Clean(mirrorRoot),
		rules:           evaluator,
		builder:         builder,
		strict:          strict,
		pendingInMirror: newPendingSet(clock),
		pendingInSource: newPendingSet(clock),
	}
	e.toMirror = direction{
		name:     "Sync -> Shadow",
		from:     e.sourceRoot,
		to:       e.mirrorRoot,
		echoes:   e.pendingInSource,
		marks:    e.pendingInMirror,
		toMirror: true,
	}
	e.toSource = direction{
		name:   "Sync -> Real",
		from:   e.mirrorRoot,
		to:     e.sourceRoot,
		echoes: e.pendingInMirror,
		marks:  e.pendingInSource,
	}
	return e
}

// Strict returns whether forbidden files in the mirror are destroyed.
func (e *Engine) Strict() bool {
	return e.strict
}

// SourceRoot returns the workspace root.
func (e *Engine) SourceRoot() string {
	return e.sourceRoot
}

// MirrorRoot returns the mirror root.
func (e *Engine) MirrorRoot() string {
	return e.mirrorRoot
}

// Start sweeps the mirror for forbidden files if strict mode is on, then
// starts watching both trees. It returns once the watches are registered;
// changes are handled in the background until Stop is called.
func (e *Engine) Start() error {
	e.lifecycleLock.Lock()
	defer e.lifecycleLock.Unlock()

	if e.strict {
		log.Warn("STRICT MODE ACTIVE: Secrets in the shadow workspace will be destroyed.")
		if err := e.strictSweep(); err != nil {
			return errors.WithContext(err, "strict sweep")
		}
	}

	sourceWatcher, err := fswatch.Watch(e.sourceRoot, fswatch.Options{
		Skip:      e.skipSource,
		NoRecurse: e.isHeavyDir,
	})
	if err != nil {
		return errors.WithContext(err, "watch workspace")
	}
	e.sourceWatcher = sourceWatcher
	e.sourceDone = make(chan struct{})
	go e.consume(sourceWatcher, e.handleSourceChange, e.sourceDone)

	if err := e.watchMirror(); err != nil {
		e.stopWatcher(&e.sourceWatcher, e.sourceDone)
		return err
	}

	e.started = true
	log.Info("Watchers started. Syncing active...")
	return nil
}

func (e *Engine) watchMirror() error {
	mirrorWatcher, err := fswatch.Watch(e.mirrorRoot, fswatch.Options{
		Skip: func(path string, _ bool) bool {
			return mirror.IsScratch(path)
		},
	})
	if err != nil {
		return errors.WithContext(err, "watch mirror")
	}
	e.mirrorWatcher = mirrorWatcher
	e.mirrorDone = make(chan struct{})
	go e.consume(mirrorWatcher, e.handleMirrorChange, e.mirrorDone)
	return nil
}

// Stop stops watching both trees, and waits for the changes that were
// already received to be applied. It must be called before the mirror is
// removed so that the removal isn't propagated to the workspace.
func (e *Engine) Stop() {
	e.lifecycleLock.Lock()
	defer e.lifecycleLock.Unlock()

	e.started = false
	e.stopWatcher(&e.sourceWatcher, e.sourceDone)
	e.stopWatcher(&e.mirrorWatcher, e.mirrorDone)
}

func (e *Engine) stopWatcher(w **fswatch.Watcher, done chan struct{}) {
	if *w == nil {
		return
	}
	if err := (*w).Close(); err != nil {
		log.WithError(err).Warn("Failed to close file watcher")
	}
	<-done
	*w = nil
}

// Reset rebuilds the mirror from the current state of the workspace. The
// mirror watcher is stopped during the rebuild so that removing the old
// mirror isn't mistaken for the agent deleting files.
func (e *Engine) Reset() error {
	e.lifecycleLock.Lock()
	defer e.lifecycleLock.Unlock()

	e.stopWatcher(&e.mirrorWatcher, e.mirrorDone)

	e.resetLock.Lock()
	e.builder.Cleanup()
	initErr := e.builder.Initialize(false)
	e.pendingInMirror.Clear()
	e.pendingInSource.Clear()
	e.resetLock.Unlock()

	// The mirror is watched again even after a failed rebuild.
	var watchErr error
	if e.started {
		watchErr = e.watchMirror()
	}

	if initErr != nil {
		if watchErr != nil {
			log.WithError(watchErr).Error("Failed to watch the shadow workspace after a failed reset")
		}
		return errors.WithContext(initErr, "initialize mirror")
	}
	if watchErr != nil {
		return watchErr
	}
	log.WithField("mirror", e.mirrorRoot).Info("Shadow workspace reset")
	return nil
}

func (e *Engine) consume(w *fswatch.Watcher, handle func(fswatch.Event), done chan struct{}) {
	defer close(done)

	events, errs := w.Events(), w.Errors()
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			handle(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.WithError(err).WithField("root", w.Root()).Warn("File watcher error")
		}
	}
}

// skipSource filters workspace notifications at the source, so that excluded
// paths are never watched. Heavy directories are reported so that they can be
// linked, even if they're excluded.
func (e *Engine) skipSource(path string, isDir bool) bool {
	if mirror.IsScratch(path) {
		return true
	}
	// A removed path is reported with isDir false, so heavy names that no
	// longer exist are let through for handle to sort out.
	if e.rules.IsHeavy(filepath.Base(path)) && (isDir || !exists(path)) {
		return false
	}
	return e.rules.Match(path, isDir)
}

func (e *Engine) isHeavyDir(path string) bool {
	return e.rules.IsHeavy(filepath.Base(path))
}

func (e *Engine) handleSourceChange(ev fswatch.Event) {
	e.handle(&e.toMirror, ev)
}

func (e *Engine) handleMirrorChange(ev fswatch.Event) {
	e.handle(&e.toSource, ev)
}

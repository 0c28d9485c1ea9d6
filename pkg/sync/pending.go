package sync

import (
	goSync "sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// markerTTL bounds how long a mark waits for its echo. A mark whose echo was
// coalesced away by the notification mechanism would otherwise swallow the
// next genuine change to the path.
const markerTTL = 5 * time.Second

// pendingSet tracks the paths the engine is about to change on one side of
// the sync. It's shared between the two watcher goroutines.
type pendingSet struct {
	clock clockwork.Clock

	lock  goSync.Mutex
	paths map[string]time.Time
}

func newPendingSet(clock clockwork.Clock) *pendingSet {
	return &pendingSet{clock: clock, paths: map[string]time.Time{}}
}

// Mark records that the engine is about to change `path`.
func (set *pendingSet) Mark(path string) {
	set.lock.Lock()
	defer set.lock.Unlock()

	set.paths[path] = set.clock.Now().Add(markerTTL)
}

// Consume removes the mark for `path` and returns whether there was a live
// mark, i.e. whether the notification being handled is an echo.
func (set *pendingSet) Consume(path string) bool {
	set.lock.Lock()
	defer set.lock.Unlock()

	expiry, ok := set.paths[path]
	if !ok {
		return false
	}
	delete(set.paths, path)
	return set.clock.Now().Before(expiry)
}

// Has returns whether `path` has a live mark.
func (set *pendingSet) Has(path string) bool {
	set.lock.Lock()
	defer set.lock.Unlock()

	expiry, ok := set.paths[path]
	return ok && set.clock.Now().Before(expiry)
}

// Clear drops all marks.
func (set *pendingSet) Clear() {
	set.lock.Lock()
	defer set.lock.Unlock()

	set.paths = map[string]time.Time{}
}

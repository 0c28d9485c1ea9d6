package sync

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestPendingSet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	set := newPendingSet(clock)

	assert.False(t, set.Consume("/mirror/a"))

	set.Mark("/mirror/a")
	assert.True(t, set.Has("/mirror/a"))
	assert.True(t, set.Consume("/mirror/a"))

	// Marks are consumed by the first notification.
	assert.False(t, set.Consume("/mirror/a"))

	// Marking twice still only suppresses one notification.
	set.Mark("/mirror/b")
	set.Mark("/mirror/b")
	assert.True(t, set.Consume("/mirror/b"))
	assert.False(t, set.Consume("/mirror/b"))
}

func TestPendingSetExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	set := newPendingSet(clock)

	set.Mark("/mirror/a")
	clock.Advance(markerTTL + time.Second)
	assert.False(t, set.Has("/mirror/a"))
	assert.False(t, set.Consume("/mirror/a"))
}

func TestPendingSetClear(t *testing.T) {
	set := newPendingSet(clockwork.NewFakeClock())
	set.Mark("/mirror/a")
	set.Mark("/mirror/b")
	set.Clear()
	assert.False(t, set.Has("/mirror/a"))
	assert.False(t, set.Has("/mirror/b"))
}

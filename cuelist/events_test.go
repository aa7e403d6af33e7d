package cuelist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/cue"
)

// TestBusDeliversInOrder tests ordering and unsubscribe on the event bus
func TestBusDeliversInOrder(t *testing.T) {
	t.Parallel()
	b := newBus()
	var mu sync.Mutex
	var got []int
	unsub := b.subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Index)
		mu.Unlock()
	})

	for i := 0; i < 100; i++ {
		b.publish(Event{Kind: EventCueMoved, Index: i})
	}
	b.close()

	require.Len(t, got, 100, "close delivers what was queued")
	for i, v := range got {
		require.Equal(t, i, v)
	}

	unsub()
	b.publish(Event{Kind: EventCueMoved, Index: 100})
	assert.Len(t, got, 100, "nothing is delivered after close")
}

// TestHandlersMayCallBack tests that a subscriber can use the manager
func TestHandlersMayCallBack(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)

	var mu sync.Mutex
	var counts []int
	m.Subscribe(func(ev Event) {
		if ev.Kind != EventCueAdded {
			return
		}
		n := m.Count()
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	})
	addWaits(t, m, 5)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(counts) == 5
	}, waitFor, tick)
}

// TestCueEventsAreForwarded tests the manager's view of cue notifications
func TestCueEventsAreForwarded(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	rec := record(m)
	ids := addWaits(t, m, 1)
	c := mustCue(t, m, ids[0])

	c.SetName("Preset")
	ev := rec.waitFor(t, EventCueUpdated)
	assert.Equal(t, "name", ev.Field)
	assert.Equal(t, ids[0], ev.CueID)
	assert.Equal(t, epoch, ev.At)

	c.SetStatus(cue.StatusBroken)
	require.Eventually(t, func() bool {
		ev, ok := rec.last(EventPlaybackStateChanged)
		return ok && ev.Status == cue.StatusBroken
	}, waitFor, tick)

	m.RemoveCue(ids[0])
	require.Eventually(t, func() bool {
		ev, ok := rec.last(EventCueCountChanged)
		return ok && ev.Count == 0
	}, waitFor, tick)
	before := len(rec.kinds())
	c.SetName("after removal")
	require.Never(t, func() bool { return len(rec.kinds()) != before }, 50*tick, tick, "removed cues are not watched")
}

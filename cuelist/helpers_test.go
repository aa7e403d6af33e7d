package cuelist

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/playback"
	testingclock "k8s.io/utils/clock/testing"
)

var epoch = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// newTestManager builds a manager on a fake clock. engine may be nil.
func newTestManager(t *testing.T, engine playback.Engine) (*Manager, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(epoch)
	m := New(engine, WithClock(clk))
	t.Cleanup(func() { assert.NoError(t, m.Close()) })
	return m, clk
}

// newTestEngine runs a simulator whose probe knows the given files.
func newTestEngine(t *testing.T, clk *testingclock.FakeClock, files map[string]time.Duration) *playback.Simulator {
	t.Helper()
	sim := playback.NewSimulator(clk, playback.SimulatorOptions{
		Probe: func(path string) (playback.FileInfo, error) {
			d, ok := files[path]
			if !ok {
				return playback.FileInfo{}, playback.ErrUnsupportedFormat
			}
			return playback.FileInfo{Path: path, Format: "wav", Channels: 2, SampleRate: 48000, Duration: d}, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sim.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return sim
}

// addWaits appends n wait cues and returns their ids.
func addWaits(t *testing.T, m *Manager, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		id, err := m.AddCue(cue.TypeWait, Options{})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func idsOf(cues []cue.Cue) []string {
	out := make([]string, len(cues))
	for i, c := range cues {
		out[i] = c.ID()
	}
	return out
}

func numbersOf(cues []cue.Cue) []string {
	out := make([]string, len(cues))
	for i, c := range cues {
		out[i] = c.Number()
	}
	return out
}

func mustCue(t *testing.T, m *Manager, id string) cue.Cue {
	t.Helper()
	c, ok := m.Lookup(id)
	require.True(t, ok, "cue %s should exist", id)
	return c
}

// recorder collects manager events delivered on the bus goroutine.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(m *Manager) *recorder {
	r := &recorder{}
	m.Subscribe(func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) has(kind EventKind) bool {
	return slices.Contains(r.kinds(), kind)
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func (r *recorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	require.Eventually(t, func() bool { return r.has(kind) }, waitFor, tick, "expected %s", kind)
	ev, _ := r.last(kind)
	return ev
}

func statusIs(c cue.Cue, s cue.Status) func() bool {
	return func() bool { return c.Status() == s }
}

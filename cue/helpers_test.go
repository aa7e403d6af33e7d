package cue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/playback"
	testingclock "k8s.io/utils/clock/testing"
)

var epoch = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestEnv() (Env, *testingclock.FakeClock) {
	clk := testingclock.NewFakeClock(epoch)
	return Env{Clock: clk}, clk
}

// newTestEngine runs a simulator on clk whose probe knows the given files.
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

func mustNew(t *testing.T, typ Type, env Env) Cue {
	t.Helper()
	c, err := New(typ, env)
	require.NoError(t, err)
	return c
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(c Cue) *recorder {
	r := &recorder{}
	c.Subscribe(func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) has(kind EventKind) bool {
	return r.count(kind) > 0
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

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, waitFor, tick, msg)
}

func statusIs(c Cue, s Status) func() bool {
	return func() bool { return c.Status() == s }
}

// fakeController records what control and script cues ask of their list.
type fakeController struct {
	mu       sync.Mutex
	cues     map[string]Cue
	started  []string
	stopped  []string
	prepared []string
	standby  string
	gos      int
	stops    int
	panics   int
}

func newFakeController(cues ...Cue) *fakeController {
	f := &fakeController{cues: make(map[string]Cue)}
	for _, c := range cues {
		f.cues[c.ID()] = c
	}
	return f
}

func (f *fakeController) add(c Cue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cues[c.ID()] = c
}

func (f *fakeController) Lookup(id string) (Cue, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cues[id]
	return c, ok
}

func (f *fakeController) StartCue(id string) error {
	f.mu.Lock()
	f.started = append(f.started, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeController) StopCue(id string, _ time.Duration) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeController) PrepareCue(id string) error {
	f.mu.Lock()
	f.prepared = append(f.prepared, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeController) SetStandByCue(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cues[id]; !ok {
		return false
	}
	f.standby = id
	return true
}

func (f *fakeController) Go()    { f.mu.Lock(); f.gos++; f.mu.Unlock() }
func (f *fakeController) Stop()  { f.mu.Lock(); f.stops++; f.mu.Unlock() }
func (f *fakeController) Panic() { f.mu.Lock(); f.panics++; f.mu.Unlock() }

func (f *fakeController) snapshot() *fakeController {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fakeController{
		started:  append([]string(nil), f.started...),
		stopped:  append([]string(nil), f.stopped...),
		prepared: append([]string(nil), f.prepared...),
		standby:  f.standby,
		gos:      f.gos,
		stops:    f.stops,
		panics:   f.panics,
	}
}

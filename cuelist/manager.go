// Package cuelist owns the ordered cue list of a show: editing, grouping,
// selection, the standby playhead and the transport.
package cuelist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/playback"
	"github.com/zenibako/cueforge/workspace"
	"k8s.io/utils/clock"
)

// DefaultSweepInterval is how often Run reconciles the active set.
const DefaultSweepInterval = 50 * time.Millisecond

var (
	// ErrNotFound is returned for ids that name no cue.
	ErrNotFound = errors.New("cue not found")
	// ErrNotExecutable is returned when a cue is asked to start from a status that cannot.
	ErrNotExecutable = errors.New("cue cannot be executed")
	// ErrNoPath is returned when saving a workspace that was never given a file.
	ErrNoPath = errors.New("workspace has no file path")
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock, mostly for tests.
func WithClock(clk clock.WithTicker) Option {
	return func(m *Manager) { m.clock = clk }
}

// WithSweepInterval sets the reconciliation period used by Run.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweep = d
		}
	}
}

// Manager is the single control surface for a cue list. It implements
// cue.Controller so control and script cues can drive it.
//
// Locks are taken in the order mu, selMu, standbyMu, activeMu, expMu. Cue
// event handlers never take mu.
type Manager struct {
	clock  clock.WithTicker
	engine playback.Engine
	sweep  time.Duration

	mu       sync.RWMutex
	cues     []cue.Cue
	bindings map[string]*binding

	selMu    sync.Mutex
	selected []string

	standbyMu sync.Mutex
	standby   string

	activeMu sync.Mutex
	active   []cue.Cue
	paused   bool

	expMu    sync.Mutex
	expanded map[string]bool

	clipMu    sync.Mutex
	clipboard []json.RawMessage

	wsMu  sync.Mutex
	store *workspace.Store
	path  string
	name  string
	dirty bool

	statsMu    sync.Mutex
	stats      Stats
	statsValid bool
	statsGen   uint64
	broken     atomic.Int64

	events *bus
}

// binding is the manager's subscription to one cue. live is cleared
// before the subscription is dropped so a delivery already under way on
// another goroutine does nothing.
type binding struct {
	live  atomic.Bool
	unsub func()
}

func New(engine playback.Engine, opts ...Option) *Manager {
	m := &Manager{
		clock:    clock.RealClock{},
		engine:   engine,
		sweep:    DefaultSweepInterval,
		bindings: make(map[string]*binding),
		expanded: make(map[string]bool),
		events:   newBus(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) env() cue.Env {
	return cue.Env{Clock: m.clock, Engine: m.engine, Controller: m}
}

// Subscribe registers fn for manager events. Events arrive in order on a
// dedicated goroutine, so fn may call back into the manager.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.subscribe(fn)
}

func (m *Manager) emit(evs ...Event) {
	now := m.clock.Now()
	for i := range evs {
		if evs[i].At.IsZero() {
			evs[i].At = now
		}
	}
	m.events.publish(evs...)
}

// Run reconciles the active set on every sweep until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.sweep)
	defer ticker.Stop()
	log.Debug("Cue list sweep started", "interval", m.sweep)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			m.reconcile()
		}
	}
}

// reconcile drops cues that stopped executing without telling us.
func (m *Manager) reconcile() {
	m.activeMu.Lock()
	kept := m.active[:0]
	dropped := 0
	for _, c := range m.active {
		if c.IsExecuting() {
			kept = append(kept, c)
		} else {
			dropped++
		}
	}
	clear(m.active[len(kept):])
	m.active = kept
	m.activeMu.Unlock()

	if dropped > 0 {
		log.Debug("Reconciled active cues", "dropped", dropped)
		m.emit(Event{Kind: EventPlaybackStateChanged})
	}
}

// Close stops everything, releases the workspace lock and shuts down event
// delivery. It must not be called from an event handler.
func (m *Manager) Close() error {
	m.stopAll(0)
	m.wsMu.Lock()
	store := m.store
	m.store = nil
	m.wsMu.Unlock()
	var err error
	if store != nil {
		err = store.Close()
	}
	m.events.close()
	return err
}

// bindLocked subscribes to c and its descendants. mu must be held for writing.
func (m *Manager) bindLocked(c cue.Cue) {
	cue.Walk(c, func(x cue.Cue) {
		if _, ok := m.bindings[x.ID()]; ok {
			return
		}
		b := &binding{}
		b.live.Store(true)
		b.unsub = x.Subscribe(func(ev cue.Event) {
			if b.live.Load() {
				m.onCueEvent(ev)
			}
		})
		m.bindings[x.ID()] = b
	})
}

func (m *Manager) unbindOneLocked(c cue.Cue) {
	if b, ok := m.bindings[c.ID()]; ok {
		b.live.Store(false)
		b.unsub()
		delete(m.bindings, c.ID())
	}
}

func (m *Manager) unbindLocked(c cue.Cue) {
	cue.Walk(c, m.unbindOneLocked)
}

func (m *Manager) onCueEvent(ev cue.Event) {
	c := ev.Cue
	switch ev.Kind {
	case cue.EventUpdated:
		if ev.IsEdit() {
			m.markModified()
		}
		m.invalidateStats()
		m.emit(Event{Kind: EventCueUpdated, CueID: c.ID(), Number: c.Number(), Field: ev.Field, At: ev.At})
	case cue.EventStatusChanged:
		m.invalidateStats()
		m.emit(Event{Kind: EventPlaybackStateChanged, CueID: c.ID(), Number: c.Number(), Status: ev.To, At: ev.At})
	case cue.EventExecutionStopped:
		m.removeActive(c)
	case cue.EventExecutionFinished:
		m.removeActive(c)
		log.Debug("Cue finished execution", "number", c.Number())
		m.emit(
			Event{Kind: EventExecutionFinished, CueID: c.ID(), Number: c.Number(), At: ev.At},
			Event{Kind: EventPlaybackStateChanged, CueID: c.ID(), Number: c.Number(), Status: c.Status(), At: ev.At},
		)
	case cue.EventExecutionFailed:
		log.Warn("Cue execution failed", "number", c.Number(), "error", ev.Err)
		m.emit(Event{Kind: EventExecutionFailed, CueID: c.ID(), Number: c.Number(), Err: ev.Err, At: ev.At})
	}
}

func (m *Manager) markModified() {
	m.wsMu.Lock()
	was := m.dirty
	m.dirty = true
	m.wsMu.Unlock()
	if !was {
		m.emit(Event{Kind: EventWorkspaceChanged})
	}
}

// MarkWorkspaceModified flags unsaved changes made outside the editing API.
func (m *Manager) MarkWorkspaceModified() { m.markModified() }

func (m *Manager) HasUnsavedChanges() bool {
	m.wsMu.Lock()
	defer m.wsMu.Unlock()
	return m.dirty
}

func (m *Manager) indexLocked(id string) int {
	for i, c := range m.cues {
		if c.ID() == id {
			return i
		}
	}
	return -1
}

// findLocked searches the top level and then every group.
func (m *Manager) findLocked(id string) (cue.Cue, bool) {
	if i := m.indexLocked(id); i >= 0 {
		return m.cues[i], true
	}
	var found cue.Cue
	for _, top := range m.cues {
		if _, ok := top.(*cue.GroupCue); !ok {
			continue
		}
		cue.Walk(top, func(c cue.Cue) {
			if found == nil && c.ID() == id {
				found = c
			}
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// allLocked lists every cue depth first in list order.
func (m *Manager) allLocked() []cue.Cue {
	var out []cue.Cue
	for _, top := range m.cues {
		cue.Walk(top, func(c cue.Cue) { out = append(out, c) })
	}
	return out
}

func (m *Manager) all() []cue.Cue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allLocked()
}

// Cue returns a top-level cue.
func (m *Manager) Cue(id string) (cue.Cue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.cues[i], true
	}
	return nil, false
}

// Lookup finds a cue anywhere in the list, group children included.
func (m *Manager) Lookup(id string) (cue.Cue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(id)
}

// Cues returns the top-level cues in order.
func (m *Manager) Cues() []cue.Cue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]cue.Cue(nil), m.cues...)
}

func (m *Manager) CuesOfType(t cue.Type) []cue.Cue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cue.Cue
	for _, c := range m.cues {
		if c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

// Count is the number of top-level cues.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cues)
}

// IndexOf returns the top-level index of id, or -1.
func (m *Manager) IndexOf(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexLocked(id)
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.cues))
	for i, c := range m.cues {
		out[i] = c.ID()
	}
	return out
}

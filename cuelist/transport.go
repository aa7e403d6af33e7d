package cuelist

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
)

// StandByCue returns the cue the next Go will fire, or nil.
func (m *Manager) StandByCue() cue.Cue {
	id := m.StandByID()
	if id == "" {
		return nil
	}
	c, ok := m.Cue(id)
	if !ok {
		return nil
	}
	return c
}

func (m *Manager) StandByID() string {
	m.standbyMu.Lock()
	defer m.standbyMu.Unlock()
	return m.standby
}

// SetStandByCue stages a top-level cue for the next Go. An empty id clears
// the standby; an unknown id is refused.
func (m *Manager) SetStandByCue(id string) bool {
	m.mu.RLock()
	if id != "" && m.indexLocked(id) < 0 {
		m.mu.RUnlock()
		log.Warn("Cannot stand by unknown cue", "id", id)
		return false
	}
	m.standbyMu.Lock()
	changed := m.standby != id
	m.standby = id
	m.standbyMu.Unlock()
	m.mu.RUnlock()

	if changed {
		log.Debug("Standby cue set", "id", id)
		m.emit(Event{Kind: EventStandByChanged, CueID: id})
	}
	return true
}

// nextExecutableLocked finds the first executable top-level cue after
// from, or from the start when from is empty or unknown.
func (m *Manager) nextExecutableLocked(from string) string {
	start := 0
	if from != "" {
		start = m.indexLocked(from) + 1
	}
	for _, c := range m.cues[start:] {
		if c.CanExecute() {
			return c.ID()
		}
	}
	return ""
}

func (m *Manager) nextExecutable(from string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextExecutableLocked(from)
}

// AdvanceStandBy moves the standby to the next executable cue. It stays
// put when there is none.
func (m *Manager) AdvanceStandBy() {
	if next := m.nextExecutable(m.StandByID()); next != "" {
		m.SetStandByCue(next)
	}
}

// Go fires the standby cue. With continue mode set the standby moves on
// to the next executable cue straight away.
func (m *Manager) Go() {
	c := m.StandByCue()
	if c == nil {
		log.Warn("No standby cue to execute")
		return
	}
	if !c.CanExecute() {
		log.Warn("Standby cue cannot be executed", "number", c.Number(), "status", c.Status())
		return
	}

	log.Info("Go", "number", c.Number(), "name", c.Name())
	c.Trigger()
	m.emit(Event{Kind: EventGo, CueID: c.ID(), Number: c.Number()})
	if c.IsExecuting() {
		m.addActive(c)
		m.emit(Event{Kind: EventExecutionStarted, CueID: c.ID(), Number: c.Number()})
	}
	if c.ContinueMode() {
		if next := m.nextExecutable(c.ID()); next != "" {
			m.SetStandByCue(next)
		}
	}
	m.emit(Event{Kind: EventPlaybackStateChanged})
}

func (m *Manager) addActive(c cue.Cue) {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	if !slices.Contains(m.active, c) {
		m.active = append(m.active, c)
	}
}

func (m *Manager) removeActive(c cue.Cue) {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	m.active = slices.DeleteFunc(m.active, func(x cue.Cue) bool { return x == c })
}

// Stop stops every active cue with its own fade and clears the pause.
func (m *Manager) Stop() {
	m.activeMu.Lock()
	active := m.active
	m.active = nil
	m.paused = false
	m.activeMu.Unlock()

	log.Info("Stopping all active cues", "count", len(active))
	for _, c := range active {
		c.Stop(cue.FadeDefault)
	}
	m.emit(Event{Kind: EventAllCuesStopped}, Event{Kind: EventPlaybackStateChanged})
}

// Pause pauses every playing active cue.
func (m *Manager) Pause() {
	m.activeMu.Lock()
	if len(m.active) == 0 {
		m.activeMu.Unlock()
		return
	}
	active := slices.Clone(m.active)
	m.paused = true
	m.activeMu.Unlock()

	log.Info("Pausing active cues", "count", len(active))
	for _, c := range active {
		if c.Status() == cue.StatusPlaying {
			c.Pause()
		}
	}
	m.emit(Event{Kind: EventPlaybackStateChanged})
}

// Resume resumes every paused active cue.
func (m *Manager) Resume() {
	m.activeMu.Lock()
	if !m.paused {
		m.activeMu.Unlock()
		return
	}
	active := slices.Clone(m.active)
	m.paused = false
	m.activeMu.Unlock()

	log.Info("Resuming paused cues", "count", len(active))
	for _, c := range active {
		if c.Status() == cue.StatusPaused {
			c.Resume()
		}
	}
	m.emit(Event{Kind: EventPlaybackStateChanged})
}

// Panic stops every executing cue in the whole list at once, whether or
// not the active set knows about it.
func (m *Manager) Panic() {
	log.Warn("PANIC stop")
	stopped := m.stopAll(0)
	m.emit(
		Event{Kind: EventPanic, Count: stopped},
		Event{Kind: EventAllCuesStopped},
		Event{Kind: EventPlaybackStateChanged},
	)
}

func (m *Manager) stopAll(fade time.Duration) int {
	stopped := 0
	for _, c := range m.all() {
		if c.IsExecuting() {
			c.Stop(fade)
			stopped++
		}
	}
	m.activeMu.Lock()
	m.active = nil
	m.paused = false
	m.activeMu.Unlock()
	return stopped
}

// StopCue stops one cue. fade is handed to the cue; cue.FadeDefault uses
// the cue's own fade-out.
func (m *Manager) StopCue(id string, fade time.Duration) error {
	c, ok := m.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if c.IsExecuting() {
		log.Debug("Stopping cue", "number", c.Number())
		c.Stop(fade)
		m.emit(Event{Kind: EventPlaybackStateChanged, CueID: c.ID(), Number: c.Number(), Status: c.Status()})
	}
	return nil
}

// StopSelectedCues stops the executing cues in the selection.
func (m *Manager) StopSelectedCues() {
	selected := m.SelectedCues()
	log.Debug("Stopping selected cues", "count", len(selected))
	for _, c := range selected {
		if c.IsExecuting() {
			c.Stop(cue.FadeDefault)
		}
	}
	m.emit(Event{Kind: EventPlaybackStateChanged})
}

// StartCue fires a cue directly, leaving the standby alone.
func (m *Manager) StartCue(id string) error {
	c, ok := m.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !c.CanExecute() {
		return fmt.Errorf("%w: %s is %s", ErrNotExecutable, c.DisplayName(), c.Status())
	}
	c.Trigger()
	if c.IsExecuting() {
		m.addActive(c)
		m.emit(Event{Kind: EventExecutionStarted, CueID: c.ID(), Number: c.Number()})
	}
	m.emit(Event{Kind: EventPlaybackStateChanged})
	return nil
}

// PrepareCue loads whatever the cue needs before it can fire.
func (m *Manager) PrepareCue(id string) error {
	c, ok := m.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := c.Prepare(); err != nil {
		return fmt.Errorf("failed to prepare cue %s: %w", c.DisplayName(), err)
	}
	return nil
}

// ResetCue returns a finished cue to Loaded (or Armed) so it can fire
// again. Executing and broken cues are left alone.
func (m *Manager) ResetCue(id string) bool {
	c, ok := m.Lookup(id)
	if !ok || c.Status() != cue.StatusStopped {
		return false
	}
	reset(c)
	return true
}

// ResetAll resets every finished cue and returns how many it touched.
func (m *Manager) ResetAll() int {
	n := 0
	for _, c := range m.all() {
		if c.Status() == cue.StatusStopped {
			reset(c)
			n++
		}
	}
	if n > 0 {
		m.emit(Event{Kind: EventPlaybackStateChanged})
	}
	return n
}

func reset(c cue.Cue) {
	c.Reset()
	if c.Armed() {
		c.SetStatus(cue.StatusArmed)
	}
}

func (m *Manager) ActiveCues() []cue.Cue {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return slices.Clone(m.active)
}

func (m *Manager) HasActiveCues() bool {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return len(m.active) > 0
}

func (m *Manager) IsPaused() bool {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	return m.paused
}

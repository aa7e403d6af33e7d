package cuelist

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/playback"
)

// Stats summarises the whole list, group children included.
type Stats struct {
	Total         int
	Audio         int
	Video         int
	MIDI          int
	Wait          int
	Fade          int
	Group         int
	Control       int
	Script        int
	Broken        int
	TotalDuration time.Duration
}

// targetProblem explains why c's target is unusable, or returns "".
func targetProblem(c cue.Cue, find func(string) (cue.Cue, bool)) string {
	if !c.Type().NeedsTarget() {
		return ""
	}
	id := c.TargetID()
	if id == "" {
		return "no target cue"
	}
	target, ok := find(id)
	if !ok {
		return "target cue not found"
	}
	if c.Type() == cue.TypeFade {
		if _, audio := target.(*cue.AudioCue); !audio {
			return "fade target is not an audio cue"
		}
	}
	return ""
}

// mediaProblem probes an audio cue's file if needed and explains why it
// cannot play, or returns "".
func mediaProblem(a *cue.AudioCue) string {
	if path := a.FilePath(); path != "" && playback.IsFormatSupported(path) && !a.IsLoaded() {
		_ = a.Load()
	}
	return a.ValidationError()
}

// applyValidity moves c to or from Broken. It reports whether c is valid.
func applyValidity(c cue.Cue, problem string) bool {
	if problem != "" {
		if c.Status() != cue.StatusBroken {
			log.Warn("Cue is broken", "number", c.Number(), "reason", problem)
			c.SetStatus(cue.StatusBroken)
		}
		return false
	}
	if c.Status() == cue.StatusBroken {
		if c.Armed() {
			c.SetStatus(cue.StatusArmed)
		} else {
			c.SetStatus(cue.StatusLoaded)
		}
	}
	return true
}

// ValidateCue checks one cue and marks it Broken or repairs it. Executing
// cues are left alone and count as valid.
func (m *Manager) ValidateCue(id string) bool {
	c, ok := m.Lookup(id)
	if !ok {
		return false
	}
	valid := m.validate(c)
	m.refreshBroken()
	return valid
}

func (m *Manager) validate(c cue.Cue) bool {
	if c.IsExecuting() {
		return true
	}
	problem := targetProblem(c, m.Lookup)
	if a, ok := c.(*cue.AudioCue); ok && problem == "" {
		problem = mediaProblem(a)
	}
	return applyValidity(c, problem)
}

// ValidateAllCues validates every cue in the list.
func (m *Manager) ValidateAllCues() int {
	invalid := 0
	for _, c := range m.all() {
		if !m.validate(c) {
			invalid++
		}
	}
	log.Debug("Validated cues", "invalid", invalid)
	m.refreshBroken()
	m.emit(Event{Kind: EventValidationChanged, Count: invalid})
	return invalid
}

// checkTargetsLocked marks cues whose target disappeared. mu must be held.
func (m *Manager) checkTargetsLocked() {
	for _, c := range m.allLocked() {
		if c.IsExecuting() || !c.Type().NeedsTarget() {
			continue
		}
		if problem := targetProblem(c, m.findLocked); problem != "" {
			applyValidity(c, problem)
		}
	}
}

// refreshBroken recounts broken cues and reports a change.
func (m *Manager) refreshBroken() {
	n := int64(len(m.BrokenCues()))
	if old := m.broken.Swap(n); old != n {
		m.emit(Event{Kind: EventBrokenCountChanged, Count: int(n)})
	}
}

// BrokenCueCount is the count from the last validation or removal.
func (m *Manager) BrokenCueCount() int {
	return int(m.broken.Load())
}

func (m *Manager) BrokenCues() []cue.Cue {
	return m.FilterCuesByStatus(cue.StatusBroken)
}

func (m *Manager) invalidateStats() {
	m.statsMu.Lock()
	m.statsValid = false
	m.statsGen++
	m.statsMu.Unlock()
}

// CueStatistics counts cues by kind. The result is cached until the list
// or a cue changes.
func (m *Manager) CueStatistics() Stats {
	m.statsMu.Lock()
	if m.statsValid {
		s := m.stats
		m.statsMu.Unlock()
		return s
	}
	gen := m.statsGen
	m.statsMu.Unlock()

	var s Stats
	for _, c := range m.all() {
		s.Total++
		switch t := c.Type(); {
		case t == cue.TypeAudio:
			s.Audio++
		case t == cue.TypeVideo:
			s.Video++
		case t == cue.TypeMIDI:
			s.MIDI++
		case t == cue.TypeWait:
			s.Wait++
		case t == cue.TypeFade:
			s.Fade++
		case t == cue.TypeGroup:
			s.Group++
		case t == cue.TypeScript:
			s.Script++
		case t.IsControl():
			s.Control++
		}
		if c.Status() == cue.StatusBroken {
			s.Broken++
		}
		s.TotalDuration += c.Duration()
	}

	m.statsMu.Lock()
	if m.statsGen == gen {
		m.stats = s
		m.statsValid = true
	}
	m.statsMu.Unlock()
	return s
}

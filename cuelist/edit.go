package cuelist

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
)

// Options are the fields a new cue may be created with. Zero values leave
// the cue's defaults alone; an empty Number asks for the next free one.
type Options struct {
	Number       string
	Name         string
	Color        string
	Notes        string
	Duration     *time.Duration
	PreWait      *time.Duration
	PostWait     *time.Duration
	ContinueMode bool
	Armed        bool
	TargetID     string
	FilePath     string
	Script       string
	Properties   map[string]any
}

// Seconds is a convenience for the duration fields of Options.
func Seconds(s float64) *time.Duration {
	d := time.Duration(s * float64(time.Second))
	return &d
}

func (o Options) apply(c cue.Cue) error {
	if o.Color != "" {
		col, err := cue.ParseColor(o.Color)
		if err != nil {
			return err
		}
		c.SetColor(col)
	}
	if o.Number != "" {
		c.SetNumber(o.Number)
	}
	if o.Name != "" {
		c.SetName(o.Name)
	}
	if o.Notes != "" {
		c.SetNotes(o.Notes)
	}
	if o.Duration != nil {
		c.SetDuration(*o.Duration)
	}
	if o.PreWait != nil {
		c.SetPreWait(*o.PreWait)
	}
	if o.PostWait != nil {
		c.SetPostWait(*o.PostWait)
	}
	if o.ContinueMode {
		c.SetContinueMode(true)
	}
	if o.TargetID != "" {
		c.SetTargetID(o.TargetID)
	}
	for k, v := range o.Properties {
		c.SetCustomProperty(k, v)
	}
	switch v := c.(type) {
	case *cue.AudioCue:
		if o.FilePath != "" {
			v.SetFilePath(o.FilePath)
		}
	case *cue.ScriptCue:
		if o.Script != "" {
			v.SetSource(o.Script)
		}
	}
	if o.Armed {
		c.SetArmed(true)
	}
	return nil
}

// AddCue appends a new cue and returns its id.
func (m *Manager) AddCue(t cue.Type, opts Options) (string, error) {
	return m.addCue(t, func() int { return len(m.cues) }, opts)
}

// AddCueAfter inserts a new cue after afterID, or appends when afterID is
// not a top-level cue.
func (m *Manager) AddCueAfter(t cue.Type, afterID string, opts Options) (string, error) {
	return m.addCue(t, func() int {
		if i := m.indexLocked(afterID); i >= 0 {
			return i + 1
		}
		return len(m.cues)
	}, opts)
}

// AddCueAt inserts a new cue at index, clamped to the list bounds.
func (m *Manager) AddCueAt(t cue.Type, index int, opts Options) (string, error) {
	return m.addCue(t, func() int { return index }, opts)
}

func (m *Manager) addCue(t cue.Type, where func() int, opts Options) (string, error) {
	c, err := cue.New(t, m.env())
	if err != nil {
		log.Error("Failed to create cue", "type", t, "error", err)
		return "", err
	}
	if err := opts.apply(c); err != nil {
		log.Warn("Rejected cue options", "type", t, "error", err)
		return "", err
	}

	m.mu.Lock()
	if opts.Number == "" {
		c.SetNumber(m.nextNumberLocked())
	}
	index := min(max(where(), 0), len(m.cues))
	m.cues = slices.Insert(m.cues, index, c)
	m.bindLocked(c)
	count := len(m.cues)
	m.mu.Unlock()

	log.Debug("Added cue", "number", c.Number(), "type", t, "index", index)
	m.markModified()
	m.invalidateStats()
	m.emit(
		Event{Kind: EventCueAdded, CueID: c.ID(), Number: c.Number(), Index: index},
		Event{Kind: EventCueCountChanged, Count: count},
	)
	return c.ID(), nil
}

// NextCueNumber is one more than the highest numeric top-level number.
func (m *Manager) NextCueNumber() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextNumberLocked()
}

func (m *Manager) nextNumberLocked() string {
	highest := 0.0
	for _, c := range m.cues {
		if n, err := strconv.ParseFloat(strings.TrimSpace(c.Number()), 64); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.FormatFloat(highest+1, 'f', 0, 64)
}

func (m *Manager) RemoveCue(id string) bool {
	return m.RemoveCues([]string{id})
}

// RemoveCues removes every top-level cue named in ids. Unknown ids are
// skipped. Executing cues are stopped first, and selection and standby are
// repaired before the collection lock is released.
func (m *Manager) RemoveCues(ids []string) bool {
	type removal struct {
		c     cue.Cue
		index int
	}

	m.mu.Lock()
	var removed []removal
	for _, id := range ids {
		i := m.indexLocked(id)
		if i < 0 {
			continue
		}
		c := m.cues[i]
		if c.IsExecuting() {
			c.Stop(0)
		}
		m.unbindLocked(c)
		m.cues = slices.Delete(m.cues, i, i+1)
		removed = append(removed, removal{c: c, index: i})
	}
	if len(removed) == 0 {
		m.mu.Unlock()
		return false
	}

	gone := make(map[string]bool)
	for _, r := range removed {
		cue.Walk(r.c, func(c cue.Cue) { gone[c.ID()] = true })
	}

	m.selMu.Lock()
	selBefore := len(m.selected)
	m.selected = slices.DeleteFunc(m.selected, func(id string) bool { return gone[id] || m.indexLocked(id) < 0 })
	selChanged := len(m.selected) != selBefore
	m.selMu.Unlock()

	m.standbyMu.Lock()
	oldStandby := m.standby
	if gone[m.standby] || (m.standby != "" && m.indexLocked(m.standby) < 0) {
		m.standby = m.nextExecutableLocked("")
	}
	newStandby := m.standby
	m.standbyMu.Unlock()

	m.activeMu.Lock()
	m.active = slices.DeleteFunc(m.active, func(c cue.Cue) bool { return gone[c.ID()] })
	m.activeMu.Unlock()

	m.expMu.Lock()
	for id := range gone {
		delete(m.expanded, id)
	}
	m.expMu.Unlock()

	m.checkTargetsLocked()
	count := len(m.cues)
	m.mu.Unlock()

	evs := make([]Event, 0, len(removed)+3)
	for _, r := range removed {
		log.Debug("Removed cue", "number", r.c.Number(), "index", r.index)
		evs = append(evs, Event{Kind: EventCueRemoved, CueID: r.c.ID(), Number: r.c.Number(), Index: r.index})
	}
	evs = append(evs, Event{Kind: EventCueCountChanged, Count: count})
	if selChanged {
		evs = append(evs, Event{Kind: EventSelectionChanged})
	}
	if newStandby != oldStandby {
		evs = append(evs, Event{Kind: EventStandByChanged, CueID: newStandby})
	}
	m.markModified()
	m.invalidateStats()
	m.refreshBroken()
	m.emit(evs...)
	return true
}

func (m *Manager) MoveCue(id string, newIndex int) bool {
	return m.MoveCues([]string{id}, newIndex)
}

// MoveCues moves the named top-level cues as one block. newIndex is read
// against the list before the move and then reduced by the number of moved
// cues that sat before it. Indices outside [0, len] reject the move.
func (m *Manager) MoveCues(ids []string, newIndex int) bool {
	m.mu.Lock()
	if len(ids) == 0 || newIndex < 0 || newIndex > len(m.cues) {
		m.mu.Unlock()
		return false
	}

	var indices []int
	for _, id := range ids {
		if i := m.indexLocked(id); i >= 0 && !slices.Contains(indices, i) {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		m.mu.Unlock()
		return false
	}

	slices.Sort(indices)
	slices.Reverse(indices)
	moved := make([]cue.Cue, 0, len(indices))
	adjusted := newIndex
	for _, i := range indices {
		moved = append([]cue.Cue{m.cues[i]}, moved...)
		m.cues = slices.Delete(m.cues, i, i+1)
		if i < newIndex {
			adjusted--
		}
	}
	m.cues = slices.Insert(m.cues, adjusted, moved...)
	m.mu.Unlock()

	log.Debug("Moved cues", "count", len(moved), "index", adjusted)
	evs := make([]Event, len(moved))
	for i, c := range moved {
		evs[i] = Event{Kind: EventCueMoved, CueID: c.ID(), Number: c.Number(), Index: adjusted + i}
	}
	m.markModified()
	m.emit(evs...)
	return true
}

// MoveSelectedCues moves the selection as a block.
func (m *Manager) MoveSelectedCues(newIndex int) bool {
	return m.MoveCues(m.SelectedIDs(), newIndex)
}

// ResequenceCues renumbers the top level from start in steps of increment.
// Group children keep their numbers.
func (m *Manager) ResequenceCues(start string, increment float64) {
	first, err := strconv.ParseFloat(strings.TrimSpace(start), 64)
	if err != nil {
		first = 1
	}
	if increment == 0 {
		increment = 1
	}

	m.mu.RLock()
	cues := append([]cue.Cue(nil), m.cues...)
	m.mu.RUnlock()

	for i, c := range cues {
		c.SetNumber(formatNumber(first + float64(i)*increment))
	}
	log.Debug("Resequenced cues", "count", len(cues), "start", first, "increment", increment)
	m.markModified()
}

// formatNumber writes n with the fewest decimals needed, ignoring float
// noise below a millionth.
func formatNumber(n float64) string {
	return strconv.FormatFloat(math.Round(n*1e6)/1e6, 'f', -1, 64)
}

// FlattenedCues is the top level with each expanded group's children
// spliced in after it. Only one level is expanded.
func (m *Manager) FlattenedCues() []cue.Cue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.expMu.Lock()
	defer m.expMu.Unlock()

	out := make([]cue.Cue, 0, len(m.cues))
	for _, c := range m.cues {
		out = append(out, c)
		if g, ok := c.(*cue.GroupCue); ok && m.expandedLocked(g.ID()) {
			out = append(out, g.Children()...)
		}
	}
	return out
}

package cuelist

import (
	"slices"

	"github.com/zenibako/cueforge/cue"
)

// updateSelection replaces the selection with next(current), keeping only
// top-level ids and dropping duplicates.
func (m *Manager) updateSelection(next func(current []string) []string) {
	m.mu.RLock()
	m.selMu.Lock()
	proposed := next(slices.Clone(m.selected))
	valid := make([]string, 0, len(proposed))
	for _, id := range proposed {
		if m.indexLocked(id) >= 0 && !slices.Contains(valid, id) {
			valid = append(valid, id)
		}
	}
	changed := !slices.Equal(valid, m.selected)
	if changed {
		m.selected = valid
	}
	m.selMu.Unlock()
	m.mu.RUnlock()

	if changed {
		m.emit(Event{Kind: EventSelectionChanged, Count: len(valid)})
	}
}

func (m *Manager) SelectCue(id string) {
	m.SelectCues([]string{id})
}

// SelectCues replaces the selection. Ids that are not top-level cues are
// dropped.
func (m *Manager) SelectCues(ids []string) {
	m.updateSelection(func([]string) []string { return ids })
}

func (m *Manager) ClearSelection() {
	m.SelectCues(nil)
}

func (m *Manager) SelectAll() {
	m.SelectCues(m.ids())
}

func (m *Manager) ToggleCueSelection(id string) {
	m.updateSelection(func(cur []string) []string {
		if i := slices.Index(cur, id); i >= 0 {
			return slices.Delete(cur, i, i+1)
		}
		return append(cur, id)
	})
}

// SelectRange selects the top-level cues between a and b inclusive, in
// either order. Group expansion is not taken into account.
func (m *Manager) SelectRange(a, b string) {
	m.mu.RLock()
	from, to := m.indexLocked(a), m.indexLocked(b)
	if from < 0 || to < 0 {
		m.mu.RUnlock()
		return
	}
	if from > to {
		from, to = to, from
	}
	ids := make([]string, 0, to-from+1)
	for _, c := range m.cues[from : to+1] {
		ids = append(ids, c.ID())
	}
	m.mu.RUnlock()
	m.SelectCues(ids)
}

func (m *Manager) SelectedIDs() []string {
	m.selMu.Lock()
	defer m.selMu.Unlock()
	return slices.Clone(m.selected)
}

// SelectedCues returns the selected cues in selection order.
func (m *Manager) SelectedCues() []cue.Cue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.selMu.Lock()
	defer m.selMu.Unlock()
	out := make([]cue.Cue, 0, len(m.selected))
	for _, id := range m.selected {
		if i := m.indexLocked(id); i >= 0 {
			out = append(out, m.cues[i])
		}
	}
	return out
}

func (m *Manager) IsCueSelected(id string) bool {
	m.selMu.Lock()
	defer m.selMu.Unlock()
	return slices.Contains(m.selected, id)
}

func (m *Manager) HasSelection() bool {
	m.selMu.Lock()
	defer m.selMu.Unlock()
	return len(m.selected) > 0
}

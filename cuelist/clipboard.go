package cuelist

import (
	"encoding/json"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
)

// CopySelectedCues snapshots the selected cues, in list order.
func (m *Manager) CopySelectedCues() int {
	selected := m.SelectedCues()
	if len(selected) == 0 {
		return 0
	}
	m.mu.RLock()
	slices.SortFunc(selected, func(a, b cue.Cue) int { return m.indexLocked(a.ID()) - m.indexLocked(b.ID()) })
	m.mu.RUnlock()

	clip := make([]json.RawMessage, 0, len(selected))
	for _, c := range selected {
		data, err := c.MarshalJSON()
		if err != nil {
			log.Warn("Failed to copy cue", "number", c.Number(), "error", err)
			continue
		}
		clip = append(clip, data)
	}

	m.clipMu.Lock()
	m.clipboard = clip
	m.clipMu.Unlock()
	log.Debug("Copied cues", "count", len(clip))
	return len(clip)
}

// CutSelectedCues copies the selection and then removes it.
func (m *Manager) CutSelectedCues() int {
	n := m.CopySelectedCues()
	if n > 0 {
		m.RemoveCues(m.SelectedIDs())
	}
	return n
}

// PasteCues pastes after the last selected cue, or at the end.
func (m *Manager) PasteCues() []string {
	index := -1
	m.mu.RLock()
	m.selMu.Lock()
	for _, id := range m.selected {
		if i := m.indexLocked(id); i > index {
			index = i
		}
	}
	m.selMu.Unlock()
	if index < 0 {
		index = len(m.cues)
	} else {
		index++
	}
	m.mu.RUnlock()
	return m.PasteCuesAt(index)
}

// PasteCuesAt inserts fresh copies of the clipboard at index. Targets that
// pointed inside the copied set are rewired to the copies. The pasted cues
// become the selection.
func (m *Manager) PasteCuesAt(index int) []string {
	m.clipMu.Lock()
	clip := slices.Clone(m.clipboard)
	m.clipMu.Unlock()
	if len(clip) == 0 {
		return nil
	}

	remap := make(map[string]string)
	var pasted []cue.Cue
	for _, data := range clip {
		c, err := cue.Decode(data, m.env())
		if err != nil {
			log.Warn("Failed to paste cue", "error", err)
			continue
		}
		old, err := treeIDs(data)
		if err != nil {
			log.Warn("Failed to paste cue", "error", err)
			continue
		}
		i := 0
		cue.Walk(c, func(x cue.Cue) {
			if i < len(old) {
				remap[old[i]] = x.ID()
			}
			i++
		})
		pasted = append(pasted, c)
	}
	for _, c := range pasted {
		cue.Walk(c, func(x cue.Cue) {
			if id, ok := remap[x.TargetID()]; ok {
				x.SetTargetID(id)
			}
		})
	}
	if len(pasted) == 0 {
		return nil
	}

	m.mu.Lock()
	index = min(max(index, 0), len(m.cues))
	m.cues = slices.Insert(m.cues, index, pasted...)
	ids := make([]string, len(pasted))
	for i, c := range pasted {
		m.bindLocked(c)
		ids[i] = c.ID()
	}
	count := len(m.cues)
	m.mu.Unlock()

	log.Debug("Pasted cues", "count", len(pasted), "index", index)
	evs := make([]Event, 0, len(pasted)+1)
	for i, c := range pasted {
		evs = append(evs, Event{Kind: EventCueAdded, CueID: c.ID(), Number: c.Number(), Index: index + i})
	}
	evs = append(evs, Event{Kind: EventCueCountChanged, Count: count})
	m.markModified()
	m.invalidateStats()
	m.emit(evs...)
	m.SelectCues(ids)
	return ids
}

// treeIDs lists the ids stored in a serialized cue in the order cue.Walk
// visits the decoded tree.
func treeIDs(data []byte) ([]string, error) {
	var node struct {
		ID       string            `json:"id"`
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	out := []string{node.ID}
	for _, child := range node.Children {
		ids, err := treeIDs(child)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

func (m *Manager) HasClipboard() bool {
	m.clipMu.Lock()
	defer m.clipMu.Unlock()
	return len(m.clipboard) > 0
}

func (m *Manager) ClearClipboard() {
	m.clipMu.Lock()
	m.clipboard = nil
	m.clipMu.Unlock()
}

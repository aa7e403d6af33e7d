package cuelist

import (
	"slices"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
)

// CreateGroupFromSelection groups the selected cues.
func (m *Manager) CreateGroupFromSelection() string {
	ids := m.SelectedIDs()
	if len(ids) == 0 {
		return ""
	}
	return m.CreateGroupFromCues(ids)
}

// CreateGroupFromCues moves the named top-level cues into a new group,
// keeping their list order, and puts the group where the first of them
// was. Unknown ids are skipped; if none resolve no group is made.
func (m *Manager) CreateGroupFromCues(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	created, err := cue.New(cue.TypeGroup, m.env())
	if err != nil {
		log.Error("Failed to create group", "error", err)
		return ""
	}
	group := created.(*cue.GroupCue)

	m.mu.Lock()
	var members []cue.Cue
	first := -1
	for _, id := range ids {
		i := m.indexLocked(id)
		if i < 0 || slices.Contains(members, m.cues[i]) {
			continue
		}
		members = append(members, m.cues[i])
		if first < 0 || i < first {
			first = i
		}
	}
	if len(members) == 0 {
		m.mu.Unlock()
		return ""
	}
	slices.SortFunc(members, func(a, b cue.Cue) int { return m.indexLocked(a.ID()) - m.indexLocked(b.ID()) })

	group.SetNumber(m.nextNumberLocked())
	for _, c := range members {
		i := m.indexLocked(c.ID())
		m.cues = slices.Delete(m.cues, i, i+1)
		if i < first {
			first--
		}
		group.AddChild(c)
	}
	m.cues = slices.Insert(m.cues, first, cue.Cue(group))
	m.bindLocked(group)

	memberIDs := make(map[string]bool, len(members))
	for _, c := range members {
		memberIDs[c.ID()] = true
	}
	m.selMu.Lock()
	selChanged := slices.ContainsFunc(m.selected, func(id string) bool { return memberIDs[id] })
	if selChanged {
		m.selected = []string{group.ID()}
	}
	m.selMu.Unlock()

	m.standbyMu.Lock()
	standbyMoved := memberIDs[m.standby]
	if standbyMoved {
		m.standby = group.ID()
	}
	m.standbyMu.Unlock()

	m.expMu.Lock()
	m.expanded[group.ID()] = true
	m.expMu.Unlock()
	count := len(m.cues)
	m.mu.Unlock()

	log.Debug("Created group", "number", group.Number(), "children", len(members), "index", first)
	evs := []Event{
		{Kind: EventGroupCreated, CueID: group.ID(), Number: group.Number(), Index: first},
		{Kind: EventCueAdded, CueID: group.ID(), Number: group.Number(), Index: first},
		{Kind: EventCueCountChanged, Count: count},
	}
	if selChanged {
		evs = append(evs, Event{Kind: EventSelectionChanged, Count: 1})
	}
	if standbyMoved {
		evs = append(evs, Event{Kind: EventStandByChanged, CueID: group.ID()})
	}
	m.markModified()
	m.invalidateStats()
	m.emit(evs...)
	return group.ID()
}

// UngroupCues puts a top-level group's children back in its place and
// discards the group. A running group is stopped first.
func (m *Manager) UngroupCues(groupID string) bool {
	m.mu.Lock()
	i := m.indexLocked(groupID)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	group, ok := m.cues[i].(*cue.GroupCue)
	if !ok {
		m.mu.Unlock()
		return false
	}
	if group.IsExecuting() {
		group.Stop(0)
	}
	m.unbindOneLocked(group)
	children := group.TakeChildren()
	m.cues = slices.Replace(m.cues, i, i+1, children...)

	childIDs := make([]string, len(children))
	for j, c := range children {
		childIDs[j] = c.ID()
	}

	m.selMu.Lock()
	selChanged := false
	if j := slices.Index(m.selected, groupID); j >= 0 {
		m.selected = slices.Replace(m.selected, j, j+1, childIDs...)
		selChanged = true
	}
	m.selMu.Unlock()

	m.standbyMu.Lock()
	standbyMoved := m.standby == groupID
	if standbyMoved {
		m.standby = ""
		if len(children) > 0 {
			m.standby = children[0].ID()
		} else {
			m.standby = m.nextExecutableLocked("")
		}
	}
	standby := m.standby
	m.standbyMu.Unlock()

	m.activeMu.Lock()
	m.active = slices.DeleteFunc(m.active, func(c cue.Cue) bool { return c == cue.Cue(group) })
	m.activeMu.Unlock()

	m.expMu.Lock()
	delete(m.expanded, groupID)
	m.expMu.Unlock()
	count := len(m.cues)
	m.mu.Unlock()

	log.Debug("Ungrouped cues", "group", group.Number(), "children", len(children))
	evs := []Event{
		{Kind: EventGroupRemoved, CueID: groupID, Number: group.Number(), Index: i},
		{Kind: EventCueRemoved, CueID: groupID, Number: group.Number(), Index: i},
	}
	for j, c := range children {
		evs = append(evs, Event{Kind: EventCueAdded, CueID: c.ID(), Number: c.Number(), Index: i + j})
	}
	evs = append(evs, Event{Kind: EventCueCountChanged, Count: count})
	if selChanged {
		evs = append(evs, Event{Kind: EventSelectionChanged})
	}
	if standbyMoved {
		evs = append(evs, Event{Kind: EventStandByChanged, CueID: standby})
	}
	m.markModified()
	m.invalidateStats()
	m.emit(evs...)
	return true
}

func (m *Manager) expandedLocked(groupID string) bool {
	expanded, ok := m.expanded[groupID]
	return !ok || expanded
}

// IsGroupExpanded reports the display state of a group. Groups are
// expanded unless collapsed.
func (m *Manager) IsGroupExpanded(groupID string) bool {
	m.expMu.Lock()
	defer m.expMu.Unlock()
	return m.expandedLocked(groupID)
}

func (m *Manager) isGroup(id string) bool {
	c, ok := m.Lookup(id)
	return ok && c.Type() == cue.TypeGroup
}

// SetGroupExpanded records whether a group shows its children.
func (m *Manager) SetGroupExpanded(groupID string, expanded bool) bool {
	if !m.isGroup(groupID) {
		return false
	}
	m.expMu.Lock()
	changed := m.expandedLocked(groupID) != expanded
	m.expanded[groupID] = expanded
	m.expMu.Unlock()
	if changed {
		m.emit(Event{Kind: EventGroupExpansionChanged, CueID: groupID, Expanded: expanded})
	}
	return true
}

func (m *Manager) ToggleGroupExpansion(groupID string) bool {
	return m.SetGroupExpanded(groupID, !m.IsGroupExpanded(groupID))
}

func (m *Manager) ExpandAllGroups()   { m.setAllExpanded(true) }
func (m *Manager) CollapseAllGroups() { m.setAllExpanded(false) }

func (m *Manager) setAllExpanded(expanded bool) {
	var evs []Event
	m.mu.RLock()
	m.expMu.Lock()
	for _, c := range m.allLocked() {
		if c.Type() != cue.TypeGroup {
			continue
		}
		if m.expandedLocked(c.ID()) != expanded {
			evs = append(evs, Event{Kind: EventGroupExpansionChanged, CueID: c.ID(), Expanded: expanded})
		}
		m.expanded[c.ID()] = expanded
	}
	m.expMu.Unlock()
	m.mu.RUnlock()
	m.emit(evs...)
}

// GroupChildren returns the children of any group in the list.
func (m *Manager) GroupChildren(groupID string) []cue.Cue {
	c, ok := m.Lookup(groupID)
	if !ok {
		return nil
	}
	if g, ok := c.(*cue.GroupCue); ok {
		return g.Children()
	}
	return nil
}

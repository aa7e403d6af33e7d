package cuelist

import (
	"strings"

	"github.com/zenibako/cueforge/cue"
)

func (m *Manager) filter(keep func(cue.Cue) bool) []cue.Cue {
	var out []cue.Cue
	for _, c := range m.all() {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// FindCues matches text against number, name and notes, ignoring case.
func (m *Manager) FindCues(text string) []cue.Cue {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil
	}
	return m.filter(func(c cue.Cue) bool {
		return strings.Contains(strings.ToLower(c.Number()), needle) ||
			strings.Contains(strings.ToLower(c.Name()), needle) ||
			strings.Contains(strings.ToLower(c.Notes()), needle)
	})
}

// FindCuesByNumber returns the cues whose number is exactly number.
func (m *Manager) FindCuesByNumber(number string) []cue.Cue {
	number = strings.TrimSpace(number)
	return m.filter(func(c cue.Cue) bool { return c.Number() == number })
}

// FindCuesByName matches a substring of the name, ignoring case.
func (m *Manager) FindCuesByName(name string) []cue.Cue {
	needle := strings.ToLower(strings.TrimSpace(name))
	return m.filter(func(c cue.Cue) bool { return strings.Contains(strings.ToLower(c.Name()), needle) })
}

func (m *Manager) FilterCuesByType(t cue.Type) []cue.Cue {
	return m.filter(func(c cue.Cue) bool { return c.Type() == t })
}

func (m *Manager) FilterCuesByStatus(s cue.Status) []cue.Cue {
	return m.filter(func(c cue.Cue) bool { return c.Status() == s })
}

// TargetDisplayText describes a cue's target for display.
func (m *Manager) TargetDisplayText(c cue.Cue) string {
	if !c.Type().NeedsTarget() {
		return ""
	}
	id := c.TargetID()
	if id == "" {
		return "No target"
	}
	target, ok := m.Lookup(id)
	if !ok {
		return "Missing target"
	}
	return target.DisplayName()
}

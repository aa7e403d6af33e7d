package cuelist

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/templates"
)

// pendingTarget is a cue whose target was given by number and can only be
// resolved once the whole tree exists.
type pendingTarget struct {
	c      cue.Cue
	number string
}

// GenerateCues creates the cue tree described by a template. The tree is
// inserted after req.AnchorID, appended into the group req.ParentID, or
// appended to the list. Targets given by number are resolved against the
// new cues first and then the rest of the list.
func (m *Manager) GenerateCues(req templates.CueGenerationRequest) templates.CueGenerationResult {
	result := templates.CueGenerationResult{
		Success:     true,
		CuesCreated: []templates.CreatedCue{},
		Errors:      []string{},
	}
	fail := func(err error) templates.CueGenerationResult {
		result.Success = false
		result.CuesCreated = []templates.CreatedCue{}
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	number := req.CueNumber
	if number == "" {
		number = req.Template.Number
	}
	if number == "" {
		number = m.NextCueNumber()
	}

	var pending []pendingTarget
	root, created, err := m.createCueFromTemplate(req.Template, number, req.ParentID, &pending)
	if err != nil {
		return fail(err)
	}

	m.mu.Lock()
	index := -1
	if req.ParentID != "" {
		parent, ok := m.findLocked(req.ParentID)
		group, isGroup := parent.(*cue.GroupCue)
		if !ok || !isGroup {
			m.mu.Unlock()
			return fail(fmt.Errorf("parent %s is not a group in this list", req.ParentID))
		}
		group.AddChild(root)
	} else {
		index = len(m.cues)
		if i := m.indexLocked(req.AnchorID); req.AnchorID != "" && i >= 0 {
			index = i + 1
		}
		m.cues = slices.Insert(m.cues, index, root)
	}
	m.bindLocked(root)
	unresolved := m.resolveTargetsLocked(root, pending)
	count := len(m.cues)
	m.mu.Unlock()

	for _, p := range unresolved {
		result.Errors = append(result.Errors, fmt.Sprintf("cue %s: no cue numbered %s to target", p.c.Number(), p.number))
	}

	m.markModified()
	m.invalidateStats()
	if index >= 0 {
		m.emit(
			Event{Kind: EventCueAdded, CueID: root.ID(), Number: root.Number(), Index: index},
			Event{Kind: EventCueCountChanged, Count: count},
		)
	}
	cue.Walk(root, func(c cue.Cue) { m.validate(c) })
	m.refreshBroken()

	result.CuesCreated = created
	return result
}

// createCueFromTemplate builds a cue and its children. Children without a
// number of their own are numbered "<parent>.<n>".
func (m *Manager) createCueFromTemplate(t templates.CueTemplate, number, parentID string, pending *[]pendingTarget) (cue.Cue, []templates.CreatedCue, error) {
	typ, err := cue.ParseType(t.Type)
	if err != nil {
		return nil, nil, err
	}
	c, err := cue.New(typ, m.env())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s cue: %w", t.Type, err)
	}
	c.SetNumber(number)
	if t.Name != "" {
		c.SetName(t.Name)
	}
	if err := setCueProperties(c, t.Properties, pending); err != nil {
		return nil, nil, fmt.Errorf("failed to set properties for cue %s: %w", number, err)
	}

	log.Info("Created cue", "type", typ, "uniqueID", c.ID(), "cueNumber", number)
	created := []templates.CreatedCue{{
		UniqueID:  c.ID(),
		CueNumber: number,
		Name:      t.Name,
		Type:      t.Type,
		ParentID:  parentID,
	}}

	if len(t.Children) == 0 {
		return c, created, nil
	}
	group, ok := c.(*cue.GroupCue)
	if !ok {
		return nil, nil, fmt.Errorf("%s cue %s cannot have children", t.Type, number)
	}
	for i, child := range t.Children {
		childNumber := child.Number
		if childNumber == "" {
			childNumber = fmt.Sprintf("%s.%d", number, i+1)
		}
		kid, kids, err := m.createCueFromTemplate(child, childNumber, c.ID(), pending)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create child cue %d: %w", i, err)
		}
		group.AddChild(kid)
		created = append(created, kids...)
	}
	return c, created, nil
}

// setCueProperties applies the template properties the generator knows.
// Unknown keys are kept as custom properties.
func setCueProperties(c cue.Cue, props map[string]any, pending *[]pendingTarget) error {
	seconds := func(key string, set func(time.Duration)) error {
		v, ok, err := templates.Float(props, key)
		if ok {
			set(time.Duration(v * float64(time.Second)))
		}
		return err
	}

	for key, value := range props {
		var err error
		switch key {
		case templates.PropMode:
			g, ok := c.(*cue.GroupCue)
			if !ok {
				log.Warn("Ignoring group mode on a non-group cue", "number", c.Number())
				continue
			}
			name, _, serr := templates.String(props, key)
			if serr != nil {
				return serr
			}
			mode, perr := cue.ParseGroupMode(name)
			if perr != nil {
				return perr
			}
			g.SetMode(mode)
		case templates.PropDuration:
			err = seconds(key, c.SetDuration)
		case templates.PropPreWait:
			err = seconds(key, c.SetPreWait)
		case templates.PropPostWait:
			err = seconds(key, c.SetPostWait)
		case templates.PropContinueMode:
			var b bool
			b, _, err = templates.Bool(props, key)
			c.SetContinueMode(b)
		case templates.PropFlagged:
			var b bool
			b, _, err = templates.Bool(props, key)
			c.SetFlagged(b)
		case templates.PropArmed:
			// Applied last, once the cue is otherwise complete.
		case templates.PropColor:
			var s string
			if s, _, err = templates.String(props, key); err == nil {
				col, perr := cue.ParseColor(s)
				if perr != nil {
					return perr
				}
				c.SetColor(col)
			}
		case templates.PropNotes:
			var s string
			s, _, err = templates.String(props, key)
			c.SetNotes(s)
		case templates.PropTargetID:
			var s string
			s, _, err = templates.String(props, key)
			c.SetTargetID(s)
		case templates.PropTarget:
			var s string
			if s, _, err = templates.String(props, key); err != nil {
				v, ok, ferr := templates.Float(props, key)
				if ferr != nil || !ok {
					return err
				}
				s, err = formatNumber(v), nil
			}
			*pending = append(*pending, pendingTarget{c: c, number: s})
		case templates.PropFile, templates.PropScript, templates.PropLevel,
			templates.PropCurve, templates.PropStopsTarget, templates.PropLoop:
			err = setVariantProperty(c, props, key)
		default:
			c.SetCustomProperty(key, value)
		}
		if err != nil {
			return err
		}
	}

	if armed, ok, err := templates.Bool(props, templates.PropArmed); err != nil {
		return err
	} else if ok {
		c.SetArmed(armed)
	}
	return nil
}

func setVariantProperty(c cue.Cue, props map[string]any, key string) error {
	switch v := c.(type) {
	case *cue.AudioCue:
		switch key {
		case templates.PropFile:
			s, _, err := templates.String(props, key)
			v.SetFilePath(s)
			return err
		case templates.PropLevel:
			f, _, err := templates.Float(props, key)
			v.SetMainLevel(f)
			return err
		case templates.PropLoop:
			b, _, err := templates.Bool(props, key)
			v.SetLooping(b)
			return err
		}
	case *cue.FadeCue:
		switch key {
		case templates.PropLevel:
			f, _, err := templates.Float(props, key)
			v.SetTargetLevel(f)
			return err
		case templates.PropCurve:
			s, _, err := templates.String(props, key)
			if err != nil {
				return err
			}
			return v.SetCurve(s)
		case templates.PropStopsTarget:
			b, _, err := templates.Bool(props, key)
			v.SetStopsTarget(b)
			return err
		}
	case *cue.ScriptCue:
		if key == templates.PropScript {
			s, _, err := templates.String(props, key)
			v.SetSource(s)
			return err
		}
	}
	log.Warn("Ignoring property for cue type", "property", key, "type", c.Type(), "number", c.Number())
	return nil
}

// resolveTargetsLocked points pending cues at the cue carrying their target
// number, preferring cues from the new tree. It returns what it could not
// resolve. mu must be held.
func (m *Manager) resolveTargetsLocked(root cue.Cue, pending []pendingTarget) []pendingTarget {
	if len(pending) == 0 {
		return nil
	}
	byNumber := make(map[string]string)
	cue.Walk(root, func(c cue.Cue) {
		if _, ok := byNumber[c.Number()]; !ok {
			byNumber[c.Number()] = c.ID()
		}
	})
	existing := make(map[string]string)
	for _, c := range m.allLocked() {
		if _, ok := existing[c.Number()]; !ok {
			existing[c.Number()] = c.ID()
		}
	}

	var unresolved []pendingTarget
	for _, p := range pending {
		id, ok := byNumber[p.number]
		if !ok {
			id, ok = existing[p.number]
		}
		if !ok {
			log.Warn("Target cue not found", "cueNumber", p.c.Number(), "target", p.number)
			unresolved = append(unresolved, p)
			continue
		}
		p.c.SetTargetID(id)
	}
	return unresolved
}

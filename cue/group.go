package cue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// GroupMode decides which children a group fires.
type GroupMode int

const (
	// GroupTimeline fires every child at once.
	GroupTimeline GroupMode = iota
	// GroupStartFirst fires only the first child.
	GroupStartFirst
	// GroupPlaylist fires children one after another.
	GroupPlaylist
)

func (m GroupMode) String() string {
	switch m {
	case GroupTimeline:
		return "timeline"
	case GroupStartFirst:
		return "start_first"
	case GroupPlaylist:
		return "playlist"
	default:
		return fmt.Sprintf("GroupMode(%d)", int(m))
	}
}

func ParseGroupMode(s string) (GroupMode, error) {
	for m := GroupTimeline; m <= GroupPlaylist; m++ {
		if strings.EqualFold(m.String(), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return GroupTimeline, fmt.Errorf("unknown group mode %q", s)
}

// GroupCue owns an ordered list of child cues. It finishes when every
// child it fired has finished or been stopped.
type GroupCue struct {
	Base

	mode     GroupMode
	children []Cue
	unsub    map[string]func()

	runGen  uint64
	fired   map[string]bool
	next    int
	settled bool
}

func newGroup(env Env) *GroupCue {
	g := &GroupCue{unsub: make(map[string]func())}
	g.init(TypeGroup, env, g)
	g.name = "Group"
	g.duration = 0
	return g
}

func (g *GroupCue) Mode() GroupMode { return getField(&g.Base, &g.mode) }

func (g *GroupCue) SetMode(m GroupMode) {
	if m < GroupTimeline || m > GroupPlaylist {
		return
	}
	setField(&g.Base, "mode", &g.mode, m)
}

// AddChild appends c; the group takes ownership of it.
func (g *GroupCue) AddChild(c Cue) {
	unsub := c.Subscribe(g.onChild)
	g.mu.Lock()
	g.children = append(g.children, c)
	g.unsub[c.ID()] = unsub
	g.modified = g.now()
	g.mu.Unlock()
	g.emit(Event{Kind: EventUpdated, Field: "children"})
}

// Children returns the children in order.
func (g *GroupCue) Children() []Cue {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Cue(nil), g.children...)
}

func (g *GroupCue) ChildCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.children)
}

// TakeChildren releases every child to the caller and empties the group.
func (g *GroupCue) TakeChildren() []Cue {
	g.mu.Lock()
	children := g.children
	unsubs := g.unsub
	g.children = nil
	g.unsub = make(map[string]func())
	g.fired = nil
	g.modified = g.now()
	g.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	g.emit(Event{Kind: EventUpdated, Field: "children"})
	return children
}

func (g *GroupCue) executeImpl(gen uint64) {
	if !g.begin(gen) {
		return
	}
	g.mu.Lock()
	g.runGen = gen
	g.fired = make(map[string]bool)
	g.next = 0
	g.settled = false
	children := append([]Cue(nil), g.children...)
	mode := g.mode
	g.mu.Unlock()

	log.Debug("Firing group", "number", g.Number(), "mode", mode, "children", len(children))
	switch mode {
	case GroupTimeline:
		for _, c := range children {
			g.fire(gen, c)
		}
		g.mu.Lock()
		g.next = len(children)
		g.mu.Unlock()
	case GroupStartFirst:
		if len(children) > 0 {
			g.fire(gen, children[0])
		}
		g.mu.Lock()
		g.next = len(children)
		g.mu.Unlock()
	case GroupPlaylist:
		g.fireNext(gen)
	}
	g.settle(gen)
}

// fire triggers one child and tracks it until it is done.
func (g *GroupCue) fire(gen uint64, c Cue) bool {
	if !c.CanExecute() {
		return false
	}
	g.mu.Lock()
	if g.runGen != gen || g.fired == nil {
		g.mu.Unlock()
		return false
	}
	g.fired[c.ID()] = true
	g.mu.Unlock()

	c.Trigger()
	if !c.IsExecuting() {
		g.mu.Lock()
		delete(g.fired, c.ID())
		g.mu.Unlock()
		return false
	}
	return true
}

// fireNext advances a playlist to its next executable child.
func (g *GroupCue) fireNext(gen uint64) {
	for {
		g.mu.Lock()
		if g.runGen != gen || g.next >= len(g.children) || len(g.fired) > 0 {
			g.mu.Unlock()
			return
		}
		c := g.children[g.next]
		g.next++
		g.mu.Unlock()

		if g.fire(gen, c) {
			return
		}
	}
}

func (g *GroupCue) settle(gen uint64) {
	g.mu.Lock()
	done := g.runGen == gen && g.gen == gen && !g.settled &&
		g.fired != nil && len(g.fired) == 0 && g.next >= len(g.children)
	if done {
		g.settled = true
	}
	g.mu.Unlock()
	if done {
		g.complete(gen)
	}
}

func (g *GroupCue) onChild(ev Event) {
	if ev.Kind != EventExecutionFinished && ev.Kind != EventExecutionStopped {
		return
	}
	g.mu.Lock()
	gen := g.runGen
	id := ev.Cue.ID()
	tracked := g.fired != nil && g.fired[id] && g.gen == gen
	if tracked {
		delete(g.fired, id)
	}
	playlist := g.mode == GroupPlaylist
	g.mu.Unlock()
	if !tracked {
		return
	}

	if playlist {
		g.fireNext(gen)
	}
	g.settle(gen)
}

func (g *GroupCue) forget() []Cue {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fired = nil
	return append([]Cue(nil), g.children...)
}

func (g *GroupCue) stopImpl(fade time.Duration) {
	for _, c := range g.forget() {
		if c.IsExecuting() {
			c.Stop(fade)
		}
	}
}

func (g *GroupCue) pauseImpl() {
	for _, c := range g.Children() {
		if c.Status() == StatusPlaying {
			c.Pause()
		}
	}
}

func (g *GroupCue) resumeImpl() {
	for _, c := range g.Children() {
		if c.Status() == StatusPaused {
			c.Resume()
		}
	}
}

func (g *GroupCue) resetImpl() {
	for _, c := range g.forget() {
		c.Reset()
	}
}

func (g *GroupCue) finishImpl() {
	g.mu.Lock()
	g.fired = nil
	g.mu.Unlock()
}

func (g *GroupCue) prepareImpl() error {
	var errs []error
	for _, c := range g.Children() {
		if err := c.Prepare(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.DisplayName(), err))
		}
	}
	return errors.Join(errs...)
}

func (g *GroupCue) encodeExtra(m map[string]any) {
	m["mode"] = g.Mode().String()
	children := make([]json.RawMessage, 0, g.ChildCount())
	for _, c := range g.Children() {
		data, err := c.MarshalJSON()
		if err != nil {
			log.Error("Failed to encode group child", "group", g.Number(), "child", c.Number(), "error", err)
			continue
		}
		children = append(children, data)
	}
	m["children"] = children
}

func (g *GroupCue) decodeExtra(d *decoder) {
	d.str("mode", func(s string) {
		mode, err := ParseGroupMode(s)
		if err != nil {
			log.Warn("Ignoring group mode", "error", err)
			return
		}
		g.SetMode(mode)
	})
}

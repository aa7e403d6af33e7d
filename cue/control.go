package cue

import (
	"errors"
	"fmt"
)

var errDetached = errors.New("cue is not attached to a cue list")

// ControlCue acts on its target through the owning list: Start fires it,
// Stop stops it with its own fade, Goto stands it by and Load prepares it.
type ControlCue struct {
	Base
}

func newControl(t Type, env Env) *ControlCue {
	c := &ControlCue{}
	c.init(t, env, c)
	c.duration = 0
	return c
}

// resolveTarget looks up the target through the controller.
func (b *Base) resolveTarget() (Cue, error) {
	ctl := b.env.Controller
	if ctl == nil {
		return nil, errDetached
	}
	id := b.TargetID()
	if id == "" {
		return nil, fmt.Errorf("%w: no target set", ErrNoTarget)
	}
	target, ok := ctl.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTarget, id)
	}
	return target, nil
}

func (c *ControlCue) executeImpl(gen uint64) {
	target, err := c.resolveTarget()
	if err != nil {
		c.fail(gen, err)
		return
	}
	if !c.begin(gen) {
		return
	}

	ctl := c.env.Controller
	switch c.typ {
	case TypeStart:
		err = ctl.StartCue(target.ID())
	case TypeStop:
		err = ctl.StopCue(target.ID(), FadeDefault)
	case TypeGoto:
		if !ctl.SetStandByCue(target.ID()) {
			err = fmt.Errorf("cannot stand by cue %s", target.DisplayName())
		}
	case TypeLoad:
		err = ctl.PrepareCue(target.ID())
	}
	if err != nil {
		c.fail(gen, err)
	}
	c.complete(gen)
}

package cue

import (
	"fmt"
)

type Option func(*options)

type options struct {
	id     string
	keepID bool
}

// WithID gives a new cue a caller-chosen id instead of a fresh uuid.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// KeepID makes Decode reuse the ids stored in the data.
func KeepID() Option {
	return func(o *options) { o.keepID = true }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a cue of type t. Video, MIDI and Target cues have no
// implementation and return ErrUnsupportedType.
func New(t Type, env Env, opts ...Option) (Cue, error) {
	env = env.withDefaults()
	var c Cue
	switch t {
	case TypeAudio:
		c = newAudio(env)
	case TypeWait:
		c = newWait(env)
	case TypeGroup:
		c = newGroup(env)
	case TypeStart, TypeStop, TypeGoto, TypeLoad:
		c = newControl(t, env)
	case TypeFade:
		c = newFade(env)
	case TypeScript:
		c = newScript(env)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}

	if o := collect(opts); o.id != "" {
		c.base().id = o.id
	}
	return c, nil
}

// Supported reports whether New can build cues of type t.
func Supported(t Type) bool {
	switch t {
	case TypeVideo, TypeMIDI, TypeTarget:
		return false
	}
	return t >= TypeAudio && t <= TypeScript
}

// Walk visits c and, for groups, every descendant depth first.
func Walk(c Cue, fn func(Cue)) {
	fn(c)
	if g, ok := c.(*GroupCue); ok {
		for _, child := range g.Children() {
			Walk(child, fn)
		}
	}
}

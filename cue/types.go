package cue

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedType is returned by New for cue types with no implementation.
	ErrUnsupportedType = errors.New("unsupported cue type")
	// ErrNoTarget is reported by control cues whose target is unset or gone.
	ErrNoTarget = errors.New("cue target not found")
	// ErrNotAudio is reported by fade cues aimed at something other than an audio cue.
	ErrNotAudio = errors.New("fade target is not an audio cue")
)

// Type is the closed set of cue kinds.
type Type int

const (
	TypeAudio Type = iota
	TypeVideo
	TypeMIDI
	TypeWait
	TypeStart
	TypeStop
	TypeGoto
	TypeFade
	TypeGroup
	TypeTarget
	TypeLoad
	TypeScript
)

var typeNames = []string{
	TypeAudio:  "Audio",
	TypeVideo:  "Video",
	TypeMIDI:   "MIDI",
	TypeWait:   "Wait",
	TypeStart:  "Start",
	TypeStop:   "Stop",
	TypeGoto:   "Goto",
	TypeFade:   "Fade",
	TypeGroup:  "Group",
	TypeTarget: "Target",
	TypeLoad:   "Load",
	TypeScript: "Script",
}

// Types lists every cue type in declaration order.
func Types() []Type {
	out := make([]Type, len(typeNames))
	for i := range typeNames {
		out[i] = Type(i)
	}
	return out
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType accepts a type name in any case.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NeedsTarget reports whether cues of this type act on another cue.
func (t Type) NeedsTarget() bool {
	switch t {
	case TypeStart, TypeStop, TypeGoto, TypeFade, TypeTarget, TypeLoad:
		return true
	}
	return false
}

// IsControl reports whether the type only drives other cues.
func (t Type) IsControl() bool {
	switch t {
	case TypeStart, TypeStop, TypeGoto, TypeTarget, TypeLoad:
		return true
	}
	return false
}

// Status is a cue's position in its execution state machine. The numeric
// values are part of the saved file format.
type Status int

const (
	StatusLoaded Status = iota
	StatusPlaying
	StatusPaused
	StatusStopped
	StatusLoading
	StatusBroken
	StatusArmed
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "Loaded"
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusStopped:
		return "Stopped"
	case StatusLoading:
		return "Loading"
	case StatusBroken:
		return "Broken"
	case StatusArmed:
		return "Armed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	for st := StatusLoaded; st <= StatusArmed; st++ {
		if strings.EqualFold(st.String(), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown cue status %q", s)
}

func (s Status) valid() bool {
	return s >= StatusLoaded && s <= StatusArmed
}

// CanExecute holds for Loaded and Armed.
func (s Status) CanExecute() bool {
	return s == StatusLoaded || s == StatusArmed
}

// IsExecuting holds while a cue is waiting, running or paused.
func (s Status) IsExecuting() bool {
	return s == StatusPlaying || s == StatusLoading || s == StatusPaused
}

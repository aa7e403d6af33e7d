package cue

import (
	"time"

	"github.com/zenibako/cueforge/playback"
	"k8s.io/utils/clock"
)

// Controller is what a cue may ask of the list that owns it. Control,
// fade and script cues reach other cues only through it.
type Controller interface {
	Lookup(id string) (Cue, bool)
	StartCue(id string) error
	StopCue(id string, fade time.Duration) error
	PrepareCue(id string) error
	SetStandByCue(id string) bool
	Go()
	Stop()
	Panic()
}

// Env carries the collaborators injected into every cue at construction.
type Env struct {
	Clock      clock.WithTicker
	Engine     playback.Engine
	Controller Controller
}

func (e Env) withDefaults() Env {
	if e.Clock == nil {
		e.Clock = clock.RealClock{}
	}
	return e
}

package cue

import (
	"sync"
	"sync/atomic"
	"time"
)

type EventKind int

const (
	EventUpdated EventKind = iota
	EventStatusChanged
	EventAboutToExecute
	EventExecutionStarted
	// EventActionCompleted fires when the cue's own action is done and any
	// post-wait begins.
	EventActionCompleted
	EventExecutionFinished
	EventExecutionStopped
	EventExecutionPaused
	EventExecutionResumed
	EventExecutionFailed
	EventProgress
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventStatusChanged:
		return "status_changed"
	case EventAboutToExecute:
		return "about_to_execute"
	case EventExecutionStarted:
		return "execution_started"
	case EventActionCompleted:
		return "action_completed"
	case EventExecutionFinished:
		return "execution_finished"
	case EventExecutionStopped:
		return "execution_stopped"
	case EventExecutionPaused:
		return "execution_paused"
	case EventExecutionResumed:
		return "execution_resumed"
	case EventExecutionFailed:
		return "execution_failed"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// Event is a notification from a single cue.
type Event struct {
	Kind     EventKind
	Cue      Cue
	Field    string // EventUpdated: the property that changed
	From, To Status // EventStatusChanged
	Position float64
	Err      error
	At       time.Time
}

// FieldFileLoaded marks updates that only reflect probing a media file.
const FieldFileLoaded = "fileLoaded"

// IsEdit reports whether the event changed a property that is saved.
func (e Event) IsEdit() bool {
	return e.Kind == EventUpdated && e.Field != FieldFileLoaded
}

type subscription struct {
	fn   func(Event)
	dead atomic.Bool
}

// emitter fans events out to subscribers on the emitting goroutine.
type emitter struct {
	mu   sync.Mutex
	subs []*subscription
}

func (e *emitter) subscribe(fn func(Event)) func() {
	s := &subscription{fn: fn}
	e.mu.Lock()
	e.subs = append(e.subs, s)
	e.mu.Unlock()
	return func() {
		s.dead.Store(true)
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, other := range e.subs {
			if other == s {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()
	for _, s := range subs {
		if !s.dead.Load() {
			s.fn(ev)
		}
	}
}

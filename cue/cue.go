package cue

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultNumber   = "1"
	DefaultName     = "Untitled Cue"
	DefaultDuration = 5 * time.Second

	// progressStep is the smallest position change worth a notification.
	progressStep = 0.001
)

// White is the default cue colour.
var White = colorful.Color{R: 1, G: 1, B: 1}

// Cue is implemented by every variant in this package and nowhere else.
type Cue interface {
	ID() string
	Type() Type
	DisplayName() string

	Number() string
	SetNumber(string)
	Name() string
	SetName(string)
	Color() colorful.Color
	SetColor(colorful.Color)
	Notes() string
	SetNotes(string)
	Armed() bool
	SetArmed(bool)
	Flagged() bool
	SetFlagged(bool)
	ContinueMode() bool
	SetContinueMode(bool)
	Duration() time.Duration
	SetDuration(time.Duration)
	PreWait() time.Duration
	SetPreWait(time.Duration)
	PostWait() time.Duration
	SetPostWait(time.Duration)
	TargetID() string
	SetTargetID(string)
	CustomProperty(key string) (any, bool)
	SetCustomProperty(key string, value any)
	CustomProperties() map[string]any
	CreatedTime() time.Time
	ModifiedTime() time.Time
	LastExecutedTime() time.Time

	Status() Status
	SetStatus(Status)
	Position() float64
	SetProgress(float64)
	CanExecute() bool
	IsExecuting() bool

	Prepare() error
	Trigger()
	Stop(fade time.Duration)
	Pause()
	Resume()
	Reset()

	Subscribe(fn func(Event)) (unsubscribe func())
	MarshalJSON() ([]byte, error)
	FromJSON(data []byte) error

	base() *Base
}

// hooks are the variant-specific halves of the execution state machine.
// Base supplies no-op defaults; variants override what they need.
type hooks interface {
	executeImpl(gen uint64)
	stopImpl(fade time.Duration)
	pauseImpl()
	resumeImpl()
	resetImpl()
	finishImpl()
	prepareImpl() error
	encodeExtra(m map[string]any)
	decodeExtra(d *decoder)
}

// Base holds the state shared by all cue variants. It is embedded, never
// used on its own.
type Base struct {
	id   string
	typ  Type
	env  Env
	self Cue
	impl hooks

	mu           sync.Mutex
	number       string
	name         string
	color        colorful.Color
	notes        string
	status       Status
	armed        bool
	flagged      bool
	continueMode bool
	duration     time.Duration
	preWait      time.Duration
	postWait     time.Duration
	position     float64
	targetID     string
	custom       map[string]any
	created      time.Time
	modified     time.Time
	lastExecuted time.Time

	// execution bookkeeping, see execution.go
	gen        uint64
	starting   bool
	restStatus Status
	pending    *pending
	held       *pending

	events emitter
}

func (b *Base) init(t Type, env Env, self interface {
	Cue
	hooks
}) {
	now := env.Clock.Now()
	b.id = uuid.NewString()
	b.typ = t
	b.env = env
	b.self = self
	b.impl = self
	b.number = DefaultNumber
	b.name = DefaultName
	b.color = White
	b.duration = DefaultDuration
	b.status = StatusLoaded
	b.custom = make(map[string]any)
	b.created = now
	b.modified = now
}

func (b *Base) base() *Base { return b }

func (b *Base) now() time.Time { return b.env.Clock.Now() }

func (b *Base) emit(evs ...Event) {
	for _, ev := range evs {
		ev.Cue = b.self
		if ev.At.IsZero() {
			ev.At = b.now()
		}
		b.events.emit(ev)
	}
}

// Subscribe registers fn for this cue's events. Events are delivered on the
// goroutine that caused them; fn must not block.
func (b *Base) Subscribe(fn func(Event)) func() {
	return b.events.subscribe(fn)
}

// setField writes one guarded property and reports it as updated.
func setField[T comparable](b *Base, field string, dst *T, v T) {
	b.mu.Lock()
	if *dst == v {
		b.mu.Unlock()
		return
	}
	*dst = v
	b.modified = b.now()
	b.mu.Unlock()
	b.emit(Event{Kind: EventUpdated, Field: field})
}

func getField[T any](b *Base, src *T) T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *src
}

func (b *Base) ID() string { return b.id }
func (b *Base) Type() Type { return b.typ }

func (b *Base) DisplayName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.number + " " + b.name)
}

func (b *Base) Number() string         { return getField(b, &b.number) }
func (b *Base) SetNumber(n string)     { setField(b, "number", &b.number, n) }
func (b *Base) Name() string           { return getField(b, &b.name) }
func (b *Base) SetName(n string)       { setField(b, "name", &b.name, n) }
func (b *Base) Notes() string          { return getField(b, &b.notes) }
func (b *Base) SetNotes(n string)      { setField(b, "notes", &b.notes, n) }
func (b *Base) Flagged() bool          { return getField(b, &b.flagged) }
func (b *Base) SetFlagged(f bool)      { setField(b, "flagged", &b.flagged, f) }
func (b *Base) ContinueMode() bool     { return getField(b, &b.continueMode) }
func (b *Base) SetContinueMode(c bool) { setField(b, "continueMode", &b.continueMode, c) }
func (b *Base) TargetID() string       { return getField(b, &b.targetID) }
func (b *Base) SetTargetID(id string)  { setField(b, "targetId", &b.targetID, id) }

func (b *Base) Color() colorful.Color { return getField(b, &b.color) }

func (b *Base) SetColor(c colorful.Color) {
	setField(b, "color", &b.color, c.Clamped())
}

// ParseColor reads a #rgb or #rrggbb colour.
func ParseColor(s string) (colorful.Color, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return White, fmt.Errorf("invalid cue colour %q: %w", s, err)
	}
	return c, nil
}

func (b *Base) Armed() bool { return getField(b, &b.armed) }

// SetArmed keeps the armed flag and the Loaded/Armed status in step.
func (b *Base) SetArmed(armed bool) {
	b.mu.Lock()
	if b.armed == armed {
		b.mu.Unlock()
		return
	}
	b.armed = armed
	b.modified = b.now()
	var evs []Event
	switch {
	case armed && b.status == StatusLoaded:
		evs = b.transitionLocked(StatusArmed)
	case !armed && b.status == StatusArmed:
		evs = b.transitionLocked(StatusLoaded)
	}
	b.mu.Unlock()
	b.emit(append([]Event{{Kind: EventUpdated, Field: "armed"}}, evs...)...)
}

func (b *Base) Duration() time.Duration { return getField(b, &b.duration) }
func (b *Base) PreWait() time.Duration  { return getField(b, &b.preWait) }
func (b *Base) PostWait() time.Duration { return getField(b, &b.postWait) }

func (b *Base) SetDuration(d time.Duration) {
	setField(b, "duration", &b.duration, max(d, 0))
}

func (b *Base) SetPreWait(d time.Duration) {
	setField(b, "preWait", &b.preWait, max(d, 0))
}

func (b *Base) SetPostWait(d time.Duration) {
	setField(b, "postWait", &b.postWait, max(d, 0))
}

func (b *Base) CustomProperty(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.custom[key]
	return v, ok
}

// SetCustomProperty stores an arbitrary value; nil removes the key.
func (b *Base) SetCustomProperty(key string, value any) {
	b.mu.Lock()
	if value == nil {
		delete(b.custom, key)
	} else {
		b.custom[key] = value
	}
	b.modified = b.now()
	b.mu.Unlock()
	b.emit(Event{Kind: EventUpdated, Field: "customProperties"})
}

func (b *Base) CustomProperties() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.custom))
	for k, v := range b.custom {
		out[k] = v
	}
	return out
}

func (b *Base) CreatedTime() time.Time      { return getField(b, &b.created) }
func (b *Base) ModifiedTime() time.Time     { return getField(b, &b.modified) }
func (b *Base) LastExecutedTime() time.Time { return getField(b, &b.lastExecuted) }

func (b *Base) Status() Status    { return getField(b, &b.status) }
func (b *Base) CanExecute() bool  { return b.Status().CanExecute() }
func (b *Base) IsExecuting() bool { return b.Status().IsExecuting() }
func (b *Base) Position() float64 { return getField(b, &b.position) }

func (b *Base) SetStatus(s Status) {
	if !s.valid() {
		return
	}
	b.mu.Lock()
	evs := b.transitionLocked(s)
	b.mu.Unlock()
	b.emit(evs...)
}

// transitionLocked moves to a new status and returns the event to emit
// once b.mu is released.
func (b *Base) transitionLocked(to Status) []Event {
	if b.status == to {
		return nil
	}
	from := b.status
	b.status = to
	b.modified = b.now()
	return []Event{{Kind: EventStatusChanged, From: from, To: to}}
}

// SetProgress records the playback position as a fraction of the cue.
func (b *Base) SetProgress(p float64) {
	if math.IsNaN(p) {
		return
	}
	p = min(max(p, 0), 1)
	b.mu.Lock()
	if math.Abs(b.position-p) <= progressStep && p != 0 && p != 1 {
		b.mu.Unlock()
		return
	}
	if b.position == p {
		b.mu.Unlock()
		return
	}
	b.position = p
	b.mu.Unlock()
	b.emit(Event{Kind: EventProgress, Position: p})
}

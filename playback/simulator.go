package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"k8s.io/utils/clock"
)

const (
	DefaultQueueSize   = 256
	DefaultEventBuffer = 1024
	DefaultTick        = 50 * time.Millisecond
)

// SimulatorOptions tunes the simulated engine. Zero values pick defaults.
type SimulatorOptions struct {
	QueueSize   int
	EventBuffer int
	Tick        time.Duration
	// Probe replaces media probing, mostly for tests that have no files.
	Probe func(path string) (FileInfo, error)
}

// Simulator is an Engine that keeps time for each voice without producing
// sound. Commands are consumed by a single render goroutine driven by a
// clock ticker; events are handed to a separate dispatcher goroutine so
// subscribers never stall the render loop.
type Simulator struct {
	clock clock.WithTicker
	opts  SimulatorOptions

	cmds    chan Command
	events  chan Event
	backlog []Event // render goroutine only
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	voices  map[string]*voice
	dropped map[string]int

	subMu   sync.Mutex
	subs    map[string]map[int]func(Event)
	nextSub int

	dropouts atomic.Int64
}

type voice struct {
	cmd      Command
	pos      time.Duration
	end      time.Duration
	last     time.Time
	paused   bool
	fadeLeft time.Duration
	fading   bool
}

// VoiceState is a snapshot of one playing voice.
type VoiceState struct {
	CueID    string
	Position time.Duration
	Level    float64
	Muted    bool
	Paused   bool
	Fading   bool
}

func NewSimulator(clk clock.WithTicker, opts SimulatorOptions) *Simulator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Probe == nil {
		opts.Probe = Probe
	}
	return &Simulator{
		clock:   clk,
		opts:    opts,
		cmds:    make(chan Command, opts.QueueSize),
		events:  make(chan Event, opts.EventBuffer),
		closed:  make(chan struct{}),
		voices:  make(map[string]*voice),
		dropped: make(map[string]int),
		subs:    make(map[string]map[int]func(Event)),
	}
}

func (s *Simulator) Probe(path string) (FileInfo, error) {
	return s.opts.Probe(path)
}

func (s *Simulator) Send(cmd Command) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	select {
	case s.cmds <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Simulator) Subscribe(cueID string, fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	token := s.nextSub
	if s.subs[cueID] == nil {
		s.subs[cueID] = make(map[int]func(Event))
	}
	s.subs[cueID][token] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[cueID], token)
		if len(s.subs[cueID]) == 0 {
			delete(s.subs, cueID)
		}
	}
}

// Dropouts counts position updates discarded because the event buffer was full.
func (s *Simulator) Dropouts() int64 {
	return s.dropouts.Load()
}

func (s *Simulator) Voices() []VoiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VoiceState, 0, len(s.voices))
	for id, v := range s.voices {
		out = append(out, VoiceState{
			CueID:    id,
			Position: v.pos - v.cmd.Start,
			Level:    v.cmd.Level,
			Muted:    v.cmd.Muted,
			Paused:   v.paused,
			Fading:   v.fading,
		})
	}
	return out
}

// Run owns the render loop until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	dispatched := make(chan struct{})
	go s.dispatch(dispatched)

	log.Debug("Playback simulator started", "tick", s.opts.Tick, "queue", s.opts.QueueSize)
	for {
		select {
		case <-ctx.Done():
			s.once.Do(func() { close(s.closed) })
			s.flush()
			close(s.events)
			<-dispatched
			log.Debug("Playback simulator stopped")
			return nil
		case cmd := <-s.cmds:
			s.apply(cmd)
		case <-ticker.C():
			s.advance(s.clock.Now())
		}
	}
}

func (s *Simulator) dispatch(done chan<- struct{}) {
	defer close(done)
	for ev := range s.events {
		s.subMu.Lock()
		handlers := make([]func(Event), 0, len(s.subs[ev.CueID]))
		for _, fn := range s.subs[ev.CueID] {
			handlers = append(handlers, fn)
		}
		s.subMu.Unlock()
		for _, fn := range handlers {
			fn(ev)
		}
	}
}

func (s *Simulator) apply(cmd Command) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd.Kind == CommandPlay {
		end := cmd.End
		if end <= 0 || end > cmd.File.Duration {
			end = cmd.File.Duration
		}
		if cmd.Start >= end {
			s.emit(Event{Kind: EventError, CueID: cmd.CueID,
				Err: fmt.Errorf("start time %v is beyond the end of %s", cmd.Start, cmd.File.Path)})
			return
		}
		if cmd.Speed <= 0 {
			cmd.Speed = 1
		}
		s.voices[cmd.CueID] = &voice{cmd: cmd, pos: cmd.Start, end: end, last: now}
		s.emit(Event{Kind: EventStarted, CueID: cmd.CueID})
		return
	}

	v, ok := s.voices[cmd.CueID]
	if !ok {
		log.Debug("Command for idle voice ignored", "cue", cmd.CueID, "command", cmd.Kind)
		return
	}
	switch cmd.Kind {
	case CommandStop:
		if cmd.Fade > 0 {
			v.fading = true
			v.fadeLeft = cmd.Fade
			return
		}
		delete(s.voices, cmd.CueID)
		s.emit(Event{Kind: EventStopped, CueID: cmd.CueID, Position: v.pos - v.cmd.Start})
	case CommandPause:
		v.paused = true
	case CommandResume:
		v.paused = false
		v.last = now
	case CommandSetRouting:
		v.cmd.Routing = cmd.Routing.Clone()
	case CommandSetLevel:
		v.cmd.Level = cmd.Level
		v.cmd.Muted = cmd.Muted
	}
}

func (s *Simulator) advance(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flush()
	for id, v := range s.voices {
		dt := now.Sub(v.last)
		v.last = now
		if v.paused || dt <= 0 {
			continue
		}
		if v.fading {
			v.fadeLeft -= dt
			if v.fadeLeft <= 0 {
				delete(s.voices, id)
				s.emit(Event{Kind: EventStopped, CueID: id, Position: v.pos - v.cmd.Start})
				continue
			}
		}
		v.pos += time.Duration(float64(dt) * v.cmd.Speed)
		if v.pos >= v.end {
			if v.cmd.Loop {
				span := v.end - v.cmd.Start
				v.pos = v.cmd.Start + (v.pos-v.cmd.Start)%span
			} else {
				delete(s.voices, id)
				s.emit(Event{Kind: EventPosition, CueID: id, Position: v.end - v.cmd.Start})
				s.emit(Event{Kind: EventFinished, CueID: id, Position: v.end - v.cmd.Start})
				continue
			}
		}
		if n := s.dropped[id]; n > 0 && s.emit(Event{Kind: EventDropout, CueID: id, Dropped: n}) {
			delete(s.dropped, id)
		}
		s.emit(Event{Kind: EventPosition, CueID: id, Position: v.pos - v.cmd.Start})
	}
}

// emit never blocks. Position updates are dropped under pressure, anything
// else waits in the backlog for the next tick. Reports whether ev was queued.
func (s *Simulator) emit(ev Event) bool {
	if len(s.backlog) == 0 {
		select {
		case s.events <- ev:
			return true
		default:
		}
	}
	switch ev.Kind {
	case EventPosition:
		s.dropouts.Add(1)
		s.dropped[ev.CueID]++
		return false
	case EventDropout:
		return false
	}
	s.backlog = append(s.backlog, ev)
	return true
}

func (s *Simulator) flush() {
	for len(s.backlog) > 0 {
		select {
		case s.events <- s.backlog[0]:
			s.backlog = s.backlog[1:]
		default:
			return
		}
	}
}

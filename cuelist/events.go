package cuelist

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zenibako/cueforge/cue"
)

// EventKind names a manager notification. The values are stable; the
// journal and the OSC feedback use them verbatim.
type EventKind string

const (
	EventCueAdded              EventKind = "cue_added"
	EventCueRemoved            EventKind = "cue_removed"
	EventCueUpdated            EventKind = "cue_updated"
	EventCueMoved              EventKind = "cue_moved"
	EventCueCountChanged       EventKind = "cue_count_changed"
	EventSelectionChanged      EventKind = "selection_changed"
	EventStandByChanged        EventKind = "standby_changed"
	EventPlaybackStateChanged  EventKind = "playback_state_changed"
	EventExecutionStarted      EventKind = "execution_started"
	EventExecutionFinished     EventKind = "execution_finished"
	EventExecutionFailed       EventKind = "execution_failed"
	EventAllCuesStopped        EventKind = "all_cues_stopped"
	EventGroupExpansionChanged EventKind = "group_expansion_changed"
	EventGroupCreated          EventKind = "group_created"
	EventGroupRemoved          EventKind = "group_removed"
	EventWorkspaceChanged      EventKind = "workspace_changed"
	EventWorkspaceOpened       EventKind = "workspace_opened"
	EventWorkspaceSaved        EventKind = "workspace_saved"
	EventValidationChanged     EventKind = "validation_changed"
	EventBrokenCountChanged    EventKind = "broken_count_changed"
	EventPanic                 EventKind = "panic"
	EventGo                    EventKind = "go"
)

// Event is a manager notification. Only the fields relevant to the kind
// are set.
type Event struct {
	Kind     EventKind
	CueID    string
	Number   string
	Index    int
	Field    string     // cue_updated
	Status   cue.Status // playback_state_changed for a single cue
	Count    int        // cue_count_changed, broken_count_changed
	Expanded bool       // group_expansion_changed
	Path     string     // workspace events
	Err      error      // execution_failed
	At       time.Time
}

type subscriber struct {
	fn   func(Event)
	dead atomic.Bool
}

// bus delivers events in publish order on its own goroutine. The queue is
// unbounded so publishers never block, which lets handlers call back into
// the manager.
type bus struct {
	mu     sync.Mutex
	queue  []Event
	subs   []*subscriber
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newBus() *bus {
	b := &bus{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *bus) subscribe(fn func(Event)) func() {
	s := &subscriber{fn: fn}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return func() {
		s.dead.Store(true)
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, other := range b.subs {
			if other == s {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *bus) publish(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, evs...)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *bus) run() {
	defer close(b.done)
	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		closed := b.closed
		b.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-b.wake
			continue
		}
		for _, ev := range batch {
			b.mu.Lock()
			subs := b.subs
			b.mu.Unlock()
			for _, s := range subs {
				if !s.dead.Load() {
					s.fn(ev)
				}
			}
		}
	}
}

// close delivers what is queued and stops the delivery goroutine.
func (b *bus) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.done
}

package cue

import (
	"time"

	"github.com/charmbracelet/log"
	"k8s.io/utils/clock"
)

// FadeDefault asks Stop to use the cue's own fade-out time.
const FadeDefault time.Duration = -1

// pending is a deferred step of the current run: a pre-wait ending, a
// post-wait ending, or one parked while the cue is paused.
type pending struct {
	timer     clock.Timer
	cancel    chan struct{}
	deadline  time.Time
	remaining time.Duration
	fn        func(gen uint64)
}

// scheduleLocked arms fn to run after d unless the run is cancelled first.
func (b *Base) scheduleLocked(d time.Duration, fn func(gen uint64)) {
	b.cancelPendingLocked()
	gen := b.gen
	p := &pending{
		cancel:   make(chan struct{}),
		deadline: b.now().Add(d),
		fn:       fn,
	}
	timer := b.env.Clock.NewTimer(d)
	p.timer = timer
	b.pending = p
	go func() {
		select {
		case <-timer.C():
			b.mu.Lock()
			live := b.pending == p
			if live {
				b.pending = nil
			}
			b.mu.Unlock()
			if live {
				fn(gen)
			}
		case <-p.cancel:
		}
	}()
}

func (b *Base) cancelPendingLocked() {
	if b.pending != nil {
		b.pending.timer.Stop()
		close(b.pending.cancel)
		b.pending = nil
	}
	b.held = nil
}

// Trigger starts the cue if it is Loaded or Armed; otherwise it does nothing.
func (b *Base) Trigger() {
	b.mu.Lock()
	if !b.status.CanExecute() || b.starting {
		status, number := b.status, b.number
		b.mu.Unlock()
		log.Warn("Cannot execute cue", "number", number, "status", status)
		return
	}
	b.gen++
	gen := b.gen
	b.starting = true
	b.restStatus = b.status
	preWait := b.preWait
	b.mu.Unlock()

	log.Debug("Triggering cue", "number", b.Number(), "type", b.typ, "preWait", preWait)
	b.emit(Event{Kind: EventAboutToExecute})

	if preWait <= 0 {
		b.startAction(gen)
		return
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	evs := b.transitionLocked(StatusLoading)
	b.mu.Unlock()
	b.emit(evs...)

	b.mu.Lock()
	if b.gen == gen {
		b.scheduleLocked(preWait, b.startAction)
	}
	b.mu.Unlock()
}

func (b *Base) startAction(gen uint64) {
	b.mu.Lock()
	live := b.gen == gen
	b.mu.Unlock()
	if live {
		b.impl.executeImpl(gen)
	}
}

// current reports whether gen is still the live run.
func (b *Base) current(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen == gen
}

// begin marks the action as running. Variants call it from executeImpl once
// their effect is under way; it reports false if the run was cancelled.
func (b *Base) begin(gen uint64) bool {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return false
	}
	b.starting = false
	evs := b.transitionLocked(StatusPlaying)
	b.mu.Unlock()
	b.emit(append(evs, Event{Kind: EventExecutionStarted})...)
	return true
}

// complete reports that the variant's action is done; the post-wait, if
// any, runs before the cue is cleaned up.
func (b *Base) complete(gen uint64) {
	b.mu.Lock()
	if b.gen != gen || !b.status.IsExecuting() {
		b.mu.Unlock()
		return
	}
	postWait := b.postWait
	switch {
	case postWait <= 0:
	case b.status == StatusPaused:
		b.held = &pending{remaining: postWait, fn: b.cleanupExecution}
	default:
		b.scheduleLocked(postWait, b.cleanupExecution)
	}
	b.mu.Unlock()

	b.emit(Event{Kind: EventActionCompleted})
	if postWait <= 0 {
		b.cleanupExecution(gen)
	}
}

func (b *Base) cleanupExecution(gen uint64) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.starting = false
	b.lastExecuted = b.now()
	moved := b.position != 1
	b.position = 1
	evs := b.transitionLocked(StatusStopped)
	b.mu.Unlock()

	b.impl.finishImpl()
	if moved {
		evs = append([]Event{{Kind: EventProgress, Position: 1}}, evs...)
	}
	log.Debug("Cue execution finished", "number", b.Number())
	b.emit(append(evs, Event{Kind: EventExecutionFinished})...)
}

// fail reports a failed action. Before the action began the cue returns to
// the status it was triggered from; afterwards the status is left alone.
func (b *Base) fail(gen uint64, err error) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	var evs []Event
	if b.starting {
		b.starting = false
		b.cancelPendingLocked()
		evs = b.transitionLocked(b.restStatus)
	}
	number := b.number
	b.mu.Unlock()

	log.Error("Cue execution failed", "number", number, "type", b.typ, "error", err)
	b.emit(append(evs, Event{Kind: EventExecutionFailed, Err: err})...)
}

// Stop halts a running cue. fade is passed to the variant; FadeDefault
// picks the cue's own fade-out and zero stops at once.
func (b *Base) Stop(fade time.Duration) {
	b.mu.Lock()
	if !b.status.IsExecuting() && !b.starting {
		b.mu.Unlock()
		return
	}
	b.gen++
	b.starting = false
	b.cancelPendingLocked()
	evs := b.transitionLocked(StatusStopped)
	b.mu.Unlock()

	b.impl.stopImpl(fade)
	log.Debug("Cue stopped", "number", b.Number(), "fade", fade)
	b.emit(append(evs, Event{Kind: EventExecutionStopped})...)
}

func (b *Base) Pause() {
	b.mu.Lock()
	if b.status != StatusPlaying {
		status := b.status
		b.mu.Unlock()
		log.Debug("Cannot pause cue", "number", b.Number(), "status", status)
		return
	}
	if p := b.pending; p != nil {
		remaining := max(p.deadline.Sub(b.now()), 0)
		fn := p.fn
		b.cancelPendingLocked()
		b.held = &pending{remaining: remaining, fn: fn}
	}
	evs := b.transitionLocked(StatusPaused)
	b.mu.Unlock()

	b.impl.pauseImpl()
	b.emit(append(evs, Event{Kind: EventExecutionPaused})...)
}

func (b *Base) Resume() {
	b.mu.Lock()
	if b.status != StatusPaused {
		status := b.status
		b.mu.Unlock()
		log.Debug("Cannot resume cue", "number", b.Number(), "status", status)
		return
	}
	if h := b.held; h != nil {
		b.held = nil
		b.scheduleLocked(h.remaining, h.fn)
	}
	evs := b.transitionLocked(StatusPlaying)
	b.mu.Unlock()

	b.impl.resumeImpl()
	b.emit(append(evs, Event{Kind: EventExecutionResumed})...)
}

// Reset abandons any run in progress and returns the cue to Loaded.
func (b *Base) Reset() {
	b.mu.Lock()
	b.gen++
	b.starting = false
	b.cancelPendingLocked()
	moved := b.position != 0
	b.position = 0
	evs := b.transitionLocked(StatusLoaded)
	b.mu.Unlock()

	b.impl.resetImpl()
	if moved {
		evs = append(evs, Event{Kind: EventProgress, Position: 0})
	}
	b.emit(evs...)
}

func (b *Base) Prepare() error {
	return b.impl.prepareImpl()
}

// Defaults for variants with nothing to add. A plain Base completes its
// action immediately.

func (b *Base) executeImpl(gen uint64) {
	if b.begin(gen) {
		b.complete(gen)
	}
}

func (b *Base) stopImpl(time.Duration)     {}
func (b *Base) pauseImpl()                 {}
func (b *Base) resumeImpl()                {}
func (b *Base) resetImpl()                 {}
func (b *Base) finishImpl()                {}
func (b *Base) prepareImpl() error         { return nil }
func (b *Base) encodeExtra(map[string]any) {}
func (b *Base) decodeExtra(*decoder)       {}

package cue

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

const progressInterval = 50 * time.Millisecond

// runner drives a fixed-length action that can be paused. onTick gets the
// elapsed fraction every progressInterval and once more with 1 at the end,
// right before onDone.
type runner struct {
	mu      sync.Mutex
	clock   clock.WithTicker
	total   time.Duration
	elapsed time.Duration
	started time.Time
	stop    chan struct{}
	ticker  clock.Ticker
	timer   clock.Timer
	paused  bool
	onTick  func(float64)
	onDone  func()
}

func (r *runner) start(clk clock.WithTicker, total time.Duration, onTick func(float64), onDone func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haltLocked()
	r.clock = clk
	r.total = max(total, 0)
	r.elapsed = 0
	r.onTick = onTick
	r.onDone = onDone
	r.launchLocked()
}

func (r *runner) launchLocked() {
	stop := make(chan struct{})
	r.stop = stop
	r.paused = false
	r.started = r.clock.Now()
	remaining := r.total - r.elapsed
	onTick, onDone := r.onTick, r.onDone
	if remaining <= 0 {
		r.stop = nil
		r.elapsed = r.total
		go func() {
			onTick(1)
			onDone()
		}()
		return
	}

	ticker := r.clock.NewTicker(progressInterval)
	timer := r.clock.NewTimer(remaining)
	r.ticker, r.timer = ticker, timer
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				r.mu.Lock()
				live := r.stop == stop
				frac := r.fractionLocked()
				r.mu.Unlock()
				if !live {
					return
				}
				onTick(frac)
			case <-timer.C():
				r.mu.Lock()
				live := r.stop == stop
				if live {
					r.haltLocked()
					r.elapsed = r.total
				}
				r.mu.Unlock()
				if live {
					onTick(1)
					onDone()
				}
				return
			}
		}
	}()
}

func (r *runner) fractionLocked() float64 {
	if r.total <= 0 {
		return 1
	}
	elapsed := r.elapsed
	if r.stop != nil {
		elapsed += r.clock.Now().Sub(r.started)
	}
	return min(float64(elapsed)/float64(r.total), 1)
}

func (r *runner) pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return
	}
	r.elapsed += r.clock.Now().Sub(r.started)
	r.haltLocked()
	r.paused = true
}

func (r *runner) resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.launchLocked()
}

func (r *runner) halt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haltLocked()
}

func (r *runner) haltLocked() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.timer.Stop()
		r.ticker, r.timer = nil, nil
	}
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.paused = false
}

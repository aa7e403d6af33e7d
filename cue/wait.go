package cue

import "time"

// WaitCue does nothing for its duration. It is mostly used in groups and
// with continue mode to space other cues out.
type WaitCue struct {
	Base
	run runner
}

func newWait(env Env) *WaitCue {
	w := &WaitCue{}
	w.init(TypeWait, env, w)
	return w
}

func (w *WaitCue) executeImpl(gen uint64) {
	if !w.begin(gen) {
		return
	}
	w.run.start(w.env.Clock, w.Duration(),
		func(frac float64) {
			if w.current(gen) {
				w.SetProgress(frac)
			}
		},
		func() { w.complete(gen) },
	)
}

func (w *WaitCue) stopImpl(time.Duration) { w.run.halt() }
func (w *WaitCue) pauseImpl()             { w.run.pause() }
func (w *WaitCue) resumeImpl()            { w.run.resume() }
func (w *WaitCue) resetImpl()             { w.run.halt() }
func (w *WaitCue) finishImpl()            { w.run.halt() }

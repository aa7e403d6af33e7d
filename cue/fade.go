package cue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fogleman/ease"
)

const DefaultCurve = "linear"

var curves = map[string]ease.Function{
	"linear":     ease.Linear,
	"inQuad":     ease.InQuad,
	"outQuad":    ease.OutQuad,
	"inOutQuad":  ease.InOutQuad,
	"inCubic":    ease.InCubic,
	"outCubic":   ease.OutCubic,
	"inOutCubic": ease.InOutCubic,
	"inSine":     ease.InSine,
	"outSine":    ease.OutSine,
	"inOutSine":  ease.InOutSine,
}

// Curves lists the fade curve names, sorted.
func Curves() []string {
	names := make([]string, 0, len(curves))
	for name := range curves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupCurve(name string) (string, ease.Function, error) {
	for key, fn := range curves {
		if strings.EqualFold(key, name) {
			return key, fn, nil
		}
	}
	return "", nil, fmt.Errorf("unknown fade curve %q", name)
}

// FadeCue moves its target audio cue's live level to targetLevel over the
// cue's duration, optionally stopping the target when it gets there.
type FadeCue struct {
	Base
	targetLevel float64
	curve       string
	stopTarget  bool
	run         runner
}

func newFade(env Env) *FadeCue {
	f := &FadeCue{curve: DefaultCurve}
	f.init(TypeFade, env, f)
	return f
}

func (f *FadeCue) TargetLevel() float64 { return getField(&f.Base, &f.targetLevel) }
func (f *FadeCue) Curve() string        { return getField(&f.Base, &f.curve) }
func (f *FadeCue) StopsTarget() bool    { return getField(&f.Base, &f.stopTarget) }

func (f *FadeCue) SetTargetLevel(level float64) {
	setField(&f.Base, "targetLevel", &f.targetLevel, min(max(level, 0), 1))
}

func (f *FadeCue) SetCurve(name string) error {
	key, _, err := lookupCurve(name)
	if err != nil {
		return err
	}
	setField(&f.Base, "curve", &f.curve, key)
	return nil
}

func (f *FadeCue) SetStopsTarget(stop bool) {
	setField(&f.Base, "stopTargetWhenDone", &f.stopTarget, stop)
}

func (f *FadeCue) executeImpl(gen uint64) {
	target, err := f.resolveTarget()
	if err != nil {
		f.fail(gen, err)
		return
	}
	audio, ok := target.(*AudioCue)
	if !ok {
		f.fail(gen, fmt.Errorf("%w: %s is a %s cue", ErrNotAudio, target.DisplayName(), target.Type()))
		return
	}
	if !f.begin(gen) {
		return
	}

	_, curve, err := lookupCurve(f.Curve())
	if err != nil {
		curve = ease.Linear
	}
	from, to := audio.LiveLevel(), f.TargetLevel()
	stopTarget := f.StopsTarget()

	f.run.start(f.env.Clock, f.Duration(),
		func(frac float64) {
			if !f.current(gen) {
				return
			}
			audio.SetLiveLevel(from + (to-from)*curve(frac))
			f.SetProgress(frac)
		},
		func() {
			if stopTarget && f.current(gen) {
				audio.Stop(0)
			}
			f.complete(gen)
		},
	)
}

func (f *FadeCue) stopImpl(time.Duration) { f.run.halt() }
func (f *FadeCue) pauseImpl()             { f.run.pause() }
func (f *FadeCue) resumeImpl()            { f.run.resume() }
func (f *FadeCue) resetImpl()             { f.run.halt() }
func (f *FadeCue) finishImpl()            { f.run.halt() }

func (f *FadeCue) encodeExtra(m map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m["targetLevel"] = f.targetLevel
	m["curve"] = f.curve
	m["stopTargetWhenDone"] = f.stopTarget
}

func (f *FadeCue) decodeExtra(d *decoder) {
	d.number("targetLevel", f.SetTargetLevel)
	d.str("curve", func(name string) {
		if err := f.SetCurve(name); err != nil {
			_ = f.SetCurve(DefaultCurve)
		}
	})
	d.boolean("stopTargetWhenDone", f.SetStopsTarget)
}

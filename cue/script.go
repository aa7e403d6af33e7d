package cue

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxScriptSteps bounds a script run so a runaway loop cannot hold a show.
const maxScriptSteps = 10_000_000

// Show scripts are short imperative programs, so loops and conditionals
// are allowed at top level.
var scriptOptions = &syntax.FileOptions{
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// ScriptCue runs a Starlark program that can drive the cue list.
type ScriptCue struct {
	Base
	source string
	thread *starlark.Thread
}

func newScript(env Env) *ScriptCue {
	s := &ScriptCue{}
	s.init(TypeScript, env, s)
	s.duration = 0
	return s
}

func (s *ScriptCue) Source() string { return getField(&s.Base, &s.source) }

func (s *ScriptCue) SetSource(src string) {
	setField(&s.Base, "script", &s.source, src)
}

func (s *ScriptCue) executeImpl(gen uint64) {
	src := s.Source()
	if !s.begin(gen) {
		return
	}

	number := s.Number()
	thread := &starlark.Thread{
		Name: "cue " + number,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info(msg, "cue", number)
		},
	}
	thread.SetMaxExecutionSteps(maxScriptSteps)

	s.mu.Lock()
	s.thread = thread
	s.mu.Unlock()

	go func() {
		_, err := starlark.ExecFileOptions(scriptOptions, thread, fmt.Sprintf("cue-%s.star", number), src, s.builtins())

		s.mu.Lock()
		if s.thread == thread {
			s.thread = nil
		}
		s.mu.Unlock()

		if err != nil {
			s.fail(gen, fmt.Errorf("script failed: %w", err))
		}
		s.complete(gen)
	}()
}

func (s *ScriptCue) stopImpl(time.Duration) { s.cancel("stopped") }
func (s *ScriptCue) resetImpl()             { s.cancel("reset") }

func (s *ScriptCue) cancel(reason string) {
	s.mu.Lock()
	thread := s.thread
	s.thread = nil
	s.mu.Unlock()
	if thread != nil {
		thread.Cancel(reason)
	}
}

func (s *ScriptCue) builtins() starlark.StringDict {
	ctl := s.env.Controller

	noArgs := func(name string, fn func()) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			if ctl == nil {
				return nil, errDetached
			}
			fn()
			return starlark.None, nil
		})
	}
	withID := func(name string, fn func(id string) (starlark.Value, error)) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var id string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
				return nil, err
			}
			if ctl == nil {
				return nil, errDetached
			}
			return fn(id)
		})
	}

	return starlark.StringDict{
		"go":    noArgs("go", func() { ctl.Go() }),
		"stop":  noArgs("stop", func() { ctl.Stop() }),
		"panic": noArgs("panic", func() { ctl.Panic() }),
		"start": withID("start", func(id string) (starlark.Value, error) {
			return starlark.None, ctl.StartCue(id)
		}),
		"stop_cue": withID("stop_cue", func(id string) (starlark.Value, error) {
			return starlark.None, ctl.StopCue(id, FadeDefault)
		}),
		"standby": withID("standby", func(id string) (starlark.Value, error) {
			return starlark.Bool(ctl.SetStandByCue(id)), nil
		}),
		"status": withID("status", func(id string) (starlark.Value, error) {
			c, ok := ctl.Lookup(id)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNoTarget, id)
			}
			return starlark.String(c.Status().String()), nil
		}),
		"log": starlark.NewBuiltin("log", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var msg string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg); err != nil {
				return nil, err
			}
			log.Info(msg, "cue", s.Number())
			return starlark.None, nil
		}),
	}
}

func (s *ScriptCue) encodeExtra(m map[string]any) {
	m["script"] = s.Source()
}

func (s *ScriptCue) decodeExtra(d *decoder) {
	d.str("script", s.SetSource)
}

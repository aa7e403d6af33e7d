package cue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/playback"
	testingclock "k8s.io/utils/clock/testing"
)

func newAudioWithEngine(t *testing.T, files map[string]time.Duration) (*AudioCue, *playback.Simulator, *testingclock.FakeClock) {
	t.Helper()
	env, clk := newTestEnv()
	sim := newTestEngine(t, clk, files)
	env.Engine = sim
	// the simulator's ticker must exist before the test moves the clock
	eventually(t, clk.HasWaiters, "simulator should start")
	return mustNew(t, TypeAudio, env).(*AudioCue), sim, clk
}

// TestAudioClamps tests the documented ranges of the audio setters
func TestAudioClamps(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	a := mustNew(t, TypeAudio, env).(*AudioCue)

	a.SetFadeInTime(0)
	assert.Equal(t, MinFadeTime, a.FadeInTime())
	a.SetFadeOutTime(2 * time.Minute)
	assert.Equal(t, MaxFadeTime, a.FadeOutTime())
	a.SetPlaybackSpeed(0)
	assert.Equal(t, MinSpeed, a.PlaybackSpeed())
	a.SetPlaybackSpeed(9)
	assert.Equal(t, MaxSpeed, a.PlaybackSpeed())
	a.SetMainLevel(1.5)
	assert.Equal(t, 1.0, a.MainLevel())
	a.SetMainLevel(-1)
	assert.Equal(t, 0.0, a.MainLevel())
	assert.Equal(t, 0.0, a.LiveLevel())
	a.SetStartTime(-time.Second)
	assert.Zero(t, a.StartTime())
	a.SetSliceMarker(-10)
	assert.Zero(t, a.SliceMarker())
}

// TestAudioRouting tests crosspoint edits
func TestAudioRouting(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	a := mustNew(t, TypeAudio, env).(*AudioCue)

	a.SetCrosspoint(0, 2, 0.5)
	a.SetCrosspoint(1, 3, 2)
	assert.Equal(t, 0.5, a.Level(0, 2))
	assert.Equal(t, 1.0, a.Level(1, 3))

	r := a.Routing()
	r.Set(0, 2, 0.1)
	assert.Equal(t, 0.5, a.Level(0, 2), "routing is returned by copy")

	a.ClearInput(0)
	assert.Zero(t, a.Level(0, 2))
	assert.Equal(t, 1.0, a.Level(1, 3))
}

// TestAudioValidation tests the readiness message for missing and unsupported files
func TestAudioValidation(t *testing.T) {
	t.Parallel()
	a, _, _ := newAudioWithEngine(t, map[string]time.Duration{"/show/intro.wav": 3 * time.Second})

	assert.Equal(t, "no audio file selected", a.ValidationError())

	a.SetFilePath("/show/notes.txt")
	assert.Contains(t, a.ValidationError(), "unsupported audio format")

	a.SetFilePath("/show/missing.wav")
	require.Error(t, a.Load())
	assert.NotEmpty(t, a.ValidationError())
	assert.False(t, a.IsLoaded())

	a.SetFilePath("/show/intro.wav")
	assert.Empty(t, a.ValidationError(), "a new path clears the old load error")
	require.NoError(t, a.Load())
	info, ok := a.FileInfo()
	require.True(t, ok)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 3*time.Second, a.Duration())
	assert.Equal(t, 1.0, a.Level(0, 0))
	assert.Equal(t, 1.0, a.Level(1, 1))
	assert.Zero(t, a.Level(0, 1))
}

// TestAudioLoadFailureBlocksExecution tests that a cue whose file cannot load reports a failure
func TestAudioLoadFailureBlocksExecution(t *testing.T) {
	t.Parallel()
	a, _, _ := newAudioWithEngine(t, nil)
	a.SetFilePath("/show/missing.wav")
	rec := record(a)

	a.Trigger()
	ev, ok := rec.last(EventExecutionFailed)
	require.True(t, ok)
	require.Error(t, ev.Err)
	assert.Equal(t, StatusLoaded, a.Status(), "a failure before the action leaves the cue ready")
	assert.False(t, rec.has(EventExecutionStarted))
}

// TestAudioPreAndPostWait tests the full timeline of an audio cue with both waits
func TestAudioPreAndPostWait(t *testing.T) {
	t.Parallel()
	a, sim, clk := newAudioWithEngine(t, map[string]time.Duration{"/show/thunder.wav": 3 * time.Second})
	a.SetFilePath("/show/thunder.wav")
	a.SetPreWait(2 * time.Second)
	a.SetPostWait(time.Second)
	rec := record(a)

	a.Trigger()
	assert.Equal(t, StatusLoading, a.Status())

	clk.Step(2 * time.Second)
	eventually(t, statusIs(a, StatusPlaying), "audio should start after the pre-wait")
	eventually(t, func() bool { return len(sim.Voices()) == 1 }, "engine should have a voice")
	started, ok := rec.last(EventExecutionStarted)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(2*time.Second), started.At)

	clk.Step(3 * time.Second)
	eventually(t, func() bool { return rec.has(EventActionCompleted) }, "playback should finish")
	assert.Equal(t, StatusPlaying, a.Status(), "post-wait keeps the cue playing")
	completed, _ := rec.last(EventActionCompleted)

	clk.Step(time.Second)
	eventually(t, statusIs(a, StatusStopped), "post-wait should elapse")
	assert.Equal(t, 1.0, a.Position())
	assert.GreaterOrEqual(t, a.LastExecutedTime().Sub(completed.At), time.Second)
	assert.Empty(t, sim.Voices())
}

// TestAudioStopUsesFadeOut tests that a default stop fades through the engine
func TestAudioStopUsesFadeOut(t *testing.T) {
	t.Parallel()
	a, sim, clk := newAudioWithEngine(t, map[string]time.Duration{"/show/pad.wav": time.Minute})
	a.SetFilePath("/show/pad.wav")
	a.SetFadeOutTime(2 * time.Second)

	a.Trigger()
	require.Equal(t, StatusPlaying, a.Status())
	eventually(t, func() bool { return len(sim.Voices()) == 1 }, "engine should have a voice")

	a.Stop(FadeDefault)
	assert.Equal(t, StatusStopped, a.Status())
	eventually(t, func() bool {
		v := sim.Voices()
		return len(v) == 1 && v[0].Fading
	}, "voice should fade")

	clk.Step(2 * time.Second)
	eventually(t, func() bool { return len(sim.Voices()) == 0 }, "voice should end after the fade")
}

// TestAudioLevelFollowsLiveChanges tests that level and mute edits reach a playing voice
func TestAudioLevelFollowsLiveChanges(t *testing.T) {
	t.Parallel()
	a, sim, _ := newAudioWithEngine(t, map[string]time.Duration{"/show/bed.wav": time.Minute})
	a.SetFilePath("/show/bed.wav")
	a.SetMainLevel(0.8)

	a.Trigger()
	eventually(t, func() bool { return len(sim.Voices()) == 1 }, "engine should have a voice")
	assert.Equal(t, 0.8, sim.Voices()[0].Level)

	a.SetLiveLevel(0.25)
	a.SetMuted(true)
	eventually(t, func() bool {
		v := sim.Voices()
		return len(v) == 1 && v[0].Level == 0.25 && v[0].Muted
	}, "engine should follow the live level")
	assert.Equal(t, 0.8, a.MainLevel(), "live changes leave the saved level alone")
}

// TestAudioPauseResume tests that pause holds the engine voice
func TestAudioPauseResume(t *testing.T) {
	t.Parallel()
	a, sim, _ := newAudioWithEngine(t, map[string]time.Duration{"/show/bed.wav": time.Minute})
	a.SetFilePath("/show/bed.wav")

	a.Trigger()
	eventually(t, func() bool { return len(sim.Voices()) == 1 }, "engine should have a voice")

	a.Pause()
	eventually(t, func() bool { return sim.Voices()[0].Paused }, "voice should pause")
	a.Resume()
	eventually(t, func() bool { return !sim.Voices()[0].Paused }, "voice should resume")
	assert.Equal(t, StatusPlaying, a.Status())
}

// TestSupportedFormats tests the extension check used by validation
func TestSupportedFormats(t *testing.T) {
	t.Parallel()
	assert.True(t, playback.IsFormatSupported("/a/b.WAV"))
	assert.True(t, playback.IsFormatSupported("x.flac"))
	assert.False(t, playback.IsFormatSupported("x.aiff"))
	assert.False(t, playback.IsFormatSupported("noext"))
}

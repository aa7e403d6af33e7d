package cuelist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/cue"
)

// TestGoContinueModeDoubleGo tests that two quick gos fire two cues in order
func TestGoContinueModeDoubleGo(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	rec := record(m)

	first, err := m.AddCue(cue.TypeWait, Options{ContinueMode: true})
	require.NoError(t, err)
	ids := addWaits(t, m, 2)
	require.True(t, m.SetStandByCue(first))

	m.Go()
	assert.Equal(t, cue.StatusPlaying, mustCue(t, m, first).Status())
	assert.Equal(t, ids[0], m.StandByID())

	m.Go()
	assert.Equal(t, cue.StatusPlaying, mustCue(t, m, ids[0]).Status())
	assert.Equal(t, cue.StatusLoaded, mustCue(t, m, ids[1]).Status())
	assert.Equal(t, []string{first, ids[0]}, idsOf(m.ActiveCues()))

	require.Eventually(t, func() bool {
		n := 0
		for _, k := range rec.kinds() {
			if k == EventExecutionStarted {
				n++
			}
		}
		return n == 2
	}, waitFor, tick)
}

// TestGoWithoutStandby tests that go does nothing when nothing can fire
func TestGoWithoutStandby(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 1)

	m.Go()
	assert.False(t, m.HasActiveCues())

	require.True(t, m.SetStandByCue(ids[0]))
	m.Go()
	m.Go()
	assert.Len(t, m.ActiveCues(), 1, "a playing standby is not fired twice")
}

// TestFinishedCueLeavesActiveSet tests that completion retires a cue
func TestFinishedCueLeavesActiveSet(t *testing.T) {
	t.Parallel()
	m, clk := newTestManager(t, nil)
	rec := record(m)
	ids := addWaits(t, m, 1)
	c := mustCue(t, m, ids[0])
	c.SetDuration(time.Second)

	require.True(t, m.SetStandByCue(ids[0]))
	m.Go()
	require.True(t, m.HasActiveCues())

	clk.Step(time.Second)
	require.Eventually(t, statusIs(c, cue.StatusStopped), waitFor, tick)
	require.Eventually(t, func() bool { return !m.HasActiveCues() }, waitFor, tick)
	ev := rec.waitFor(t, EventExecutionFinished)
	assert.Equal(t, ids[0], ev.CueID)

	assert.False(t, c.CanExecute(), "a finished cue must be reset before it fires again")
	assert.True(t, m.ResetCue(ids[0]))
	assert.Equal(t, cue.StatusLoaded, c.Status())
	assert.False(t, m.ResetCue(ids[0]), "only stopped cues reset")
}

// TestStopPauseResume tests the transport on the active set
func TestStopPauseResume(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	rec := record(m)
	ids := addWaits(t, m, 2)
	require.NoError(t, m.StartCue(ids[0]))
	require.NoError(t, m.StartCue(ids[1]))

	m.Pause()
	assert.True(t, m.IsPaused())
	for _, id := range ids {
		assert.Equal(t, cue.StatusPaused, mustCue(t, m, id).Status())
	}

	m.Resume()
	assert.False(t, m.IsPaused())
	for _, id := range ids {
		assert.Equal(t, cue.StatusPlaying, mustCue(t, m, id).Status())
	}

	m.Stop()
	assert.False(t, m.HasActiveCues())
	for _, id := range ids {
		assert.Equal(t, cue.StatusStopped, mustCue(t, m, id).Status())
	}
	rec.waitFor(t, EventAllCuesStopped)

	assert.Equal(t, 2, m.ResetAll())
	assert.Zero(t, m.ResetAll())
}

// TestPanicWithStaleActiveSet tests that panic stops everything, tracked or not
func TestPanicWithStaleActiveSet(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	rec := record(m)
	ids := addWaits(t, m, 3)
	group := m.CreateGroupFromCues(ids[2:])
	require.NotEmpty(t, group)

	require.True(t, m.SetStandByCue(ids[0]))
	m.Go()
	untracked := mustCue(t, m, ids[1])
	untracked.Trigger()
	child := mustCue(t, m, ids[2])
	child.Trigger()
	m.addActive(mustCue(t, m, group))

	m.Panic()
	for _, c := range m.all() {
		assert.False(t, c.IsExecuting(), "cue %s still executing", c.Number())
	}
	assert.False(t, m.HasActiveCues())

	ev := rec.waitFor(t, EventPanic)
	assert.Equal(t, 3, ev.Count)
	rec.waitFor(t, EventAllCuesStopped)
}

// TestStartCueErrors tests direct starts of unknown and finished cues
func TestStartCueErrors(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 1)

	require.ErrorIs(t, m.StartCue("nope"), ErrNotFound)
	require.ErrorIs(t, m.StopCue("nope", 0), ErrNotFound)
	require.ErrorIs(t, m.PrepareCue("nope"), ErrNotFound)

	require.NoError(t, m.StartCue(ids[0]))
	require.NoError(t, m.StopCue(ids[0], 0))
	require.ErrorIs(t, m.StartCue(ids[0]), ErrNotExecutable)
}

// TestControlCuesDriveTheList tests start and goto cues fired by go
func TestControlCuesDriveTheList(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 2)
	start, err := m.AddCueAt(cue.TypeStart, 0, Options{TargetID: ids[1], ContinueMode: true})
	require.NoError(t, err)
	jump, err := m.AddCueAt(cue.TypeGoto, 1, Options{TargetID: ids[1]})
	require.NoError(t, err)

	require.True(t, m.SetStandByCue(start))
	m.Go()
	assert.Equal(t, cue.StatusPlaying, mustCue(t, m, ids[1]).Status())
	assert.Equal(t, []string{ids[1]}, idsOf(m.ActiveCues()), "the control cue finishes at once")
	assert.Equal(t, jump, m.StandByID())

	m.Go()
	assert.Equal(t, ids[1], m.StandByID(), "goto moves the standby")
}

// TestAdvanceStandBy tests moving the playhead past cues that cannot fire
func TestAdvanceStandBy(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 3)
	mustCue(t, m, ids[1]).SetStatus(cue.StatusBroken)

	require.True(t, m.SetStandByCue(ids[0]))
	m.AdvanceStandBy()
	assert.Equal(t, ids[2], m.StandByID())
	m.AdvanceStandBy()
	assert.Equal(t, ids[2], m.StandByID(), "no executable cue after the last")

	assert.False(t, m.SetStandByCue("missing"))
	assert.True(t, m.SetStandByCue(""))
	assert.Nil(t, m.StandByCue())
}

// TestRunReconciles tests that the sweep drops cues that stopped silently
func TestRunReconciles(t *testing.T) {
	t.Parallel()
	m, clk := newTestManager(t, nil)
	ids := addWaits(t, m, 1)
	m.addActive(mustCue(t, m, ids[0]))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, m.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, clk.HasWaiters, waitFor, tick)
	require.Eventually(t, func() bool {
		clk.Step(DefaultSweepInterval)
		return !m.HasActiveCues()
	}, waitFor, tick)
}

package cue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseType tests case-insensitive type names and unknown types
func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "Audio", want: TypeAudio},
		{in: "audio", want: TypeAudio},
		{in: " GROUP ", want: TypeGroup},
		{in: "script", want: TypeScript},
		{in: "midi", want: TypeMIDI},
		{in: "memo", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrUnsupportedType, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// TestStatusPredicates tests which statuses may fire and which count as executing
func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    Status
		canExec   bool
		executing bool
	}{
		{StatusLoaded, true, false},
		{StatusArmed, true, false},
		{StatusLoading, false, true},
		{StatusPlaying, false, true},
		{StatusPaused, false, true},
		{StatusStopped, false, false},
		{StatusBroken, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.canExec, tt.status.CanExecute(), tt.status.String())
		assert.Equal(t, tt.executing, tt.status.IsExecuting(), tt.status.String())
	}

	// wire order is part of the file format
	assert.Equal(t, 0, int(StatusLoaded))
	assert.Equal(t, 3, int(StatusStopped))
	assert.Equal(t, 6, int(StatusArmed))
}

// TestFactory tests that every implemented type can be built and the rest are refused
func TestFactory(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()

	for _, typ := range Types() {
		c, err := New(typ, env)
		if !Supported(typ) {
			require.ErrorIs(t, err, ErrUnsupportedType, typ.String())
			assert.Nil(t, c)
			continue
		}
		require.NoError(t, err, typ.String())
		assert.Equal(t, typ, c.Type())
		assert.NotEmpty(t, c.ID())
		assert.Equal(t, StatusLoaded, c.Status())
	}

	c, err := New(TypeWait, env, WithID("fixed"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", c.ID())

	a, b := mustNew(t, TypeWait, env), mustNew(t, TypeWait, env)
	assert.NotEqual(t, a.ID(), b.ID())
}

// TestDefaults tests the values a fresh cue starts with
func TestDefaults(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()

	c := mustNew(t, TypeWait, env)
	assert.Equal(t, DefaultNumber, c.Number())
	assert.Equal(t, DefaultName, c.Name())
	assert.Equal(t, White.Hex(), c.Color().Hex())
	assert.Equal(t, DefaultDuration, c.Duration())
	assert.Equal(t, epoch, c.CreatedTime())
	assert.True(t, c.LastExecutedTime().IsZero())
	assert.Zero(t, c.Position())

	assert.Equal(t, "Group", mustNew(t, TypeGroup, env).Name())
	assert.Zero(t, mustNew(t, TypeStart, env).Duration())
}

// TestSettersClampAndTouch tests clamping and that every edit moves modifiedTime
func TestSettersClampAndTouch(t *testing.T) {
	t.Parallel()
	env, clk := newTestEnv()
	c := mustNew(t, TypeWait, env)
	rec := record(c)

	clk.Step(time.Second)
	c.SetPreWait(-2 * time.Second)
	c.SetPostWait(-time.Millisecond)
	c.SetDuration(-time.Second)
	assert.Zero(t, c.PreWait())
	assert.Zero(t, c.PostWait())
	assert.Zero(t, c.Duration())
	assert.Equal(t, epoch.Add(time.Second), c.ModifiedTime())

	clk.Step(time.Second)
	c.SetName("Preshow")
	assert.Equal(t, epoch.Add(2*time.Second), c.ModifiedTime())
	ev, ok := rec.last(EventUpdated)
	require.True(t, ok)
	assert.Equal(t, "name", ev.Field)
	assert.True(t, ev.IsEdit())
	assert.Same(t, c, ev.Cue)

	// unchanged values do not notify
	before := rec.len()
	c.SetName("Preshow")
	assert.Equal(t, before, rec.len())
}

// TestSetProgress tests clamping and the notification threshold
func TestSetProgress(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	c := mustNew(t, TypeWait, env)
	rec := record(c)

	c.SetProgress(1.7)
	assert.Equal(t, 1.0, c.Position())
	c.SetProgress(-0.3)
	assert.Equal(t, 0.0, c.Position())
	c.SetProgress(0.5)
	n := rec.count(EventProgress)
	c.SetProgress(0.5005)
	assert.Equal(t, n, rec.count(EventProgress), "moves under the threshold are not reported")
	c.SetProgress(0.6)
	assert.Equal(t, n+1, rec.count(EventProgress))
}

// TestArmedFollowsStatus tests that arming moves Loaded to Armed and back
func TestArmedFollowsStatus(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	c := mustNew(t, TypeWait, env)
	rec := record(c)

	c.SetArmed(true)
	assert.True(t, c.Armed())
	assert.Equal(t, StatusArmed, c.Status())
	ev, ok := rec.last(EventStatusChanged)
	require.True(t, ok)
	assert.Equal(t, StatusLoaded, ev.From)
	assert.Equal(t, StatusArmed, ev.To)

	c.SetArmed(false)
	assert.Equal(t, StatusLoaded, c.Status())

	c.SetStatus(StatusBroken)
	c.SetArmed(true)
	assert.Equal(t, StatusBroken, c.Status(), "a broken cue stays broken")
}

// TestColor tests hex parsing and storage
func TestColor(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	c := mustNew(t, TypeWait, env)

	red, err := ParseColor("#ff0000")
	require.NoError(t, err)
	c.SetColor(red)
	assert.Equal(t, "#ff0000", c.Color().Hex())

	_, err = ParseColor("crimson-ish")
	require.Error(t, err)
}

// TestCustomProperties tests setting, copying and removing extension data
func TestCustomProperties(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	c := mustNew(t, TypeWait, env)

	c.SetCustomProperty("dept", "sound")
	c.SetCustomProperty("page", 12.0)
	v, ok := c.CustomProperty("dept")
	require.True(t, ok)
	assert.Equal(t, "sound", v)

	props := c.CustomProperties()
	props["dept"] = "lx"
	v, _ = c.CustomProperty("dept")
	assert.Equal(t, "sound", v, "returned map is a copy")

	c.SetCustomProperty("dept", nil)
	_, ok = c.CustomProperty("dept")
	assert.False(t, ok)
}

// TestUnsubscribe tests that no delivery starts after unsubscribe returns
func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()
	c := mustNew(t, TypeWait, env)

	calls := 0
	unsub := c.Subscribe(func(Event) { calls++ })
	c.SetName("one")
	unsub()
	c.SetName("two")
	assert.Equal(t, 1, calls)
	unsub()
}

// TestEventIsEdit tests that only saved property updates count as edits
func TestEventIsEdit(t *testing.T) {
	t.Parallel()
	assert.True(t, Event{Kind: EventUpdated, Field: "name"}.IsEdit())
	assert.False(t, Event{Kind: EventUpdated, Field: FieldFileLoaded}.IsEdit())
	assert.False(t, Event{Kind: EventStatusChanged}.IsEdit())
	assert.False(t, Event{Kind: EventProgress}.IsEdit())
}

// TestWalk tests depth-first traversal through nested groups
func TestWalk(t *testing.T) {
	t.Parallel()
	env, _ := newTestEnv()

	outer := mustNew(t, TypeGroup, env).(*GroupCue)
	inner := mustNew(t, TypeGroup, env).(*GroupCue)
	a, b, c := mustNew(t, TypeWait, env), mustNew(t, TypeWait, env), mustNew(t, TypeWait, env)
	inner.AddChild(b)
	outer.AddChild(a)
	outer.AddChild(inner)
	outer.AddChild(c)

	var seen []string
	Walk(outer, func(x Cue) { seen = append(seen, x.ID()) })
	assert.Equal(t, []string{outer.ID(), a.ID(), inner.ID(), b.ID(), c.ID()}, seen)
}

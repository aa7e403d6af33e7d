package cuelist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/cue"
)

// TestAddCueNumbering tests automatic numbering and index clamping
func TestAddCueNumbering(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	rec := record(m)

	ids := addWaits(t, m, 2)
	assert.Equal(t, []string{"1", "2"}, numbersOf(m.Cues()))

	_, err := m.AddCue(cue.TypeWait, Options{Number: "10"})
	require.NoError(t, err)
	assert.Equal(t, "11", m.NextCueNumber())

	_, err = m.AddCue(cue.TypeWait, Options{Number: "intro"})
	require.NoError(t, err)
	assert.Equal(t, "11", m.NextCueNumber(), "non-numeric numbers are ignored")

	first, err := m.AddCueAt(cue.TypeWait, -3, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, m.IndexOf(first))
	last, err := m.AddCueAt(cue.TypeWait, 99, Options{})
	require.NoError(t, err)
	assert.Equal(t, m.Count()-1, m.IndexOf(last))

	after, err := m.AddCueAfter(cue.TypeWait, ids[0], Options{})
	require.NoError(t, err)
	assert.Equal(t, m.IndexOf(ids[0])+1, m.IndexOf(after))

	ev := rec.waitFor(t, EventCueCountChanged)
	require.Eventually(t, func() bool {
		ev, _ = rec.last(EventCueCountChanged)
		return ev.Count == 7
	}, waitFor, tick)
}

// TestAddCueOptions tests that options reach the new cue
func TestAddCueOptions(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)

	id, err := m.AddCue(cue.TypeWait, Options{
		Number:       "4.5",
		Name:         "Hold",
		Color:        "#ff0000",
		Notes:        "until applause",
		Duration:     Seconds(2),
		PreWait:      Seconds(0.5),
		ContinueMode: true,
		Armed:        true,
		Properties:   map[string]any{"dept": "stage"},
	})
	require.NoError(t, err)
	c := mustCue(t, m, id)
	assert.Equal(t, "4.5", c.Number())
	assert.Equal(t, "Hold", c.Name())
	assert.Equal(t, "#ff0000", c.Color().Hex())
	assert.Equal(t, "until applause", c.Notes())
	assert.Equal(t, 2*time.Second, c.Duration())
	assert.Equal(t, 500*time.Millisecond, c.PreWait())
	assert.True(t, c.ContinueMode())
	assert.Equal(t, cue.StatusArmed, c.Status())
	v, ok := c.CustomProperty("dept")
	require.True(t, ok)
	assert.Equal(t, "stage", v)

	_, err = m.AddCue(cue.TypeWait, Options{Color: "not a colour"})
	require.Error(t, err)
	_, err = m.AddCue(cue.TypeVideo, Options{})
	require.ErrorIs(t, err, cue.ErrUnsupportedType)
	assert.Equal(t, 1, m.Count())
}

// TestRemoveCuesRepairsState tests that removal fixes selection, standby and targets
func TestRemoveCuesRepairsState(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 3)
	start, err := m.AddCue(cue.TypeStart, Options{TargetID: ids[1]})
	require.NoError(t, err)
	require.Zero(t, m.ValidateAllCues())

	m.SelectCues([]string{ids[1], ids[2]})
	require.True(t, m.SetStandByCue(ids[1]))
	require.NoError(t, m.StartCue(ids[1]))
	require.True(t, m.HasActiveCues())

	assert.True(t, m.RemoveCues([]string{ids[1], "missing"}))
	assert.Equal(t, []string{ids[0], ids[2], start}, idsOf(m.Cues()))
	assert.Equal(t, []string{ids[2]}, m.SelectedIDs())
	assert.Equal(t, ids[0], m.StandByID(), "standby falls back to the first executable cue")
	assert.False(t, m.HasActiveCues())
	assert.Equal(t, cue.StatusBroken, mustCue(t, m, start).Status(), "dangling targets break")
	assert.Equal(t, 1, m.BrokenCueCount())

	assert.False(t, m.RemoveCue("missing"))
}

// TestMoveCues tests the block move arithmetic
func TestMoveCues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		move  []int
		to    int
		want  []int
		moved bool
	}{
		{"forward block", []int{1, 3}, 1, []int{0, 1, 3, 2, 4}, true},
		{"to the end", []int{0}, 5, []int{1, 2, 3, 4, 0}, true},
		{"to the front", []int{4, 2}, 0, []int{2, 4, 0, 1, 3}, true},
		{"past the block", []int{0, 1}, 3, []int{2, 0, 1, 3, 4}, true},
		{"duplicates", []int{2, 2}, 0, []int{2, 0, 1, 3, 4}, true},
		{"out of range", []int{0}, 6, []int{0, 1, 2, 3, 4}, false},
		{"negative", []int{0}, -1, []int{0, 1, 2, 3, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestManager(t, nil)
			ids := addWaits(t, m, 5)

			move := make([]string, len(tt.move))
			for i, j := range tt.move {
				move[i] = ids[j]
			}
			want := make([]string, len(tt.want))
			for i, j := range tt.want {
				want[i] = ids[j]
			}
			assert.Equal(t, tt.moved, m.MoveCues(move, tt.to))
			assert.Equal(t, want, idsOf(m.Cues()))
		})
	}
}

// TestMoveSelectedCues tests moving the selection
func TestMoveSelectedCues(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 3)

	assert.False(t, m.MoveSelectedCues(0), "nothing selected")
	m.SelectCue(ids[2])
	assert.True(t, m.MoveSelectedCues(0))
	assert.Equal(t, []string{ids[2], ids[0], ids[1]}, idsOf(m.Cues()))
}

// TestResequenceCues tests renumbering of the top level
func TestResequenceCues(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	addWaits(t, m, 3)

	m.ResequenceCues("1.5", 0.5)
	assert.Equal(t, []string{"1.5", "2", "2.5"}, numbersOf(m.Cues()))

	m.ResequenceCues("0.1", 0.1)
	assert.Equal(t, []string{"0.1", "0.2", "0.3"}, numbersOf(m.Cues()))

	m.ResequenceCues("next", 0)
	assert.Equal(t, []string{"1", "2", "3"}, numbersOf(m.Cues()))
}

// TestFlattenedCues tests that only expanded groups show their children
func TestFlattenedCues(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 3)
	group := m.CreateGroupFromCues(ids[:2])
	require.NotEmpty(t, group)

	assert.Equal(t, []string{group, ids[0], ids[1], ids[2]}, idsOf(m.FlattenedCues()))
	require.True(t, m.SetGroupExpanded(group, false))
	assert.Equal(t, []string{group, ids[2]}, idsOf(m.FlattenedCues()))
}

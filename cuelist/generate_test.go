package cuelist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenibako/cueforge/cue"
	"github.com/zenibako/cueforge/templates"
)

// TestGenerateCues tests a group template with numbered children and a target by number
func TestGenerateCues(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 2)

	result := m.GenerateCues(templates.CueGenerationRequest{
		AnchorID: ids[0],
		Template: templates.CueTemplate{
			Type: "group",
			Name: "Storm",
			Properties: map[string]any{
				templates.PropMode:  "playlist",
				templates.PropColor: "#336699",
				"department":        "sound",
			},
			Children: []templates.CueTemplate{
				{Type: "wait", Name: "Gap", Properties: map[string]any{templates.PropDuration: 1.5}},
				{Type: "start", Name: "Kick", Properties: map[string]any{templates.PropTarget: "2"}},
				{Type: "stop", Number: "S1", Properties: map[string]any{templates.PropTarget: "3.1", templates.PropArmed: true}},
			},
		},
	})
	require.True(t, result.Success, result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.CuesCreated, 4)

	groupID := result.CuesCreated[0].UniqueID
	assert.Equal(t, "3", result.CuesCreated[0].CueNumber, "next free number")
	assert.Equal(t, []string{"3.1", "3.2", "S1"}, []string{
		result.CuesCreated[1].CueNumber, result.CuesCreated[2].CueNumber, result.CuesCreated[3].CueNumber,
	})
	assert.Equal(t, groupID, result.CuesCreated[1].ParentID)
	assert.Equal(t, []string{ids[0], groupID, ids[1]}, idsOf(m.Cues()), "inserted after the anchor")

	group := mustCue(t, m, groupID).(*cue.GroupCue)
	assert.Equal(t, cue.GroupPlaylist, group.Mode())
	assert.Equal(t, "#336699", group.Color().Hex())
	v, ok := group.CustomProperty("department")
	require.True(t, ok)
	assert.Equal(t, "sound", v)

	children := group.Children()
	assert.Equal(t, 1500*time.Millisecond, children[0].Duration())
	assert.Equal(t, ids[1], children[1].TargetID(), "existing cue found by number")
	assert.Equal(t, children[0].ID(), children[2].TargetID(), "new cues win")
	assert.Equal(t, cue.StatusArmed, children[2].Status())
	assert.True(t, m.HasUnsavedChanges())
}

// TestGenerateCuesIntoGroup tests appending generated cues to an existing group
func TestGenerateCuesIntoGroup(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 1)
	group := m.CreateGroupFromCues(ids)

	result := m.GenerateCues(templates.CueGenerationRequest{
		ParentID:  group,
		CueNumber: "2.5",
		Template: templates.CueTemplate{
			Type:       "audio",
			Properties: map[string]any{templates.PropFile: "/show/a.wav", templates.PropLevel: "0.5", templates.PropLoop: true},
		},
	})
	require.True(t, result.Success, result.Errors)
	children := m.GroupChildren(group)
	require.Len(t, children, 2)
	audio := children[1].(*cue.AudioCue)
	assert.Equal(t, "2.5", audio.Number())
	assert.Equal(t, "/show/a.wav", audio.FilePath())
	assert.Equal(t, 0.5, audio.MainLevel())
	assert.True(t, audio.Looping())
	assert.Equal(t, cue.StatusBroken, audio.Status(), "no engine to load the file")
	assert.Equal(t, 1, m.Count())
}

// TestGenerateCuesFailures tests rejected templates
func TestGenerateCuesFailures(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)
	ids := addWaits(t, m, 1)

	tests := []struct {
		name string
		req  templates.CueGenerationRequest
	}{
		{"unknown type", templates.CueGenerationRequest{Template: templates.CueTemplate{Type: "laser"}}},
		{"unsupported type", templates.CueGenerationRequest{Template: templates.CueTemplate{Type: "video"}}},
		{"bad duration", templates.CueGenerationRequest{Template: templates.CueTemplate{
			Type: "wait", Properties: map[string]any{templates.PropDuration: "long"},
		}}},
		{"bad mode", templates.CueGenerationRequest{Template: templates.CueTemplate{
			Type: "group", Properties: map[string]any{templates.PropMode: "shuffle"},
		}}},
		{"children on a wait", templates.CueGenerationRequest{Template: templates.CueTemplate{
			Type: "wait", Children: []templates.CueTemplate{{Type: "wait"}},
		}}},
		{"parent is not a group", templates.CueGenerationRequest{ParentID: ids[0], Template: templates.CueTemplate{Type: "wait"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.GenerateCues(tt.req)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Errors)
			assert.Empty(t, result.CuesCreated)
		})
	}
	assert.Equal(t, 1, m.Count(), "failed generations add nothing")
}

// TestGenerateCuesUnresolvedTarget tests that a missing target number is reported
func TestGenerateCuesUnresolvedTarget(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, nil)

	result := m.GenerateCues(templates.CueGenerationRequest{
		Template: templates.CueTemplate{Type: "stop", Properties: map[string]any{templates.PropTarget: 42}},
	})
	assert.True(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "42")
	c := mustCue(t, m, result.CuesCreated[0].UniqueID)
	assert.Equal(t, cue.StatusBroken, c.Status())
}

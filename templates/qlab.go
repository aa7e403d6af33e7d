package templates

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// QLabCue is the subset of a QLab cue export that maps onto cue templates.
type QLabCue struct {
	Type            string    `json:"type"`
	Name            string    `json:"name,omitempty"`
	Number          string    `json:"number,omitempty"`
	UniqueID        string    `json:"uniqueID,omitempty"`
	Flagged         bool      `json:"flagged,omitempty"`
	ColorName       string    `json:"colorName,omitempty"`
	Armed           bool      `json:"armed,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Duration        float64   `json:"duration,omitempty"`
	PreWait         float64   `json:"preWait,omitempty"`
	PostWait        float64   `json:"postWait,omitempty"`
	ContinueMode    int       `json:"continueMode,omitempty"` // 0=none, 1=auto-continue, 2=auto-follow
	CueTargetNumber string    `json:"cueTargetNumber,omitempty"`
	FileTarget      string    `json:"fileTarget,omitempty"`
	Mode            int       `json:"mode,omitempty"`
	Cues            []QLabCue `json:"cues,omitempty"`
}

// QLabWorkspace is a QLab workspace export.
type QLabWorkspace struct {
	Name string    `json:"name"`
	Cues []QLabCue `json:"cues"`
}

// QLab cue types with a counterpart here.
const (
	QLabTypeAudio  = "audio"
	QLabTypeFade   = "fade"
	QLabTypeStart  = "start"
	QLabTypeStop   = "stop"
	QLabTypeGoto   = "goto"
	QLabTypeLoad   = "load"
	QLabTypeGroup  = "group"
	QLabTypeList   = "cue list"
	QLabTypeCart   = "cart"
	QLabTypeMemo   = "memo"
	QLabTypeWait   = "wait"
	QLabTypeScript = "script"
)

// QLab group modes
const (
	QLabModeList               = 0
	QLabModeStartFirstAndEnter = 1
	QLabModeStartFirst         = 2
	QLabModeTimeline           = 3
	QLabModeStartRandom        = 4
	QLabModeCart               = 5
	QLabModePlaylist           = 6
)

var qlabColors = map[string]string{
	"red":    "#e0362c",
	"orange": "#f08a24",
	"green":  "#4caf50",
	"blue":   "#2f6fde",
	"purple": "#8e44ad",
}

// FromQLab converts a QLab workspace export into templates. Cue types with
// no counterpart are skipped and listed in the returned warnings.
func FromQLab(data []byte) (string, []CueTemplate, []string, error) {
	var ws QLabWorkspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return "", nil, nil, fmt.Errorf("failed to parse QLab workspace: %w", err)
	}

	var warnings []string
	cues := ws.Cues
	// An export of a whole workspace wraps everything in cue lists.
	if len(cues) > 0 && allLists(cues) {
		var flat []QLabCue
		for _, list := range cues {
			flat = append(flat, list.Cues...)
		}
		cues = flat
	}

	out := make([]CueTemplate, 0, len(cues))
	for _, c := range cues {
		if t, ok := fromQLabCue(c, &warnings); ok {
			out = append(out, t)
		}
	}
	return ws.Name, out, warnings, nil
}

func allLists(cues []QLabCue) bool {
	for _, c := range cues {
		if strings.ToLower(c.Type) != QLabTypeList {
			return false
		}
	}
	return true
}

func fromQLabCue(c QLabCue, warnings *[]string) (CueTemplate, bool) {
	typ, ok := qlabType(strings.ToLower(c.Type))
	if !ok {
		msg := fmt.Sprintf("skipped %s cue %s %q", c.Type, c.Number, c.Name)
		log.Warn("Skipping QLab cue", "type", c.Type, "number", c.Number)
		*warnings = append(*warnings, msg)
		return CueTemplate{}, false
	}

	props := map[string]any{}
	if c.Duration > 0 && typ != "group" {
		props[PropDuration] = c.Duration
	}
	if strings.ToLower(c.Type) == QLabTypeMemo {
		props[PropDuration] = 0.0
	}
	if c.PreWait > 0 {
		props[PropPreWait] = c.PreWait
	}
	if c.PostWait > 0 {
		props[PropPostWait] = c.PostWait
	}
	if c.ContinueMode != 0 {
		props[PropContinueMode] = true
	}
	if hex, ok := qlabColors[strings.ToLower(c.ColorName)]; ok {
		props[PropColor] = hex
	}
	if c.Notes != "" {
		props[PropNotes] = c.Notes
	}
	if c.Flagged {
		props[PropFlagged] = true
	}
	if c.Armed {
		props[PropArmed] = true
	}
	if c.CueTargetNumber != "" {
		props[PropTarget] = c.CueTargetNumber
	}
	if c.FileTarget != "" && typ == "audio" {
		props[PropFile] = c.FileTarget
	}
	if c.UniqueID != "" {
		props["qlabUniqueID"] = c.UniqueID
	}
	if typ == "group" {
		props[PropMode] = qlabGroupMode(c.Mode)
	}

	t := CueTemplate{
		Type:       typ,
		Number:     c.Number,
		Name:       c.Name,
		Properties: props,
	}
	for _, child := range c.Cues {
		if ct, ok := fromQLabCue(child, warnings); ok {
			t.Children = append(t.Children, ct)
		}
	}
	return t, true
}

func qlabType(t string) (string, bool) {
	switch t {
	case QLabTypeAudio, QLabTypeFade, QLabTypeStart, QLabTypeStop, QLabTypeGoto,
		QLabTypeLoad, QLabTypeWait, QLabTypeScript:
		return t, true
	case QLabTypeGroup, QLabTypeList, QLabTypeCart:
		return "group", true
	case QLabTypeMemo:
		return "wait", true
	}
	return "", false
}

func qlabGroupMode(mode int) string {
	switch mode {
	case QLabModeTimeline:
		return "timeline"
	case QLabModePlaylist:
		return "playlist"
	default:
		return "start_first"
	}
}

package templates

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Property keys understood by the generator. Anything else is stored as a
// custom property on the created cue.
const (
	PropMode         = "mode"         // group mode name
	PropDuration     = "duration"     // seconds
	PropPreWait      = "preWait"      // seconds
	PropPostWait     = "postWait"     // seconds
	PropContinueMode = "continueMode" // bool
	PropColor        = "color"        // #rrggbb
	PropNotes        = "notes"
	PropFlagged      = "flagged"
	PropArmed        = "armed"
	PropTarget       = "target"   // target cue number, resolved after creation
	PropTargetID     = "targetId" // target cue id
	PropFile         = "file"     // audio file path
	PropScript       = "script"   // starlark source
	PropLevel        = "level"    // audio main level or fade target level, 0..1
	PropCurve        = "curve"    // fade curve name
	PropStopsTarget  = "stopsTarget"
	PropLoop         = "loop"
)

// CueTemplate describes a cue to generate and, for groups, its children.
type CueTemplate struct {
	Type       string         `json:"type"`                 // cue type: "audio", "wait", "group", ...
	Number     string         `json:"number,omitempty"`     // explicit number, overrides the generated one
	Name       string         `json:"name,omitempty"`       // cue name
	Properties map[string]any `json:"properties,omitempty"` // see the Prop constants
	Children   []CueTemplate  `json:"children,omitempty"`   // child cues (for groups)
}

// CueGenerationRequest asks for a template to be turned into cues.
type CueGenerationRequest struct {
	AnchorID  string      `json:"anchor_id,omitempty"` // insert after this cue; empty appends
	CueNumber string      `json:"cue_number,omitempty"`
	Template  CueTemplate `json:"template"`
	ParentID  string      `json:"parent_id,omitempty"` // optional: group to append into
}

// CueGenerationResult represents the result of cue generation
type CueGenerationResult struct {
	Success     bool         `json:"success"`
	CuesCreated []CreatedCue `json:"cues_created,omitempty"`
	Errors      []string     `json:"errors,omitempty"`
}

// CreatedCue represents a successfully created cue
type CreatedCue struct {
	UniqueID  string `json:"unique_id"`
	CueNumber string `json:"cue_number"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	ParentID  string `json:"parent_id,omitempty"`
}

// Count is the number of cues the template expands to.
func (t CueTemplate) Count() int {
	n := 1
	for _, c := range t.Children {
		n += c.Count()
	}
	return n
}

// Parse reads a single template or an array of templates.
func Parse(data []byte) ([]CueTemplate, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []CueTemplate
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse templates: %w", err)
		}
		return list, nil
	}
	var one CueTemplate
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return []CueTemplate{one}, nil
}

// Float reads a numeric property. JSON numbers, ints and numeric strings
// are accepted.
func Float(props map[string]any, key string) (float64, bool, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case float32:
		return float64(n), true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("property %s: %w", key, err)
		}
		return f, true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false, fmt.Errorf("property %s: %q is not a number", key, n)
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("property %s: unexpected %T", key, v)
}

// Bool reads a boolean property.
func Bool(props map[string]any, key string) (bool, bool, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, false, fmt.Errorf("property %s: unexpected %T", key, v)
	}
	return b, true, nil
}

// String reads a string property.
func String(props map[string]any, key string) (string, bool, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("property %s: unexpected %T", key, v)
	}
	return s, true, nil
}

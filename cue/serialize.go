package cue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON writes the cue in the workspace file format.
func (b *Base) MarshalJSON() ([]byte, error) {
	b.mu.Lock()
	m := map[string]any{
		"id":              b.id,
		"type":            b.typ.String(),
		"number":          b.number,
		"name":            b.name,
		"color":           b.color.Hex(),
		"notes":           b.notes,
		"status":          int(b.status),
		"armed":           b.armed,
		"flagged":         b.flagged,
		"continueMode":    b.continueMode,
		"duration":        seconds(b.duration),
		"preWait":         seconds(b.preWait),
		"postWait":        seconds(b.postWait),
		"currentPosition": b.position,
		"createdTime":     formatTime(b.created),
		"modifiedTime":    formatTime(b.modified),
	}
	if b.targetID != "" {
		m["targetId"] = b.targetID
	}
	if !b.lastExecuted.IsZero() {
		m["lastExecutedTime"] = formatTime(b.lastExecuted)
	}
	if len(b.custom) > 0 {
		custom := make(map[string]any, len(b.custom))
		for k, v := range b.custom {
			custom[k] = v
		}
		m["customProperties"] = custom
	}
	b.mu.Unlock()

	b.impl.encodeExtra(m)
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cue %s: %w", b.id, err)
	}
	return data, nil
}

// FromJSON applies a saved cue onto this one. The id and type are not read.
// Missing fields keep their current values; the first malformed field
// stops decoding and is returned, with earlier fields already applied.
func (b *Base) FromJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse cue: %w", err)
	}
	d := &decoder{raw: raw}

	d.str("number", b.SetNumber)
	d.str("name", b.SetName)
	d.str("notes", b.SetNotes)
	d.str("color", func(s string) {
		c, err := ParseColor(s)
		if err != nil {
			log.Warn("Ignoring cue colour", "error", err)
			return
		}
		b.SetColor(c)
	})
	d.boolean("armed", b.SetArmed)
	d.boolean("flagged", b.SetFlagged)
	d.boolean("continueMode", b.SetContinueMode)
	d.seconds("duration", b.SetDuration)
	d.seconds("preWait", b.SetPreWait)
	d.seconds("postWait", b.SetPostWait)
	d.str("targetId", b.SetTargetID)
	d.number("status", func(f float64) {
		s := Status(int(f))
		if s.IsExecuting() {
			s = StatusLoaded
		}
		b.SetStatus(s)
	})
	d.number("currentPosition", func(f float64) {
		b.mu.Lock()
		b.position = min(max(f, 0), 1)
		b.mu.Unlock()
	})
	d.object("customProperties", func(m map[string]any) {
		b.mu.Lock()
		b.custom = m
		b.mu.Unlock()
	})

	b.impl.decodeExtra(d)

	d.timestamp("createdTime", func(t time.Time) { b.mu.Lock(); b.created = t; b.mu.Unlock() })
	d.timestamp("lastExecutedTime", func(t time.Time) { b.mu.Lock(); b.lastExecuted = t; b.mu.Unlock() })
	d.timestamp("modifiedTime", func(t time.Time) { b.mu.Lock(); b.modified = t; b.mu.Unlock() })
	return d.err
}

// decoder reads optional fields from a cue object. After the first error
// every further read is skipped.
type decoder struct {
	raw map[string]json.RawMessage
	err error
}

func (d *decoder) field(key string, v any) bool {
	if d.err != nil {
		return false
	}
	msg, ok := d.raw[key]
	if !ok || string(msg) == "null" {
		return false
	}
	if err := json.Unmarshal(msg, v); err != nil {
		d.err = fmt.Errorf("invalid cue field %q: %w", key, err)
		return false
	}
	return true
}

func (d *decoder) str(key string, set func(string)) {
	var s string
	if d.field(key, &s) {
		set(s)
	}
}

func (d *decoder) boolean(key string, set func(bool)) {
	var v bool
	if d.field(key, &v) {
		set(v)
	}
}

func (d *decoder) number(key string, set func(float64)) {
	var f float64
	if d.field(key, &f) {
		set(f)
	}
}

func (d *decoder) integer(key string, set func(int)) {
	var n int
	if d.field(key, &n) {
		set(n)
	}
}

func (d *decoder) seconds(key string, set func(time.Duration)) {
	d.number(key, func(f float64) { set(fromSeconds(f)) })
}

func (d *decoder) object(key string, set func(map[string]any)) {
	var m map[string]any
	if d.field(key, &m) {
		set(m)
	}
}

func (d *decoder) into(key string, v any) bool {
	return d.field(key, v)
}

// timestamp never fails; a malformed value becomes the zero time.
func (d *decoder) timestamp(key string, set func(time.Time)) {
	if d.err != nil {
		return
	}
	var s string
	msg, ok := d.raw[key]
	if !ok || json.Unmarshal(msg, &s) != nil {
		return
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t = time.Time{}
	}
	set(t)
}

// Decode builds a cue of the type named in data. Group children are
// decoded recursively. Ids are regenerated unless KeepID is given.
func Decode(data []byte, env Env, opts ...Option) (Cue, error) {
	var head struct {
		ID       string            `json:"id"`
		Type     string            `json:"type"`
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse cue: %w", err)
	}
	t, err := ParseType(head.Type)
	if err != nil {
		return nil, err
	}

	o := collect(opts)
	createOpts := []Option{}
	if o.keepID && head.ID != "" {
		createOpts = append(createOpts, WithID(head.ID))
	}
	c, err := New(t, env, createOpts...)
	if err != nil {
		return nil, err
	}
	if err := c.FromJSON(data); err != nil {
		return c, err
	}

	if g, ok := c.(*GroupCue); ok {
		for i, childData := range head.Children {
			child, err := Decode(childData, env, opts...)
			if err != nil {
				return c, fmt.Errorf("failed to decode child %d of group %s: %w", i, c.Number(), err)
			}
			g.AddChild(child)
		}
	}
	return c, nil
}

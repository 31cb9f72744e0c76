package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/user/quickbuttons/internal/types"
)

// CurrentSchemaVersion is the document version written by this build.
const CurrentSchemaVersion = 3

// Document is the in-memory form of the configuration file. Every top-level
// key other than the button list and its bookkeeping is kept as raw JSON in
// Prefs, so preferences this build does not understand survive a save.
type Document struct {
	SchemaVersion int
	NextID        types.ButtonID
	Buttons       []types.Button
	Prefs         map[string]json.RawMessage
}

var reservedKeys = map[string]bool{
	"schemaVersion": true,
	"nextId":        true,
	"buttons":       true,
}

// Defaults returns the document written on first run.
func Defaults() *Document {
	return &Document{
		SchemaVersion: CurrentSchemaVersion,
		NextID:        1,
		Buttons:       []types.Button{},
		Prefs: map[string]json.RawMessage{
			"window":   json.RawMessage(`{"alwaysOnTop":true,"geometry":"220x110"}`),
			"theme":    json.RawMessage(`"dark"`),
			"language": json.RawMessage(`"en"`),
			"volume":   json.RawMessage(`1`),
		},
	}
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Prefs)+3)
	for k, v := range d.Prefs {
		if !reservedKeys[k] {
			out[k] = v
		}
	}
	out["schemaVersion"] = d.SchemaVersion
	out["nextId"] = d.NextID
	buttons := d.Buttons
	if buttons == nil {
		buttons = []types.Button{}
	}
	out["buttons"] = buttons
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{Prefs: make(map[string]json.RawMessage)}
	if v, ok := raw["schemaVersion"]; ok {
		if err := json.Unmarshal(v, &d.SchemaVersion); err != nil {
			return fmt.Errorf("schemaVersion: %w", err)
		}
	}
	if v, ok := raw["nextId"]; ok {
		if err := json.Unmarshal(v, &d.NextID); err != nil {
			return fmt.Errorf("nextId: %w", err)
		}
	}
	if v, ok := raw["buttons"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &d.Buttons); err != nil {
			return fmt.Errorf("buttons: %w", err)
		}
	}
	if d.Buttons == nil {
		d.Buttons = []types.Button{}
	}
	for k, v := range raw {
		if !reservedKeys[k] {
			d.Prefs[k] = append(json.RawMessage(nil), v...)
		}
	}
	return nil
}

// Encode renders the document the way it is stored on disk: two-space
// indentation, sorted keys, trailing newline.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := &Document{
		SchemaVersion: d.SchemaVersion,
		NextID:        d.NextID,
		Buttons:       make([]types.Button, len(d.Buttons)),
		Prefs:         make(map[string]json.RawMessage, len(d.Prefs)),
	}
	for i, b := range d.Buttons {
		c.Buttons[i] = b.Clone()
	}
	for k, v := range d.Prefs {
		c.Prefs[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

// internal/types/models.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ButtonType is the closed set of action kinds a button can perform.
type ButtonType string

const (
	TypeWebsite ButtonType = "website"
	TypeShell   ButtonType = "shell"
	TypePython  ButtonType = "python_script"
	TypeMusic   ButtonType = "music"
	TypePost    ButtonType = "post"
	TypeLLM     ButtonType = "llm"
	TypeTimer   ButtonType = "timer"
	TypeApp     ButtonType = "app_launcher"
	TypePing    ButtonType = "ping"
	TypeHTTP    ButtonType = "http_test"
)

// ButtonTypes lists every known type in display order.
var ButtonTypes = []ButtonType{
	TypeWebsite, TypeShell, TypePython, TypeMusic, TypePost, TypeLLM, TypeTimer,
	TypeApp, TypePing, TypeHTTP,
}

var typeAliases = map[string]ButtonType{
	"shellcommand": TypeShell,
	"pythonscript": TypePython,
	"postrequest":  TypePost,
	"llmchat":      TypeLLM,
	"python":       TypePython,
	"chat":         TypeLLM,
	"pomodoro":     TypeTimer,
	"countdown":    TypeTimer,
	"http":         TypePost,
	"url":          TypeWebsite,
	"audio":        TypeMusic,
	"sound":        TypeMusic,
	"command":      TypeShell,
	"script":       TypePython,
	"app":          TypeApp,
	"applauncher":  TypeApp,
	"launcher":     TypeApp,
	"httptest":     TypeHTTP,
}

// Known reports whether t is one of ButtonTypes.
func (t ButtonType) Known() bool {
	for _, k := range ButtonTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ParseButtonType accepts the wire tag or a common alias, case-insensitively.
func ParseButtonType(s string) (ButtonType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t := ButtonType(key); t.Known() {
		return t, nil
	}
	if t, ok := typeAliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown button type %q", s)
}

// Button is one entry of the configuration document. Fields the program does
// not know about are kept in Extra and written back unchanged.
type Button struct {
	ID       ButtonID
	Type     ButtonType
	Label    string
	Icon     string
	Order    int
	Params   Params
	Schedule string
	Extra    map[string]json.RawMessage
}

var buttonKeys = map[string]bool{
	"id": true, "type": true, "label": true, "icon": true,
	"order": true, "params": true, "schedule": true,
}

func (b Button) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Extra)+7)
	for k, v := range b.Extra {
		if !buttonKeys[k] {
			out[k] = v
		}
	}
	out["id"] = b.ID
	out["type"] = b.Type
	out["label"] = b.Label
	out["icon"] = b.Icon
	out["order"] = b.Order
	params := b.Params
	if params == nil {
		params = Params{}
	}
	out["params"] = params
	if b.Schedule != "" {
		out["schedule"] = b.Schedule
	}
	return json.Marshal(out)
}

func (b *Button) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Button{}
	fields := []struct {
		key string
		dst any
	}{
		{"id", &b.ID},
		{"type", &b.Type},
		{"label", &b.Label},
		{"icon", &b.Icon},
		{"order", &b.Order},
		{"schedule", &b.Schedule},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("button field %s: %w", f.key, err)
		}
	}
	if v, ok := raw["params"]; ok && string(v) != "null" {
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		if err := dec.Decode(&b.Params); err != nil {
			return fmt.Errorf("button field params: %w", err)
		}
	}
	if b.Params == nil {
		b.Params = Params{}
	}
	for k, v := range raw {
		if buttonKeys[k] {
			continue
		}
		if b.Extra == nil {
			b.Extra = make(map[string]json.RawMessage)
		}
		b.Extra[k] = append(json.RawMessage(nil), v...)
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with b.
func (b Button) Clone() Button {
	c := b
	c.Params = b.Params.Clone()
	if b.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(b.Extra))
		for k, v := range b.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// DisplayName is the label, or a type-derived fallback for unlabeled buttons.
func (b Button) DisplayName() string {
	if b.Label != "" {
		return b.Label
	}
	return fmt.Sprintf("%s #%d", b.Type, b.ID)
}

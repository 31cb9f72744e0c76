package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ListValues flattens the preferences of doc into dot-separated keys. Button
// definitions and bookkeeping fields are not preferences and are omitted.
func ListValues(doc *Document, mask bool) (map[string]any, error) {
	nested := make(map[string]any, len(doc.Prefs))
	for k, raw := range doc.Prefs {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode preference %s: %w", k, err)
		}
		nested[k] = v
	}
	flat := Flatten(nested)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns the preference at a dot-separated key. Secrets are masked.
func GetValue(doc *Document, key string) (any, error) {
	flat, err := ListValues(doc, true)
	if err != nil {
		return nil, err
	}
	if v, ok := flat[key]; ok {
		return v, nil
	}
	// A key naming an object returns the whole subtree.
	nested, err := ListValues(doc, false)
	if err != nil {
		return nil, err
	}
	sub := make(map[string]any)
	for k, v := range MaskSecrets(nested) {
		if rest, ok := strings.CutPrefix(k, key+"."); ok {
			sub[rest] = v
		}
	}
	if len(sub) == 0 {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return Unflatten(sub), nil
}

// SetValue stores value at a dot-separated preference key. value is parsed
// as JSON when it is valid JSON (numbers, booleans, objects) and stored as a
// plain string otherwise.
func SetValue(doc *Document, key, value string) error {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid config key: %q", key)
		}
	}
	if reservedKeys[parts[0]] {
		return fmt.Errorf("%s is managed by the button commands", parts[0])
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	if len(parts) == 1 {
		return doc.SetPref(key, parsed)
	}

	var root map[string]any
	if raw, ok := doc.Prefs[parts[0]]; ok {
		if err := json.Unmarshal(raw, &root); err != nil {
			return fmt.Errorf("%s is not an object", parts[0])
		}
	}
	if root == nil {
		root = make(map[string]any)
	}
	cur := root
	for _, p := range parts[1 : len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = parsed
	return doc.SetPref(parts[0], root)
}

package config

import (
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"window": map[string]any{
			"geometry":    "220x110",
			"alwaysOnTop": true,
		},
		"theme": "dark",
	}
	got := Flatten(m)
	if got["window.geometry"] != "220x110" {
		t.Errorf("expected window.geometry=220x110, got %v", got["window.geometry"])
	}
	if got["window.alwaysOnTop"] != true {
		t.Errorf("expected window.alwaysOnTop=true, got %v", got["window.alwaysOnTop"])
	}
	if got["theme"] != "dark" {
		t.Errorf("expected theme=dark, got %v", got["theme"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_EmptyNestedMap(t *testing.T) {
	got := Flatten(map[string]any{"http": map[string]any{}})
	if len(got) != 0 {
		t.Errorf("expected empty nested map to vanish, got %v", got)
	}
}

func TestUnflatten_DeeplyNested(t *testing.T) {
	got := Unflatten(map[string]any{"a.b.c": 1.0, "a.d": "x"})
	a, ok := got["a"].(map[string]any)
	if !ok {
		t.Fatalf("expected a to be a map, got %T", got["a"])
	}
	b, ok := a["b"].(map[string]any)
	if !ok {
		t.Fatalf("expected a.b to be a map, got %T", a["b"])
	}
	if b["c"] != 1.0 {
		t.Errorf("expected a.b.c=1, got %v", b["c"])
	}
	if a["d"] != "x" {
		t.Errorf("expected a.d=x, got %v", a["d"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"http":     map[string]any{"enabled": true, "listen": "127.0.0.1:7321"},
		"telegram": map[string]any{"token": "123:abc", "chatId": 42.0},
		"volume":   0.5,
	}
	got := Unflatten(Flatten(original))
	http := got["http"].(map[string]any)
	if http["listen"] != "127.0.0.1:7321" || http["enabled"] != true {
		t.Errorf("http mismatch: %v", http)
	}
	tg := got["telegram"].(map[string]any)
	if tg["token"] != "123:abc" || tg["chatId"] != 42.0 {
		t.Errorf("telegram mismatch: %v", tg)
	}
	if got["volume"] != 0.5 {
		t.Errorf("volume mismatch: %v", got["volume"])
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"telegram.token":  "123456:ABCdefGHIjkl",
		"llm.apiKey":      "sk-test123456",
		"other.apiKey":    "ab",
		"telegram.chatId": 42.0,
		"theme":           "dark",
		"empty.apiKey":    "",
	}
	got := MaskSecrets(flat)
	if got["telegram.token"] != "***Ijkl" {
		t.Errorf("expected telegram.token=***Ijkl, got %v", got["telegram.token"])
	}
	if got["llm.apiKey"] != "***3456" {
		t.Errorf("expected llm.apiKey=***3456, got %v", got["llm.apiKey"])
	}
	if got["other.apiKey"] != "***ab" {
		t.Errorf("expected ***ab for short secret, got %v", got["other.apiKey"])
	}
	if got["empty.apiKey"] != "" {
		t.Errorf("expected empty secret to remain empty, got %v", got["empty.apiKey"])
	}
	if got["telegram.chatId"] != 42.0 || got["theme"] != "dark" {
		t.Errorf("non-secret values changed: %v", got)
	}
}

func TestIsSecretKey(t *testing.T) {
	for _, k := range []string{"telegram.token", "llm.apiKey", "openrouter.apiKey"} {
		if !IsSecretKey(k) {
			t.Errorf("expected %s to be secret", k)
		}
	}
	for _, k := range []string{"theme", "telegram.chatId", "tokens"} {
		if IsSecretKey(k) {
			t.Errorf("expected %s not to be secret", k)
		}
	}
}

package config

import (
	"strings"
)

// secretKeys are preference keys masked by `config list|get` even though
// they do not follow the apiKey/token naming rule.
var secretKeys = map[string]bool{
	"telegram.token": true,
	"llm.apiKey":     true,
}

// IsSecretKey reports whether a dot-separated preference key holds a
// credential. Keys ending in apiKey or .token count as secrets.
func IsSecretKey(key string) bool {
	if secretKeys[key] {
		return true
	}
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, "apikey") || strings.HasSuffix(lower, ".token")
}

// Flatten turns nested preferences into dot-separated keys:
// {"http": {"listen": ":7321"}} becomes {"http.listen": ":7321"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	walk(nil, m, out)
	return out
}

func walk(path []string, m map[string]any, out map[string]any) {
	for k, v := range m {
		keyPath := append(path[:len(path):len(path)], k)
		if nested, ok := v.(map[string]any); ok {
			walk(keyPath, nested, out)
			continue
		}
		out[strings.Join(keyPath, ".")] = v
	}
}

// Unflatten is the inverse of Flatten. A scalar sitting where a key path
// needs an object is replaced by that object.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			node = objectAt(node, part)
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

func objectAt(m map[string]any, key string) map[string]any {
	if child, ok := m[key].(map[string]any); ok {
		return child
	}
	child := make(map[string]any)
	m[key] = child
	return child
}

// MaskSecrets copies flat, replacing non-empty secret strings with "***"
// followed by their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, isString := v.(string)
		if !IsSecretKey(k) || !isString || s == "" {
			out[k] = v
			continue
		}
		out[k] = "***" + s[max(0, len(s)-4):]
	}
	return out
}

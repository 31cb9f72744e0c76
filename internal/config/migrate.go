package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// migration upgrades a document from version `from` to from+1. apply
// receives a private deep copy and returns the upgraded document; keys it
// does not recognise must be carried over.
type migration struct {
	from  int
	apply func(doc map[string]any) (map[string]any, error)
}

var migrations = []migration{
	{from: 0, apply: migrateLegacyButtons},
	{from: 1, apply: migrateNextID},
	{from: 2, apply: migrateTimerSeconds},
}

// migrate runs every upward transform from version to CurrentSchemaVersion.
// Documents from a newer build are returned unchanged.
func migrate(doc map[string]any, version int) (map[string]any, error) {
	for version < CurrentSchemaVersion {
		var step *migration
		for i := range migrations {
			if migrations[i].from == version {
				step = &migrations[i]
				break
			}
		}
		if step == nil {
			return nil, fmt.Errorf("%w: no migration from version %d", ErrMigrationFailed, version)
		}
		out, err := step.apply(deepCopy(doc).(map[string]any))
		if err != nil {
			return nil, fmt.Errorf("%w: v%d to v%d: %w", ErrMigrationFailed, version, version+1, err)
		}
		version++
		out["schemaVersion"] = json.Number(strconv.Itoa(version))
		doc = out
	}
	return doc, nil
}

// documentVersion reads schemaVersion; documents without one predate
// versioning.
func documentVersion(doc map[string]any) int {
	n, ok := toInt(doc["schemaVersion"])
	if !ok {
		return 0
	}
	return int(n)
}

// legacyParams maps the flat per-type keys of unversioned documents onto
// params names.
var legacyParams = map[string]map[string]string{
	"shell":         {"shell_cmd": "command"},
	"website":       {"url": "url"},
	"python_script": {"script": "script", "args": "args"},
	"music":         {"music": "file"},
	"post":          {"post_url": "url", "post_headers": "headers", "post_body": "body"},
	"llm": {
		"llm_provider": "provider",
		"llm_api_key":  "apiKey",
		"llm_model":    "model",
		"llm_context":  "system",
		"llm_endpoint": "endpoint",
	},
	"timer": {"timer_duration": "duration"},
	"pomodoro": {
		"work_duration":              "workMinutes",
		"short_break_duration":       "shortBreakMinutes",
		"long_break_duration":        "longBreakMinutes",
		"sessions_before_long_break": "longBreakEvery",
	},
	"app_launcher": {"app_path": "path", "args": "args"},
	"ping":         {"ping_host": "host", "ping_count": "count"},
	"http_test":    {"test_url": "url", "timeout": "timeoutSeconds"},
}

// legacyTypeHints infers the type of an untyped legacy button from the first
// type-specific key it carries. Untyped buttons without any hint were
// python scripts.
var legacyTypeHints = []struct{ key, typ string }{
	{"shell_cmd", "shell"},
	{"post_url", "post"},
	{"llm_model", "llm"},
	{"llm_api_key", "llm"},
	{"music", "music"},
	{"timer_duration", "timer"},
	{"work_duration", "pomodoro"},
	{"app_path", "app_launcher"},
	{"ping_host", "ping"},
	{"test_url", "http_test"},
	{"script", "python_script"},
	{"url", "website"},
}

const legacyDefaultType = "python_script"

func inferLegacyType(legacy map[string]any) string {
	for _, h := range legacyTypeHints {
		if _, ok := legacy[h.key]; ok {
			return h.typ
		}
	}
	return legacyDefaultType
}

var legacyPrefs = map[string]string{
	"python_executable": "pythonExecutable",
	"timer_sound":       "timerSound",
	"log_level":         "logLevel",
}

func migrateLegacyButtons(doc map[string]any) (map[string]any, error) {
	for from, to := range legacyPrefs {
		v, ok := doc[from]
		if !ok {
			continue
		}
		if _, exists := doc[to]; !exists {
			doc[to] = v
		}
		delete(doc, from)
	}
	if geo, ok := doc["window_geometry"].(string); ok {
		if _, exists := doc["window"]; !exists {
			doc["window"] = map[string]any{"geometry": geo}
			delete(doc, "window_geometry")
		}
	}

	list, _ := doc["buttons"].([]any)
	out := make([]any, 0, len(list))
	for i, item := range list {
		legacy, _ := item.(map[string]any)
		out = append(out, upgradeLegacyButton(legacy, i))
	}
	doc["buttons"] = out
	return doc, nil
}

func upgradeLegacyButton(legacy map[string]any, index int) map[string]any {
	typ, ok := legacy["type"].(string)
	if !ok || typ == "" {
		typ = inferLegacyType(legacy)
	}
	b := make(map[string]any, len(legacy)+4)
	params, _ := legacy["params"].(map[string]any)
	if params == nil {
		params = make(map[string]any)
	}
	mapping := legacyParams[typ]
	for k, v := range legacy {
		switch {
		case k == "type" || k == "params":
		case k == "label" || k == "icon" || k == "schedule":
			if s, isStr := v.(string); isStr {
				b[k] = s
			} else {
				b[k] = fmt.Sprint(v)
			}
		case mapping[k] != "":
			if sv, scalar := scalarParam(v); scalar {
				params[mapping[k]] = sv
			} else {
				b[k] = v
			}
		default:
			b[k] = v
		}
	}
	if typ == "pomodoro" {
		typ = "timer"
		params["mode"] = "pomodoro"
	}
	if typ == "llm" && params["endpoint"] == nil {
		if p, _ := params["provider"].(string); p == "" || strings.EqualFold(p, "openai") {
			params["endpoint"] = "https://api.openai.com/v1"
		}
	}
	b["type"] = typ
	b["params"] = params
	if _, ok := toInt(legacy["id"]); !ok {
		b["id"] = json.Number(strconv.Itoa(index + 1))
	}
	b["order"] = json.Number(strconv.Itoa(index))
	if _, ok := b["label"]; !ok {
		b["label"] = ""
	}
	if _, ok := b["icon"]; !ok {
		b["icon"] = ""
	}
	return b
}

// scalarParam converts a legacy value into a params value. Lists (script
// args were once stored that way) are joined with spaces; booleans and
// objects are not representable.
func scalarParam(v any) (any, bool) {
	switch t := v.(type) {
	case string, json.Number, float64:
		return t, true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, " "), true
	}
	return nil, false
}

func migrateNextID(doc map[string]any) (map[string]any, error) {
	var max int64
	list, _ := doc["buttons"].([]any)
	for _, item := range list {
		b, _ := item.(map[string]any)
		if id, ok := toInt(b["id"]); ok && id > max {
			max = id
		}
	}
	if cur, ok := toInt(doc["nextId"]); !ok || cur <= max {
		doc["nextId"] = json.Number(strconv.FormatInt(max+1, 10))
	}
	return doc, nil
}

var minuteKeys = map[string]string{
	"workMinutes":       "workSeconds",
	"shortBreakMinutes": "shortBreakSeconds",
	"longBreakMinutes":  "longBreakSeconds",
}

func migrateTimerSeconds(doc map[string]any) (map[string]any, error) {
	list, _ := doc["buttons"].([]any)
	for _, item := range list {
		b, _ := item.(map[string]any)
		if b["type"] != "timer" {
			continue
		}
		params, _ := b["params"].(map[string]any)
		if params == nil {
			continue
		}
		if raw, ok := params["duration"]; ok {
			if secs, ok := parseClock(raw); ok {
				if _, exists := params["durationSeconds"]; !exists {
					params["durationSeconds"] = json.Number(strconv.FormatInt(secs, 10))
				}
				delete(params, "duration")
			}
		}
		for from, to := range minuteKeys {
			v, ok := params[from]
			if !ok {
				continue
			}
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			params[to] = json.Number(strconv.FormatInt(int64(f*60), 10))
			delete(params, from)
		}
	}
	return doc, nil
}

// parseClock accepts "h:mm:ss", "mm:ss" or a plain number of seconds.
func parseClock(v any) (int64, bool) {
	if n, ok := toInt(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = deepCopy(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopy(e)
		}
		return c
	}
	return v
}

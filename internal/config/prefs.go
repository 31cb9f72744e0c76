package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"
)

// Timeouts are the executor-enforced bounds for network-bound handlers.
type Timeouts struct {
	Post time.Duration
	LLM  time.Duration
}

// HTTPConfig controls the local control API started by "serve".
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
}

// TelegramConfig enables remote control and notifications over Telegram.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chatId"`
}

// Pref decodes the preference key into v. It reports false when the key is
// missing or does not decode.
func (d *Document) Pref(key string, v any) bool {
	raw, ok := d.Prefs[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// SetPref stores v under key.
func (d *Document) SetPref(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if d.Prefs == nil {
		d.Prefs = make(map[string]json.RawMessage)
	}
	d.Prefs[key] = data
	return nil
}

func (d *Document) stringPref(key, def string) string {
	var s string
	if d.Pref(key, &s) && s != "" {
		return s
	}
	return def
}

// Volume is the global playback volume in [0,1].
func (d *Document) Volume() float64 {
	v := 1.0
	d.Pref("volume", &v)
	return clamp01(v)
}

func (d *Document) Language() string { return d.stringPref("language", "en") }
func (d *Document) Theme() string    { return d.stringPref("theme", "dark") }

// LogLevel honours QUICKBUTTONS_LOG_LEVEL before the stored preference.
func (d *Document) LogLevel() string {
	if lvl := os.Getenv("QUICKBUTTONS_LOG_LEVEL"); lvl != "" {
		return strings.ToLower(lvl)
	}
	return strings.ToLower(d.stringPref("logLevel", "info"))
}

func (d *Document) PythonExecutable() string { return d.stringPref("pythonExecutable", "") }
func (d *Document) TimerSound() string       { return d.stringPref("timerSound", "") }

func (d *Document) Timeouts() Timeouts {
	t := struct {
		PostSeconds float64 `json:"postSeconds"`
		LLMSeconds  float64 `json:"llmSeconds"`
	}{PostSeconds: 30, LLMSeconds: 120}
	d.Pref("timeouts", &t)
	out := Timeouts{
		Post: time.Duration(t.PostSeconds * float64(time.Second)),
		LLM:  time.Duration(t.LLMSeconds * float64(time.Second)),
	}
	if out.Post <= 0 {
		out.Post = 30 * time.Second
	}
	if out.LLM <= 0 {
		out.LLM = 120 * time.Second
	}
	return out
}

func (d *Document) HTTP() HTTPConfig {
	cfg := HTTPConfig{Listen: "127.0.0.1:7321"}
	d.Pref("http", &cfg)
	if listen := os.Getenv("QUICKBUTTONS_HTTP_LISTEN"); listen != "" {
		cfg.Enabled = true
		cfg.Listen = listen
	}
	return cfg
}

func (d *Document) Telegram() TelegramConfig {
	var cfg TelegramConfig
	d.Pref("telegram", &cfg)
	if tok := os.Getenv("TELEGRAM_BOT_TOKEN"); tok != "" {
		cfg.Token = tok
	}
	return cfg
}

// NotifyTargets lists delivery targets ("telegram:<chat>", "log:") that
// receive timer completions and failures.
func (d *Document) NotifyTargets() []string {
	var n struct {
		Targets []string `json:"targets"`
	}
	d.Pref("notify", &n)
	return n.Targets
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

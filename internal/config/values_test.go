package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListValues_Mask(t *testing.T) {
	doc := Defaults()
	require.NoError(t, doc.SetPref("telegram", map[string]any{"token": "123456:secret-abcd", "chatId": 7}))

	values, err := ListValues(doc, true)
	require.NoError(t, err)
	assert.Equal(t, "***abcd", values["telegram.token"])
	assert.Equal(t, 7.0, values["telegram.chatId"])
	assert.Equal(t, "220x110", values["window.geometry"])
	assert.NotContains(t, values, "buttons")

	raw, err := ListValues(doc, false)
	require.NoError(t, err)
	assert.Equal(t, "123456:secret-abcd", raw["telegram.token"])
}

func TestSetValue_TypesAndNesting(t *testing.T) {
	doc := Defaults()
	require.NoError(t, SetValue(doc, "volume", "0.25"))
	require.NoError(t, SetValue(doc, "http.enabled", "true"))
	require.NoError(t, SetValue(doc, "http.listen", "127.0.0.1:9000"))
	require.NoError(t, SetValue(doc, "window.geometry", "400x200"))
	require.NoError(t, SetValue(doc, "language", "es"))

	assert.Equal(t, 0.25, doc.Volume())
	assert.Equal(t, HTTPConfig{Enabled: true, Listen: "127.0.0.1:9000"}, doc.HTTP())
	assert.Equal(t, "es", doc.Language())

	v, err := GetValue(doc, "window.geometry")
	require.NoError(t, err)
	assert.Equal(t, "400x200", v)
	// sibling keys survive a nested set
	v, err = GetValue(doc, "window.alwaysOnTop")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	sub, err := GetValue(doc, "http")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"enabled": true, "listen": "127.0.0.1:9000"}, sub)
}

func TestSetValue_Rejections(t *testing.T) {
	doc := Defaults()
	assert.Error(t, SetValue(doc, "buttons", "[]"))
	assert.Error(t, SetValue(doc, "schemaVersion", "1"))
	assert.Error(t, SetValue(doc, "a..b", "x"))
	assert.Error(t, SetValue(doc, "theme.sub", "x"), "theme is a string, not an object")

	_, err := GetValue(doc, "nope")
	assert.Error(t, err)
}

func TestPrefs_DefaultsAndEnv(t *testing.T) {
	doc := Defaults()
	assert.Equal(t, 1.0, doc.Volume())
	assert.Equal(t, "dark", doc.Theme())
	assert.Equal(t, "en", doc.Language())
	assert.Equal(t, 30.0, doc.Timeouts().Post.Seconds())
	assert.Equal(t, 120.0, doc.Timeouts().LLM.Seconds())
	assert.False(t, doc.HTTP().Enabled)

	require.NoError(t, doc.SetPref("volume", 3))
	assert.Equal(t, 1.0, doc.Volume())

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("QUICKBUTTONS_LOG_LEVEL", "DEBUG")
	assert.Equal(t, "env-token", doc.Telegram().Token)
	assert.Equal(t, "debug", doc.LogLevel())
}

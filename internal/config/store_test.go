package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/quickbuttons/internal/types"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestLoad_MissingFileCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	loaded, err := NewStore(path).Load()
	require.NoError(t, err)

	assert.True(t, loaded.Created)
	assert.NoError(t, loaded.PersistErr)
	assert.Empty(t, loaded.Doc.Buttons)
	assert.Equal(t, CurrentSchemaVersion, loaded.Doc.SchemaVersion)

	m := readJSON(t, path)
	assert.EqualValues(t, CurrentSchemaVersion, m["schemaVersion"])
	assert.Equal(t, []any{}, m["buttons"])
	assert.Equal(t, "dark", m["theme"])
}

func TestLoad_EmptyFileGivesDefaultsWithoutBackup(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, "  \n")

	loaded, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.True(t, loaded.Created)
	assert.False(t, loaded.Recovered())
	assert.Empty(t, loaded.Doc.Buttons)
	assert.Equal(t, CurrentSchemaVersion, loaded.Doc.SchemaVersion)

	matches, _ := filepath.Glob(path + ".corrupt-*")
	assert.Empty(t, matches)
}

func TestLoad_InvalidJSONIsBackedUp(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, `{"buttons": [`)
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	loaded, err := NewStore(path, WithClock(func() time.Time { return now })).Load()
	require.NoError(t, err)

	require.True(t, loaded.Recovered())
	assert.ErrorIs(t, loaded.Cause, ErrCorrupt)
	assert.Equal(t, path+".corrupt-20260301T123000Z", loaded.BackupPath)
	backup, err := os.ReadFile(loaded.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, `{"buttons": [`, string(backup))

	assert.Empty(t, loaded.Doc.Buttons)
	assert.EqualValues(t, CurrentSchemaVersion, readJSON(t, path)["schemaVersion"])
}

func TestLoad_SchemaViolationIsCorrupt(t *testing.T) {
	cases := map[string]string{
		"buttons not array": `{"schemaVersion":3,"buttons":"oops"}`,
		"root not object":   `[1,2,3]`,
		"id not integer":    `{"schemaVersion":3,"buttons":[{"id":"x","type":"shell","order":0,"params":{}}]}`,
		"missing params":    `{"schemaVersion":3,"buttons":[{"id":1,"type":"shell","order":0}]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := tempConfigPath(t)
			writeFile(t, path, content)
			loaded, err := NewStore(path).Load()
			require.NoError(t, err)
			assert.True(t, loaded.Recovered())
			assert.ErrorIs(t, loaded.Cause, ErrCorrupt)
		})
	}
}

func TestBackupCorrupt_AvoidsCollisions(t *testing.T) {
	path := tempConfigPath(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewStore(path, WithClock(func() time.Time { return now }))

	writeFile(t, path, "first")
	first, err := store.BackupCorrupt()
	require.NoError(t, err)
	writeFile(t, path, "second")
	second, err := store.BackupCorrupt()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "-1"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_PreservesUnknownFields(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, `{
  "schemaVersion": 3,
  "nextId": 5,
  "theme": "light",
  "futureFeature": {"enabled": true, "list": [1, 2]},
  "buttons": [
    {"id": 4, "type": "website", "label": "Docs", "icon": "doc.png", "order": 0,
     "params": {"url": "https://go.dev"}, "bg_color": "#202020"}
  ]
}`)
	store := NewStore(path)
	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Doc.Buttons, 1)
	assert.Equal(t, types.ButtonID(4), loaded.Doc.Buttons[0].ID)
	assert.Equal(t, "light", loaded.Doc.Theme())

	require.NoError(t, store.Save(loaded.Doc))
	m := readJSON(t, path)
	assert.Equal(t, map[string]any{"enabled": true, "list": []any{1.0, 2.0}}, m["futureFeature"])
	b := m["buttons"].([]any)[0].(map[string]any)
	assert.Equal(t, "#202020", b["bg_color"])
	assert.Equal(t, "doc.png", b["icon"])
}

func TestLoad_NewerVersionIsNotDowngraded(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, `{"schemaVersion": 9, "buttons": [], "somethingNew": 1}`)
	store := NewStore(path)
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.False(t, loaded.Migrated)
	assert.Equal(t, 9, loaded.Doc.SchemaVersion)

	require.NoError(t, store.Save(loaded.Doc))
	assert.EqualValues(t, 9, readJSON(t, path)["schemaVersion"])
}

func TestLoad_MigratesLegacyDocument(t *testing.T) {
	path := tempConfigPath(t)
	legacy := `{
  "theme": "dark",
  "window_geometry": "300x120",
  "python_executable": "/usr/bin/python3",
  "buttons": [
    {"type": "shell", "label": "List", "shell_cmd": "ls -la", "bg_color": "#111111"},
    {"type": "pomodoro", "label": "Focus", "work_duration": 25, "short_break_duration": 5,
     "long_break_duration": 15, "sessions_before_long_break": 4, "auto_advance": true},
    {"type": "timer", "label": "Tea", "timer_duration": "0:03:30"},
    {"type": "llm", "label": "Ask", "llm_model": "gpt-4o-mini", "llm_api_key": "sk-1"},
    {"type": "network_speed", "label": "Legacy only", "server": "auto"}
  ]
}`
	writeFile(t, path, legacy)

	loaded, err := NewStore(path).Load()
	require.NoError(t, err)
	require.True(t, loaded.Migrated)
	assert.Equal(t, 0, loaded.FromVersion)
	assert.NoError(t, loaded.PersistErr)

	doc := loaded.Doc
	assert.Equal(t, CurrentSchemaVersion, doc.SchemaVersion)
	assert.Equal(t, types.ButtonID(6), doc.NextID)
	assert.Equal(t, "/usr/bin/python3", doc.PythonExecutable())
	var window map[string]string
	require.True(t, doc.Pref("window", &window))
	assert.Equal(t, "300x120", window["geometry"])

	require.Len(t, doc.Buttons, 5)
	for i, b := range doc.Buttons {
		assert.Equal(t, i, b.Order)
		assert.Equal(t, types.ButtonID(i+1), b.ID)
	}

	shell := doc.Buttons[0]
	assert.Equal(t, types.TypeShell, shell.Type)
	assert.Equal(t, "ls -la", shell.Params.String("command"))
	assert.JSONEq(t, `"#111111"`, string(shell.Extra["bg_color"]))

	pomo := doc.Buttons[1]
	assert.Equal(t, types.TypeTimer, pomo.Type)
	assert.Equal(t, "pomodoro", pomo.Params.String("mode"))
	work, _ := pomo.Params.Int("workSeconds")
	assert.EqualValues(t, 1500, work)
	every, _ := pomo.Params.Int("longBreakEvery")
	assert.EqualValues(t, 4, every)
	assert.JSONEq(t, `true`, string(pomo.Extra["auto_advance"]))

	tea := doc.Buttons[2]
	secs, ok := tea.Params.Int("durationSeconds")
	require.True(t, ok)
	assert.EqualValues(t, 210, secs)
	assert.False(t, tea.Params.Has("duration"))

	ask := doc.Buttons[3]
	assert.Equal(t, "https://api.openai.com/v1", ask.Params.String("endpoint"))
	assert.Equal(t, "sk-1", ask.Params.String("apiKey"))

	assert.Equal(t, types.ButtonType("network_speed"), doc.Buttons[4].Type)
	assert.JSONEq(t, `"auto"`, string(doc.Buttons[4].Extra["server"]))

	preserved, err := os.ReadFile(path + ".v0.bak")
	require.NoError(t, err)
	assert.Equal(t, legacy, string(preserved))
	assert.EqualValues(t, CurrentSchemaVersion, readJSON(t, path)["schemaVersion"])
}

func TestLoad_MigrationFailureIsFatal(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = []migration{{from: 0, apply: func(map[string]any) (map[string]any, error) {
		return nil, errors.New("boom")
	}}}

	path := tempConfigPath(t)
	content := `{"buttons": [{"type": "shell", "shell_cmd": "true"}]}`
	writeFile(t, path, content)

	loaded, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Nil(t, loaded)
	assert.ErrorIs(t, err, ErrMigrationFailed)

	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Equal(t, content, string(data), "file must be left untouched")
}

func TestLoad_LegacyButtonsWithoutType(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, `{"buttons": [
    {"label": "Build", "shell_cmd": "make"},
    {"label": "Run", "script": "run.py"},
    {"label": "Mystery"},
    {"label": "Router", "ping_host": "192.168.1.1", "ping_count": 2}
  ]}`)

	loaded, err := NewStore(path).Load()
	require.NoError(t, err)
	require.Len(t, loaded.Doc.Buttons, 4)

	b := loaded.Doc.Buttons
	assert.Equal(t, types.TypeShell, b[0].Type)
	assert.Equal(t, "make", b[0].Params.String("command"))
	assert.Equal(t, types.TypePython, b[1].Type)
	assert.Equal(t, "run.py", b[1].Params.String("script"))
	assert.Equal(t, types.TypePython, b[2].Type, "untyped buttons default to python_script")
	assert.Equal(t, "Mystery", b[2].Label)
	assert.Equal(t, types.TypePing, b[3].Type)
	assert.Equal(t, "192.168.1.1", b[3].Params.String("host"))
	count, _ := b[3].Params.Int("count")
	assert.EqualValues(t, 2, count)
}

func TestMigrate_IsPureAndChecksSteps(t *testing.T) {
	in := map[string]any{"buttons": []any{map[string]any{"type": "shell", "shell_cmd": "true"}}}
	out, err := migrate(in, 0)
	require.NoError(t, err)
	assert.Contains(t, in["buttons"].([]any)[0].(map[string]any), "shell_cmd", "input must not be modified")
	assert.Equal(t, json.Number("3"), out["schemaVersion"])

	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = migrations[:1]
	_, err = migrate(in, 0)
	assert.ErrorIs(t, err, ErrMigrationFailed)
}

func TestSave_AtomicWriteLeavesNoTemp(t *testing.T) {
	path := tempConfigPath(t)
	store := NewStore(path)
	doc := Defaults()
	doc.SchemaVersion = 1
	require.NoError(t, store.Save(doc))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not exist after successful save")
	assert.Equal(t, CurrentSchemaVersion, doc.SchemaVersion)
}

func TestSave_PersistFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	writeFile(t, blocker, "x")

	err := NewStore(filepath.Join(blocker, "config.json")).Save(Defaults())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistFailed)
}

type rejectShell struct{}

func (rejectShell) ValidateButton(b types.Button) error {
	if b.Type == types.TypeShell && !b.Params.Has("command") {
		return errors.New("command is required")
	}
	return nil
}

func TestLoad_ValidationWarningsKeepEntries(t *testing.T) {
	path := tempConfigPath(t)
	writeFile(t, path, `{"schemaVersion":3,"nextId":3,"buttons":[
  {"id":1,"type":"shell","label":"bad","icon":"","order":0,"params":{}},
  {"id":2,"type":"shell","label":"good","icon":"","order":1,"params":{"command":"echo"}}]}`)

	loaded, err := NewStore(path, WithValidator(rejectShell{})).Load()
	require.NoError(t, err)
	require.Len(t, loaded.Doc.Buttons, 2)
	require.Len(t, loaded.Warnings, 1)
	assert.Equal(t, types.ButtonID(1), loaded.Warnings[0].ButtonID)
}

func TestMutate_SerialisesWriters(t *testing.T) {
	path := tempConfigPath(t)
	store := NewStore(path)
	loaded, err := store.Load()
	require.NoError(t, err)
	doc := loaded.Doc

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Mutate(func() (*Document, error) {
				doc.NextID++
				return doc, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 26, readJSON(t, path)["nextId"])
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/user/quickbuttons/internal/types"
)

// Property: save(load(save(c))) == save(c) byte for byte.
func TestSaveLoadRoundTripIsStable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("config round trip is stable", prop.ForAll(
		func(labels []string, prefKeys []string, n int) bool {
			doc := Defaults()
			for i, label := range labels {
				doc.Buttons = append(doc.Buttons, types.Button{
					ID:    types.ButtonID(i + 1),
					Type:  types.TypeShell,
					Label: label,
					Order: i,
					Params: types.Params{
						"command":        "echo " + label,
						"timeoutSeconds": json.Number(strconv.Itoa(n)),
					},
					Extra: map[string]json.RawMessage{"tooltip": json.RawMessage(strconv.Quote(label))},
				})
			}
			doc.NextID = types.ButtonID(len(labels) + 1)
			for _, k := range prefKeys {
				if k == "" || reservedKeys[k] {
					continue
				}
				doc.Prefs["x"+k] = json.RawMessage(`{"n": ` + strconv.Itoa(n) + `}`)
			}

			path := filepath.Join(t.TempDir(), "config.json")
			store := NewStore(path)
			if err := store.Save(doc); err != nil {
				return false
			}
			first, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			loaded, err := store.Load()
			if err != nil || loaded.Recovered() {
				return false
			}
			if err := store.Save(loaded.Doc); err != nil {
				return false
			}
			second, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			return string(first) == string(second)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Identifier()),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}

// Package lookup resolves theme palettes and translated UI strings. Built-in
// tables cover the dark and light themes and the en/nl locales; optional
// themes.yaml and translations.yaml files next to the config override or
// extend them.
package lookup

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/quickbuttons/internal/types"
)

const (
	ThemesFile       = "themes.yaml"
	TranslationsFile = "translations.yaml"

	DefaultTheme  = "dark"
	DefaultLocale = "en"
)

var builtinThemes = map[string]types.Palette{
	"dark": {
		"bg":        "#1e1e2e",
		"fg":        "#cdd6f4",
		"accent":    "#89b4fa",
		"button_bg": "#313244",
		"button_fg": "#cdd6f4",
		"border":    "#45475a",
		"muted":     "#6c7086",
		"success":   "#a6e3a1",
		"error":     "#f38ba8",
		"warning":   "#f9e2af",
	},
	"light": {
		"bg":        "#eff1f5",
		"fg":        "#4c4f69",
		"accent":    "#1e66f5",
		"button_bg": "#ccd0da",
		"button_fg": "#4c4f69",
		"border":    "#bcc0cc",
		"muted":     "#8c8fa1",
		"success":   "#40a02b",
		"error":     "#d20f39",
		"warning":   "#df8e1d",
	},
}

var builtinStrings = map[string]map[string]string{
	"en": {
		"running":   "running",
		"succeeded": "done",
		"failed":    "failed",
		"cancelled": "cancelled",
		"busy":      "already running",
		"no_output": "no output",
		"copied":    "output copied",
		"reloaded":  "configuration reloaded",
		"timer":     "timer",
		"work":      "work",
		"break":     "break",
	},
	"nl": {
		"running":   "bezig",
		"succeeded": "klaar",
		"failed":    "mislukt",
		"cancelled": "geannuleerd",
		"busy":      "draait al",
		"no_output": "geen uitvoer",
		"copied":    "uitvoer gekopieerd",
		"reloaded":  "configuratie herladen",
		"timer":     "timer",
		"work":      "werk",
		"break":     "pauze",
	},
}

// Lookup holds the merged theme and translation tables. It is read-only
// after Load and safe for concurrent use.
type Lookup struct {
	themes  map[string]types.Palette
	strings map[string]map[string]string
}

// New returns a Lookup with only the built-in tables.
func New() *Lookup {
	l := &Lookup{
		themes:  make(map[string]types.Palette, len(builtinThemes)),
		strings: make(map[string]map[string]string, len(builtinStrings)),
	}
	for name, p := range builtinThemes {
		l.themes[name] = maps.Clone(p)
	}
	for locale, table := range builtinStrings {
		l.strings[locale] = maps.Clone(table)
	}
	return l
}

// Load reads the optional YAML overrides from dir. Missing files are not an
// error.
func Load(dir string) (*Lookup, error) {
	l := New()

	var themes map[string]map[string]string
	if err := readYAML(filepath.Join(dir, ThemesFile), &themes); err != nil {
		return nil, err
	}
	for name, p := range themes {
		name = strings.ToLower(name)
		merged := maps.Clone(l.themes[DefaultTheme])
		if base, ok := l.themes[name]; ok {
			merged = base
		}
		maps.Copy(merged, p)
		l.themes[name] = merged
	}

	var translations map[string]map[string]string
	if err := readYAML(filepath.Join(dir, TranslationsFile), &translations); err != nil {
		return nil, err
	}
	for locale, table := range translations {
		locale = strings.ToLower(locale)
		if l.strings[locale] == nil {
			l.strings[locale] = make(map[string]string, len(table))
		}
		maps.Copy(l.strings[locale], table)
	}
	return l, nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ThemeFor returns a copy of the named palette, or the dark palette when the
// name is unknown.
func (l *Lookup) ThemeFor(name string) types.Palette {
	if p, ok := l.themes[strings.ToLower(name)]; ok {
		return maps.Clone(p)
	}
	return maps.Clone(l.themes[DefaultTheme])
}

// Themes lists the available theme names.
func (l *Lookup) Themes() []string {
	names := make([]string, 0, len(l.themes))
	for name := range l.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Translate looks key up in locale, then English, then returns key itself.
func (l *Lookup) Translate(key, locale string) string {
	if s, ok := l.strings[strings.ToLower(locale)][key]; ok {
		return s
	}
	if s, ok := l.strings[DefaultLocale][key]; ok {
		return s
	}
	return key
}

var (
	_ types.ThemeLookup = (*Lookup)(nil)
	_ types.Translator  = (*Lookup)(nil)
)

// internal/types/interfaces.go
package types

// Palette maps theme slot names (e.g. "accent", "button_bg") to colors.
type Palette map[string]string

// ThemeLookup resolves a theme name to its palette.
type ThemeLookup interface {
	ThemeFor(name string) Palette
}

// Translator resolves a message key for a locale, falling back to the key.
type Translator interface {
	Translate(key, locale string) string
}

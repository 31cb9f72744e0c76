package panel

import "github.com/charmbracelet/bubbles/key"

// ─── Key Map ─────────────────────────────────────────────────────────────────

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	Run       key.Binding
	RunInput  key.Binding
	Cancel    key.Binding
	Copy      key.Binding
	Reload    key.Binding
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MoveUp:    key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown:  key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Run:       key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "run")),
		RunInput:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "run with input")),
		Cancel:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy output")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.RunInput, k.Cancel, k.Copy, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.RunInput, k.Cancel, k.Copy, k.Reload},
		{k.Up, k.Down, k.MoveUp, k.MoveDown, k.Help, k.Quit},
	}
}

package watch

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the watcher.
type KeyMap struct {
	Refresh key.Binding
	Flush   key.Binding
	Clear   key.Binding
	Report  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh status"),
		),
		Flush: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "flush session"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear log"),
		),
		Report: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle summary"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Report, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Flush, k.Clear},
		{k.Report, k.Help, k.Quit},
	}
}

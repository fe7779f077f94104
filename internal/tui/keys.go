package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all console key bindings with built-in help text.
type KeyMap struct {
	// Global
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Escape    key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Home     key.Binding
	End      key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Enter    key.Binding

	// Console actions
	ToggleCollapse key.Binding
	ToggleErrors   key.Binding
	ToggleWarnings key.Binding
	ToggleInfo     key.Binding
	Clear          key.Binding
	Pause          key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?/h", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("escape", "esc"),
			key.WithHelp("esc", "close"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "oldest"),
		),
		End: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "latest"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "pagedown"),
			key.WithHelp("pgdn", "page down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),

		ToggleCollapse: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "collapse/flatten"),
		),
		ToggleErrors: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "toggle errors"),
		),
		ToggleWarnings: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "toggle warnings"),
		),
		ToggleInfo: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "toggle info"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
	}
}

// helpBindings lists the bindings shown in the help modal, in display order.
func (k KeyMap) helpBindings() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.PageUp, k.PageDown, k.Home, k.End, k.Enter,
		k.ToggleCollapse, k.ToggleErrors, k.ToggleWarnings, k.ToggleInfo,
		k.Clear, k.Pause, k.Help, k.Escape, k.Quit, k.ForceQuit,
	}
}

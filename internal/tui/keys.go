package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the note view. Bindings that only make
// sense in one mode (signed out, signed in, list focused) are matched only
// there.
type KeyMap struct {
	Quit     key.Binding
	QuitList key.Binding // q, only while the list has focus.

	Dismiss key.Binding // Close the alert.

	NextField key.Binding
	PrevField key.Binding

	// Signed out.
	SignIn key.Binding
	SignUp key.Binding

	// Signed in.
	SignOut key.Binding
	Submit  key.Binding

	// Note list.
	Up     key.Binding
	Down   key.Binding
	Copy   key.Binding
	Reload key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	QuitList: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("enter", "esc"),
		key.WithHelp("enter", "dismiss"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev"),
	),
	SignIn: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "sign in"),
	),
	SignUp: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "sign up"),
	),
	SignOut: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "sign out"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "add note"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("j/k", "nav"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/k", "nav"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

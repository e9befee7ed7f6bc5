// Package keymap holds the review TUI's key bindings. KeyMap satisfies
// help.KeyMap, so the bubbles help component can render it directly.
package keymap

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

var _ help.KeyMap = (*KeyMap)(nil)

type KeyMap struct {
	Quit    key.Binding
	Help    key.Binding
	Back    key.Binding // preview or help back to the list
	Up      key.Binding
	Down    key.Binding
	Preview key.Binding
	Approve key.Binding
	Reject  key.Binding
	Reload  key.Binding
}

func bind(desc string, keys ...string) key.Binding {
	label := keys[0]
	switch label {
	case "up":
		label = "↑/k"
	case "down":
		label = "↓/j"
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// DefaultKeyMap returns vim-style navigation with single-letter verdicts.
// Reject is x rather than r, which reloads.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit:    bind("quit", "q", "ctrl+c"),
		Help:    bind("help", "?"),
		Back:    bind("back", "esc"),
		Up:      bind("up", "up", "k"),
		Down:    bind("down", "down", "j"),
		Preview: bind("preview", "enter"),
		Approve: bind("approve", "a"),
		Reject:  bind("reject", "x"),
		Reload:  bind("reload", "r"),
	}
}

// ShortHelp is the status bar hint on the proposal list.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Reject, k.Preview, k.Reload, k.Quit}
}

// PreviewHelp is the status bar hint while a proposal is open.
func (k *KeyMap) PreviewHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Reject, k.Up, k.Down, k.Back}
}

func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Preview, k.Back},
		{k.Approve, k.Reject, k.Reload},
		{k.Help, k.Quit},
	}
}

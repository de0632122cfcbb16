package chat

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send     key.Binding
	Newline  key.Binding
	Clear    key.Binding
	Preview  key.Binding
	Quit     key.Binding
	Dismiss  key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Newline:  key.NewBinding(key.WithKeys("ctrl+j", "alt+enter"), key.WithHelp("ctrl+j", "newline")),
		Clear:    key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "clear")),
		Preview:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "preview")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Dismiss:  key.NewBinding(key.WithKeys("enter", "esc")),
		Confirm:  key.NewBinding(key.WithKeys("y", "Y")),
		Cancel:   key.NewBinding(key.WithKeys("n", "N", "esc")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
	}
}

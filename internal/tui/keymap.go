package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	refresh    key.Binding
	toggleHelp key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	top        key.Binding
	bottom     key.Binding
	snooze     key.Binding
	nextPreset key.Binding
	dismiss    key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		top:        key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		bottom:     key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		snooze:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "snooze")),
		nextPreset: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle snooze preset")),
		dismiss:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.moveDown, k.moveUp, k.snooze, k.dismiss, k.refresh, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveDown, k.moveUp, k.top, k.bottom},
		{k.snooze, k.nextPreset, k.dismiss},
		{k.refresh, k.toggleHelp, k.quit},
	}
}

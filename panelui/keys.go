// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package panelui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the chat panel.
type KeyMap struct {
	// Compose area.
	Send    key.Binding // Send the draft.
	Newline key.Binding // Insert a newline into the draft.
	Attach  key.Binding // Prompt for a voice recording to attach.

	// History scrolling (always active; the composer ignores these).
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// Action row.
	Analyze         key.Binding
	Graph           key.Binding
	Report          key.Binding
	NewConversation key.Binding

	Cancel key.Binding // Dismiss the attach prompt.
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set. Enter sends; the
// alt+enter chord inserts a newline (the terminal analogue of
// shift+enter, which most terminals cannot report).
var DefaultKeyMap = KeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("⏎", "send"),
	),
	Newline: key.NewBinding(
		key.WithKeys("alt+enter"),
		key.WithHelp("M-⏎", "newline"),
	),
	Attach: key.NewBinding(
		key.WithKeys("ctrl+a"),
		key.WithHelp("C-a", "voice"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "scroll down"),
	),
	Analyze: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("F1", "analyze"),
	),
	Graph: key.NewBinding(
		key.WithKeys("f2"),
		key.WithHelp("F2", "graph"),
	),
	Report: key.NewBinding(
		key.WithKeys("f3"),
		key.WithHelp("F3", "report"),
	),
	NewConversation: key.NewBinding(
		key.WithKeys("f4"),
		key.WithHelp("F4", "new conversation"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}

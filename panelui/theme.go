// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package panelui

import "github.com/charmbracelet/lipgloss"

// Theme defines the color palette for the chat panel. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Message bubbles. Own messages are right-aligned and tinted;
	// peer messages sit on the default background.
	SelfBubbleBackground lipgloss.Color
	PeerBubbleBackground lipgloss.Color

	// Sender line above each bubble.
	SenderName lipgloss.Color
	Timestamp  lipgloss.Color
	AvatarMark lipgloss.Color

	// Connection and error chrome.
	ErrorForeground  lipgloss.Color
	ErrorBackground  lipgloss.Color
	NoticeForeground lipgloss.Color
	StateConnected   lipgloss.Color
	StateConnecting  lipgloss.Color
	StateFailed      lipgloss.Color

	// UI chrome.
	BorderColor lipgloss.Color
	HelpText    lipgloss.Color
	Spinner     lipgloss.Color

	// Markdown inline code and links inside message bodies.
	CodeForeground lipgloss.Color
	CodeBackground lipgloss.Color
	LinkForeground lipgloss.Color
	QuoteBar       lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelfBubbleBackground: lipgloss.Color("24"),  // deep blue tint
	PeerBubbleBackground: lipgloss.Color("236"), // near-background gray

	SenderName: lipgloss.Color("114"), // green
	Timestamp:  lipgloss.Color("241"),
	AvatarMark: lipgloss.Color("75"), // blue

	ErrorForeground:  lipgloss.Color("255"),
	ErrorBackground:  lipgloss.Color("88"), // dark red
	NoticeForeground: lipgloss.Color("220"),
	StateConnected:   lipgloss.Color("114"),
	StateConnecting:  lipgloss.Color("220"),
	StateFailed:      lipgloss.Color("196"),

	BorderColor: lipgloss.Color("240"),
	HelpText:    lipgloss.Color("241"),
	Spinner:     lipgloss.Color("220"),

	CodeForeground: lipgloss.Color("222"),
	CodeBackground: lipgloss.Color("237"),
	LinkForeground: lipgloss.Color("75"),
	QuoteBar:       lipgloss.Color("240"),
}

// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package panelui

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nook-im/nook/chat"
)

// SessionHandle is the slice of the chat manager the panel drives.
// Satisfied by *chat.Manager.
type SessionHandle interface {
	Snapshot() chat.Snapshot
	Updates() <-chan struct{}
	SendText(draft string)
	SendVoice(payload []byte, mimeType string)
	Do(action chat.Action)
	Teardown()
}

// sessionUpdateMsg signals that a new session snapshot is available.
type sessionUpdateMsg struct{}

// voicePayloadMsg carries the result of reading a voice recording
// from disk.
type voicePayloadMsg struct {
	payload []byte
	err     error
}

// maxVoicePayload bounds the size of an attached recording; anything
// larger is almost certainly not a voice message.
const maxVoicePayload = 32 << 20

// Model is the top-level bubbletea model for the chat panel.
type Model struct {
	session SessionHandle
	theme   Theme
	keys    KeyMap

	// Room label shown in the header (the room ID; rooms have no
	// display name resolution in this client).
	roomLabel string

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	history     viewport.Model
	composer    textarea.Model
	attachInput textinput.Model
	attaching   bool
	spin        spinner.Model
	spinning    bool

	snapshot chat.Snapshot

	// lastSentDraft is the draft of the most recent send, used to
	// restore the composer when the session reports a send failure.
	lastSentDraft string

	// localNotice holds panel-local problems (unreadable attach path)
	// that never reach the session's error slot.
	localNotice string
}

// NewModel creates the chat panel bound to a session manager.
func NewModel(session SessionHandle, roomLabel string) Model {
	composer := textarea.New()
	composer.Placeholder = "Write a message…"
	composer.ShowLineNumbers = false
	composer.CharLimit = 0
	composer.SetHeight(3)
	composer.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	composer.Focus()

	attachInput := textinput.New()
	attachInput.Placeholder = "path to audio file"
	attachInput.Prompt = "attach> "

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = lipgloss.NewStyle().Foreground(DefaultTheme.Spinner)

	return Model{
		session:     session,
		theme:       DefaultTheme,
		keys:        DefaultKeyMap,
		roomLabel:   roomLabel,
		composer:    composer,
		attachInput: attachInput,
		spin:        spin,
		snapshot:    session.Snapshot(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForUpdate(m.session.Updates()),
		textarea.Blink,
	)
}

// listenForUpdate returns a tea.Cmd that blocks until the session
// publishes a new snapshot.
func listenForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return sessionUpdateMsg{}
	}
}

// readVoicePayload loads a recording from disk off the UI loop.
func readVoicePayload(path string) tea.Cmd {
	return func() tea.Msg {
		info, err := os.Stat(path)
		if err != nil {
			return voicePayloadMsg{err: err}
		}
		if info.Size() > maxVoicePayload {
			return voicePayloadMsg{err: fmt.Errorf("%s: %d bytes exceeds the %d byte limit", path, info.Size(), maxVoicePayload)}
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			return voicePayloadMsg{err: err}
		}
		return voicePayloadMsg{payload: payload}
	}
}

// Update implements tea.Model.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		m.width = message.Width
		m.height = message.Height
		m.layout()
		m.ready = true
		m.refreshHistory(true)
		return m, nil

	case sessionUpdateMsg:
		m.snapshot = m.session.Snapshot()

		// A failed text send preserves the draft; put it back into an
		// empty composer so the user can retry or edit.
		if failure := m.snapshot.Failure; failure != nil && failure.Kind == chat.FailureSend {
			if m.snapshot.Draft != "" && strings.TrimSpace(m.composer.Value()) == "" {
				m.composer.SetValue(m.snapshot.Draft)
			}
		}

		m.refreshHistory(true)

		commands := []tea.Cmd{listenForUpdate(m.session.Updates())}
		if m.snapshot.VoiceSending && !m.spinning {
			m.spinning = true
			commands = append(commands, m.spin.Tick)
		}
		return m, tea.Batch(commands...)

	case spinner.TickMsg:
		if !m.snapshot.VoiceSending {
			m.spinning = false
			return m, nil
		}
		var command tea.Cmd
		m.spin, command = m.spin.Update(message)
		return m, command

	case voicePayloadMsg:
		m.attaching = false
		m.attachInput.Reset()
		if message.err != nil {
			m.localNotice = fmt.Sprintf("attach failed: %v", message.err)
			return m, nil
		}
		m.localNotice = ""
		m.session.SendVoice(message.payload, "")
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(message)
	}

	return m, nil
}

func (m Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, m.keys.Quit) {
		m.session.Teardown()
		return m, tea.Quit
	}

	// The attach prompt swallows all input until confirmed or
	// dismissed.
	if m.attaching {
		switch {
		case key.Matches(message, m.keys.Cancel):
			m.attaching = false
			m.attachInput.Reset()
			return m, nil
		case key.Matches(message, m.keys.Send):
			path := strings.TrimSpace(m.attachInput.Value())
			if path == "" {
				m.attaching = false
				m.attachInput.Reset()
				return m, nil
			}
			return m, readVoicePayload(path)
		}
		var command tea.Cmd
		m.attachInput, command = m.attachInput.Update(message)
		return m, command
	}

	switch {
	case key.Matches(message, m.keys.Send):
		draft := m.composer.Value()
		if strings.TrimSpace(draft) == "" {
			return m, nil
		}
		m.lastSentDraft = draft
		m.session.SendText(draft)
		m.composer.Reset()
		return m, nil

	case key.Matches(message, m.keys.Attach):
		// Single-slot voice sending: ignore the chord while one is in
		// flight.
		if m.snapshot.VoiceSending {
			return m, nil
		}
		m.attaching = true
		m.localNotice = ""
		return m, m.attachInput.Focus()

	case key.Matches(message, m.keys.Analyze):
		m.session.Do(chat.ActionAnalyze)
		return m, nil
	case key.Matches(message, m.keys.Graph):
		m.session.Do(chat.ActionGraph)
		return m, nil
	case key.Matches(message, m.keys.Report):
		m.session.Do(chat.ActionReport)
		return m, nil
	case key.Matches(message, m.keys.NewConversation):
		m.session.Do(chat.ActionNewConversation)
		return m, nil

	case key.Matches(message, m.keys.ScrollUp):
		m.history.ViewUp()
		return m, nil
	case key.Matches(message, m.keys.ScrollDown):
		m.history.ViewDown()
		return m, nil
	}

	var command tea.Cmd
	m.composer, command = m.composer.Update(message)
	return m, command
}

// layout recomputes component dimensions from the terminal size.
func (m *Model) layout() {
	composerHeight := 3
	// Header + status + help + composer border rows.
	chromeHeight := 4
	historyHeight := m.height - composerHeight - chromeHeight
	if historyHeight < 3 {
		historyHeight = 3
	}

	if !m.ready {
		m.history = viewport.New(m.width, historyHeight)
	} else {
		m.history.Width = m.width
		m.history.Height = historyHeight
	}
	m.composer.SetWidth(m.width - 2)
	m.composer.SetHeight(composerHeight)
	m.attachInput.Width = m.width - 12
}

// refreshHistory re-renders the conversation into the viewport.
func (m *Model) refreshHistory(followTail bool) {
	if !m.ready {
		return
	}
	atBottom := m.history.AtBottom()
	m.history.SetContent(m.renderConversation())
	if followTail && atBottom {
		m.history.GotoBottom()
	}
}

// senderLabel picks the display name, falling back to the user ID
// localpart until the profile resolves.
func senderLabel(message chat.Message) string {
	if message.DisplayName != "" {
		return message.DisplayName
	}
	return message.Sender.Localpart()
}

// avatarInitial is the one-character stand-in for an avatar: the
// upper-cased first rune of the sender label.
func avatarInitial(label string) string {
	for _, r := range label {
		return string(unicode.ToUpper(r))
	}
	return "?"
}

// renderConversation lays the message log out as bubbles: peers on
// the left, own messages on the right.
func (m *Model) renderConversation() string {
	if len(m.snapshot.Messages) == 0 {
		placeholder := lipgloss.NewStyle().
			Foreground(m.theme.FaintText).
			Italic(true).
			Render("No messages yet")
		return lipgloss.Place(m.width, m.history.Height, lipgloss.Center, lipgloss.Center, placeholder)
	}

	bubbleWidth := m.width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var blocks []string
	for _, message := range m.snapshot.Messages {
		own := !m.snapshot.SelfID.IsZero() && message.Sender == m.snapshot.SelfID
		label := senderLabel(message)
		timestamp := time.UnixMilli(message.TimestampMillis).Format("15:04")

		header := fmt.Sprintf("%s %s %s",
			lipgloss.NewStyle().Foreground(m.theme.AvatarMark).Bold(true).Render(avatarInitial(label)),
			lipgloss.NewStyle().Foreground(m.theme.SenderName).Render(label),
			lipgloss.NewStyle().Foreground(m.theme.Timestamp).Render(timestamp),
		)

		body := renderMessageBody(message.Body, m.theme, bubbleWidth-2)
		background := m.theme.PeerBubbleBackground
		if own {
			background = m.theme.SelfBubbleBackground
		}
		bubble := lipgloss.NewStyle().
			Background(background).
			Padding(0, 1).
			Render(body)

		block := header + "\n" + bubble
		if own {
			block = lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block)
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

// statusLine renders the connection state, voice spinner, error
// banner, or notice — one shared row under the history.
func (m *Model) statusLine() string {
	if failure := m.snapshot.Failure; failure != nil {
		banner := lipgloss.NewStyle().
			Foreground(m.theme.ErrorForeground).
			Background(m.theme.ErrorBackground).
			Padding(0, 1)
		return banner.Render(failure.Error())
	}
	if m.localNotice != "" {
		return lipgloss.NewStyle().Foreground(m.theme.ErrorForeground).Render(m.localNotice)
	}
	if m.snapshot.VoiceSending {
		return m.spin.View() + " sending voice message"
	}
	if m.snapshot.Notice != "" {
		return lipgloss.NewStyle().Foreground(m.theme.NoticeForeground).Render(m.snapshot.Notice)
	}

	stateColor := m.theme.StateConnecting
	switch m.snapshot.State {
	case chat.StateConnected:
		stateColor = m.theme.StateConnected
	case chat.StateFailed, chat.StateClosed:
		stateColor = m.theme.StateFailed
	}
	return lipgloss.NewStyle().Foreground(stateColor).Render("● " + m.snapshot.State.String())
}

// helpLine renders the action row.
func (m *Model) helpLine() string {
	bindings := []key.Binding{
		m.keys.Analyze, m.keys.Graph, m.keys.Report, m.keys.NewConversation,
		m.keys.Attach, m.keys.Send, m.keys.Quit,
	}
	var parts []string
	keyStyle := lipgloss.NewStyle().Foreground(m.theme.NormalText)
	descStyle := lipgloss.NewStyle().Foreground(m.theme.HelpText)
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, keyStyle.Render(help.Key)+" "+descStyle.Render(help.Desc))
	}
	return descStyle.Render(strings.Join(parts, "  "))
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading…"
	}

	headerStyle := lipgloss.NewStyle().
		Foreground(m.theme.NormalText).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(m.theme.BorderColor).
		Width(m.width)
	header := headerStyle.Render(m.roomLabel)

	compose := m.composer.View()
	if m.attaching {
		compose = m.attachInput.View()
	}

	return strings.Join([]string{
		header,
		m.history.View(),
		m.statusLine(),
		compose,
		m.helpLine(),
	}, "\n")
}

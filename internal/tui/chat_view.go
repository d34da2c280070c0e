package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gwi.com/kb-console/internal/chat"
)

func (m Model) handleChatKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+n":
		if m.ctrl.NewChat() {
			m.input.Reset()
		}
		return m, nil
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// The input stays disabled until the outstanding reply arrives.
	if m.ctrl.Session().Typing() {
		return m, nil
	}

	if msg.Type == tea.KeyEnter {
		p, ok := m.ctrl.Begin(m.input.Value())
		if !ok {
			return m, nil
		}
		m.input.Reset()
		m.input.Blur()
		return m, tea.Batch(m.exchange(p), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) chatView() string {
	var b strings.Builder
	session := m.ctrl.Session()

	title := session.Title()
	if title == "" {
		title = "New chat"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if session.Typing() {
		b.WriteString(m.spinner.View() + infoStyle.Render(" Assistant is typing..."))
	} else {
		b.WriteString(m.input.View())
	}
	return b.String()
}

func renderTranscript(msgs []chat.Message, width int) string {
	if len(msgs) == 0 {
		return infoStyle.Render("No messages yet. Type a question and press enter.")
	}
	body := lipgloss.NewStyle()
	if width > 2 {
		body = body.Width(width - 2)
	}

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.Role == chat.RoleUser {
			b.WriteString(userStyle.Render("You"))
		} else {
			b.WriteString(assistantStyle.Render("Assistant"))
		}
		b.WriteString(infoStyle.Render("  " + msg.Timestamp.Format("15:04")))
		b.WriteString("\n")
		b.WriteString(body.Render(msg.Content))
	}
	return b.String()
}

package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

func (m Model) handleHistoryKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.historyCursor = clamp(m.historyCursor-1, 0, len(m.sessions)-1)
	case "down", "j":
		m.historyCursor = clamp(m.historyCursor+1, 0, len(m.sessions)-1)
	case "r":
		if !m.historyBusy {
			m.historyBusy = true
			return m, m.fetchSessions()
		}
	case "enter":
		if m.historyBusy || len(m.sessions) == 0 || m.ctrl.Session().Typing() {
			return m, nil
		}
		m.historyBusy = true
		return m, m.fetchRecord(m.sessions[m.historyCursor].ID)
	}
	return m, nil
}

func (m Model) historyView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chat history"))
	b.WriteString("\n\n")

	if len(m.sessions) == 0 {
		if m.historyBusy {
			b.WriteString(infoStyle.Render("  Loading..."))
		} else {
			b.WriteString(infoStyle.Render("  No saved chats yet."))
		}
		return b.String()
	}

	current := m.ctrl.Session().ID()
	for i, s := range m.sessions {
		marker := "  "
		if i == m.historyCursor {
			marker = cursorStyle.Render("> ")
		}
		title := s.Title
		if title == "" {
			title = "Untitled chat"
		}
		if s.ID == current {
			title += " (open)"
		}
		b.WriteString(fmt.Sprintf("%s%-44s %s\n", marker, truncate(title, 44),
			infoStyle.Render(fmt.Sprintf("%d messages · %s", s.MessageCount, humanize.RelTime(s.UpdatedAt, m.now(), "ago", "from now")))))
	}
	if m.historyBusy {
		b.WriteString(infoStyle.Render("  Loading..."))
	}
	return b.String()
}

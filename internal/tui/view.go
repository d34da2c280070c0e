package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var helpText = map[View]string{
	ViewChat:      "enter send · ctrl+n new chat · pgup/pgdown scroll · tab switch view · ctrl+c quit",
	ViewDocuments: "space toggle · a page · c clear · s sync · d delete · / search · u upload · ←/→ page · [/] knowledge base · tab switch view · q quit",
	ViewHistory:   "↑/↓ move · enter open · r refresh · tab switch view · q quit",
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteString("\n\n")

	switch m.view {
	case ViewDocuments:
		b.WriteString(m.documentsView())
	case ViewHistory:
		b.WriteString(m.historyView())
	default:
		b.WriteString(m.chatView())
	}

	b.WriteString("\n")
	b.WriteString(m.toastLine())
	b.WriteString(helpStyle.Render(helpText[m.view]))
	return b.String()
}

func (m Model) tabs() string {
	parts := make([]string, 0, len(viewNames)+1)
	for i, name := range viewNames {
		if View(i) == m.view {
			parts = append(parts, activeTabStyle.Render(name))
		} else {
			parts = append(parts, tabStyle.Render(name))
		}
	}
	if kb := m.currentKnowledgeBase(); kb != "" {
		parts = append(parts, statusBarStyle.Render("kb: "+kb))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// toastLine renders the notifications that have not expired yet, newest last.
func (m Model) toastLine() string {
	active := m.toasts.Active(m.now())
	if len(active) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range active {
		style := toastStyles[t.Severity.String()]
		b.WriteString(style.Render("● " + t.Message))
		b.WriteString("\n")
	}
	return b.String()
}

package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"gwi.com/kb-console/internal/documents"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptSearch
	promptUpload
)

// docSnapshot is what the documents view renders. It is copied out of the
// browser on the event loop whenever no browser command is running.
type docSnapshot struct {
	kbID     string
	search   string
	rows     []documents.Document
	checked  []bool
	header   string
	selected int
	page     int
	pages    int
	total    int
	loaded   bool
}

// Header checkbox states.
const (
	checkAll  = "[x]"
	checkSome = "[-]"
	checkNone = "[ ]"
)

func snapshotDocs(b *documents.Browser) docSnapshot {
	if b == nil {
		return docSnapshot{header: checkNone, page: 1, pages: 1}
	}
	sel := b.Selection()
	rows := b.Rows()
	checked := make([]bool, len(rows))
	for i := range rows {
		checked[i] = sel.IsSelected(i)
	}
	header := checkNone
	switch {
	case sel.IsAllSelected():
		header = checkAll
	case sel.IsIndeterminate():
		header = checkSome
	}
	q := b.Query()
	return docSnapshot{
		kbID:     q.KnowledgeBaseID,
		search:   q.Search,
		rows:     rows,
		checked:  checked,
		header:   header,
		selected: sel.Count(),
		page:     q.Page,
		pages:    b.TotalPages(),
		total:    b.Total(),
		loaded:   b.Loaded(),
	}
}

func (m Model) handleDocumentsKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.prompt != promptNone {
		return m.handlePromptKey(msg)
	}
	if msg.String() == "q" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.browser == nil || m.docsBusy {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, len(m.docs.rows)-1)
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, len(m.docs.rows)-1)
	case " ":
		m.browser.Toggle(m.cursor)
		m.docs = snapshotDocs(m.browser)
	case "a":
		m.browser.SelectAllOnPage()
		m.docs = snapshotDocs(m.browser)
	case "c":
		m.browser.ClearSelection()
		m.docs = snapshotDocs(m.browser)
	case "s":
		return m.runBrowser((*documents.Browser).SyncSelected)
	case "d":
		return m.runBrowser((*documents.Browser).DeleteSelected)
	case "r":
		return m.runBrowser((*documents.Browser).Load)
	case "left", "h":
		return m.runBrowser((*documents.Browser).PrevPage)
	case "right", "l":
		return m.runBrowser((*documents.Browser).NextPage)
	case "]":
		return m.selectKnowledgeBase((m.kbIndex + 1) % max(len(m.kbs), 1))
	case "[":
		return m.selectKnowledgeBase((m.kbIndex + len(m.kbs) - 1) % max(len(m.kbs), 1))
	case "/":
		return m.openPrompt(promptSearch, "Search documents: ", m.docs.search)
	case "u":
		return m.openPrompt(promptUpload, "Upload file path: ", "")
	}
	return m, nil
}

func (m Model) runBrowser(op func(*documents.Browser, context.Context) error) (Model, tea.Cmd) {
	m.docsBusy = true
	return m, m.browse(func(ctx context.Context, b *documents.Browser) error {
		return op(b, ctx)
	})
}

func (m Model) openPrompt(kind promptKind, label, value string) (Model, tea.Cmd) {
	m.prompt = kind
	m.promptInput.Prompt = label
	m.promptInput.SetValue(value)
	m.promptInput.CursorEnd()
	return m, m.promptInput.Focus()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.promptInput.Blur()
		return m, nil
	case tea.KeyEnter:
		kind, value := m.prompt, strings.TrimSpace(m.promptInput.Value())
		m.prompt = promptNone
		m.promptInput.Blur()
		if m.browser == nil || m.docsBusy {
			return m, nil
		}
		if kind == promptUpload {
			if value == "" {
				return m, nil
			}
			return m.runBrowser(func(b *documents.Browser, ctx context.Context) error {
				return b.Upload(ctx, value)
			})
		}
		m.cursor = 0
		return m.runBrowser(func(b *documents.Browser, ctx context.Context) error {
			return b.Search(ctx, value)
		})
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m Model) documentsView() string {
	var b strings.Builder
	d := m.docs

	if m.browser == nil || d.kbID == "" {
		b.WriteString(infoStyle.Render("No knowledge base selected."))
		return b.String()
	}

	b.WriteString(titleStyle.Render(m.currentKnowledgeBase()))
	status := fmt.Sprintf("  page %d/%d · %d documents · %d selected", d.page, d.pages, d.total, d.selected)
	if d.search != "" {
		status += fmt.Sprintf(" · search %q", d.search)
	}
	b.WriteString(infoStyle.Render(status))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s %-36s %-6s %9s  %-10s %s\n", d.header, "Name", "Type", "Size", "Sync", "Updated"))
	if d.loaded && len(d.rows) == 0 {
		b.WriteString(infoStyle.Render("  No documents found."))
		b.WriteString("\n")
	}
	for i, doc := range d.rows {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		box := checkNone
		if d.checked[i] {
			box = checkAll
		}
		updated := ""
		if !doc.UpdatedAt.IsZero() {
			updated = humanize.RelTime(doc.UpdatedAt, m.now(), "ago", "from now")
		}
		b.WriteString(fmt.Sprintf("%s%s %-36s %-6s %9s  %-10s %s\n",
			marker, box, truncate(doc.Name, 36), doc.Type, humanize.Bytes(uint64(max(doc.Size, 0))), doc.SyncStatus, updated))
	}

	if m.docsBusy {
		b.WriteString(infoStyle.Render("  Loading..."))
		b.WriteString("\n")
	}
	if m.prompt != promptNone {
		b.WriteString("\n")
		b.WriteString(m.promptInput.View())
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Package tui is the interactive terminal front end: chat, document browser
// and chat history in one Bubble Tea program.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/documents"
	"gwi.com/kb-console/internal/logger"
	"gwi.com/kb-console/internal/notify"
)

type View int

const (
	ViewChat View = iota
	ViewDocuments
	ViewHistory
)

var viewNames = []string{"Chat", "Documents", "History"}

func (v View) String() string { return viewNames[v] }

const tickInterval = 500 * time.Millisecond

// Options wires the model to its collaborators. Browser and KnowledgeBases
// are optional; without them the Documents view stays empty.
type Options struct {
	Context        context.Context
	Controller     *chat.Controller
	Browser        *documents.Browser
	KnowledgeBases func(ctx context.Context) ([]documents.KnowledgeBase, error)
	Toasts         *notify.Queue
	Notifier       notify.Notifier
	Log            logger.Logger
	Now            func() time.Time
}

// Model is the Bubble Tea model. Session and Browser state is only touched
// from Update; commands do the network calls and report back with messages.
// While docsBusy is set a command owns the browser and the view reads docs only.
type Model struct {
	ctx      context.Context
	ctrl     *chat.Controller
	browser  *documents.Browser
	listKBs  func(ctx context.Context) ([]documents.KnowledgeBase, error)
	toasts   *notify.Queue
	notifier notify.Notifier
	log      logger.Logger
	now      func() time.Time

	view     View
	width    int
	height   int
	quitting bool

	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	renderedRev uint64
	rendered    bool

	kbs       []documents.KnowledgeBase
	kbIndex   int
	pendingKB string

	docs        docSnapshot
	docsBusy    bool
	cursor      int
	prompt      promptKind
	promptInput textinput.Model

	sessions      []chat.Summary
	historyCursor int
	historyBusy   bool
}

// Message types
type replyMsg struct {
	p     chat.Pending
	reply string
	err   error
}
type finalizedMsg struct{ rec chat.Record }
type docsDoneMsg struct{ err error }
type sessionsMsg []chat.Summary
type recordMsg struct {
	rec chat.Record
	ok  bool
}
type knowledgeBasesMsg struct {
	kbs []documents.KnowledgeBase
	err error
}
type tickMsg time.Time

func New(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Toasts == nil {
		opts.Toasts = notify.NewQueue(3)
	}
	if opts.Notifier == nil {
		opts.Notifier = opts.Toasts
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Ask the knowledge base..."
	ti.CharLimit = 2000
	ti.Width = 60
	ti.Focus()

	pi := textinput.New()
	pi.CharLimit = 500
	pi.Width = 50

	m := Model{
		ctx:         opts.Context,
		ctrl:        opts.Controller,
		browser:     opts.Browser,
		listKBs:     opts.KnowledgeBases,
		toasts:      opts.Toasts,
		notifier:    opts.Notifier,
		log:         opts.Log,
		now:         opts.Now,
		view:        ViewChat,
		input:       ti,
		viewport:    viewport.New(80, 20),
		spinner:     s,
		promptInput: pi,
	}
	if m.browser != nil {
		m.docs = snapshotDocs(m.browser)
		m.docsBusy = m.browser.Query().KnowledgeBaseID != ""
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tickCmd(), m.fetchSessions()}
	if m.listKBs != nil {
		cmds = append(cmds, m.fetchKnowledgeBases())
	}
	if m.docsBusy {
		cmds = append(cmds, m.browse(func(ctx context.Context, b *documents.Browser) error {
			return b.Load(ctx)
		}))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-8, 3)
		m.rendered = false

	case tea.KeyMsg:
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case replyMsg:
		if m.ctrl.Complete(msg.p, msg.reply, msg.err) && msg.err == nil {
			cmds = append(cmds, m.finalize(m.ctrl.Session().Snapshot()))
		}
		m.input.Focus()

	case finalizedMsg:
		m.ctrl.ApplyTitle(msg.rec.ID, msg.rec.Title)
		cmds = append(cmds, m.fetchSessions())

	case docsDoneMsg:
		m.docsBusy = false
		m.docs = snapshotDocs(m.browser)
		m.cursor = clamp(m.cursor, 0, len(m.docs.rows)-1)
		if id := m.pendingKB; id != "" {
			m.pendingKB = ""
			if id != m.docs.kbID {
				var cmd tea.Cmd
				m, cmd = m.openKnowledgeBase(id)
				cmds = append(cmds, cmd)
			}
		}

	case knowledgeBasesMsg:
		if msg.err != nil {
			m.log.Error("tui", "list knowledge bases failed", map[string]interface{}{"error": msg.err})
			m.notifier.Notify(notify.Error("Failed to load knowledge bases", nil))
			break
		}
		var cmd tea.Cmd
		m, cmd = m.installKnowledgeBases(msg.kbs)
		cmds = append(cmds, cmd)

	case sessionsMsg:
		m.historyBusy = false
		m.sessions = msg
		m.historyCursor = clamp(m.historyCursor, 0, len(m.sessions)-1)

	case recordMsg:
		m.historyBusy = false
		if msg.ok && m.ctrl.Hydrate(msg.rec) {
			m.view = ViewChat
			m.input.Focus()
		}

	case spinner.TickMsg:
		if m.ctrl.Session().Typing() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tickMsg:
		m.toasts.Prune(time.Time(msg))
		cmds = append(cmds, tickCmd())

	default:
		if m.view == ViewChat {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.syncViewport()
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		if m.prompt == promptNone {
			return m.switchView((m.view + 1) % View(len(viewNames)))
		}
	case "shift+tab":
		if m.prompt == promptNone {
			return m.switchView((m.view + View(len(viewNames)) - 1) % View(len(viewNames)))
		}
	}

	switch m.view {
	case ViewDocuments:
		return m.handleDocumentsKey(msg)
	case ViewHistory:
		return m.handleHistoryKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m Model) switchView(v View) (Model, tea.Cmd) {
	m.view = v
	if v == ViewChat {
		if !m.ctrl.Session().Typing() {
			m.input.Focus()
		}
		return m, nil
	}
	m.input.Blur()
	if v == ViewHistory && !m.historyBusy {
		m.historyBusy = true
		return m, m.fetchSessions()
	}
	return m, nil
}

// syncViewport re-renders the transcript whenever the session revision moved
// and keeps the newest message in view.
func (m *Model) syncViewport() {
	session := m.ctrl.Session()
	if m.rendered && session.Revision() == m.renderedRev {
		return
	}
	m.viewport.SetContent(renderTranscript(session.Messages(), m.viewport.Width))
	m.viewport.GotoBottom()
	m.renderedRev = session.Revision()
	m.rendered = true
}

// installKnowledgeBases keeps the browsed knowledge base when it is listed and
// otherwise opens the first one.
func (m Model) installKnowledgeBases(kbs []documents.KnowledgeBase) (Model, tea.Cmd) {
	m.kbs = kbs
	if len(kbs) == 0 {
		return m, nil
	}
	current := m.docs.kbID
	for i, kb := range kbs {
		if kb.ID == current {
			m.kbIndex = i
			return m, nil
		}
	}
	if current != "" {
		return m, nil
	}
	return m.selectKnowledgeBase(0)
}

// selectKnowledgeBase points both the chat and the browser at kbs[i]. While a
// browser command runs the switch is queued until docsDoneMsg.
func (m Model) selectKnowledgeBase(i int) (Model, tea.Cmd) {
	if i < 0 || i >= len(m.kbs) {
		return m, nil
	}
	m.kbIndex = i
	id := m.kbs[i].ID
	m.ctrl.SetKnowledgeBases([]string{id})
	if m.browser == nil {
		return m, nil
	}
	if m.docsBusy {
		m.pendingKB = id
		return m, nil
	}
	return m.openKnowledgeBase(id)
}

func (m Model) openKnowledgeBase(id string) (Model, tea.Cmd) {
	m.docsBusy = true
	m.cursor = 0
	return m, m.browse(func(ctx context.Context, b *documents.Browser) error {
		return b.SetKnowledgeBase(ctx, id)
	})
}

func (m Model) currentKnowledgeBase() string {
	if m.kbIndex < len(m.kbs) {
		return m.kbs[m.kbIndex].Name
	}
	return m.docs.kbID
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) exchange(p chat.Pending) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		reply, err := ctrl.Exchange(ctx, p)
		return replyMsg{p: p, reply: reply, err: err}
	}
}

func (m Model) finalize(rec chat.Record) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return finalizedMsg{rec: ctrl.Finalize(ctx, rec)}
	}
}

func (m Model) fetchSessions() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg { return sessionsMsg(ctrl.Sessions(ctx)) }
}

func (m Model) fetchRecord(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		rec, ok := ctrl.Fetch(ctx, id)
		return recordMsg{rec: rec, ok: ok}
	}
}

func (m Model) fetchKnowledgeBases() tea.Cmd {
	list, ctx := m.listKBs, m.ctx
	return func() tea.Msg {
		kbs, err := list(ctx)
		return knowledgeBasesMsg{kbs: kbs, err: err}
	}
}

// browse runs op against the browser off the event loop. Callers mark the
// documents view busy so no other browser access happens until docsDoneMsg.
func (m Model) browse(op func(ctx context.Context, b *documents.Browser) error) tea.Cmd {
	b, ctx := m.browser, m.ctx
	return func() tea.Msg { return docsDoneMsg{err: op(ctx, b)} }
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

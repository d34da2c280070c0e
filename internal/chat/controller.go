package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gwi.com/kb-console/internal/logger"
	"gwi.com/kb-console/internal/notify"
)

type SendRequest struct {
	SessionID        string
	Text             string
	KnowledgeBaseIDs []string
}

// Sender produces the assistant's reply to one user message.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// History lists and loads stored conversations. LoadSession returns nil, nil
// for an unknown id.
type History interface {
	ListSessions(ctx context.Context) ([]Summary, error)
	LoadSession(ctx context.Context, id string) (*Record, error)
}

// Recorder persists a full conversation snapshot.
type Recorder interface {
	SaveSession(ctx context.Context, rec Record) error
}

// Titler names a conversation from its first user message.
type Titler interface {
	Title(ctx context.Context, firstMessage string) (string, error)
}

const maxFallbackTitle = 40

type Controller struct {
	session  *Session
	sender   Sender
	history  History
	recorder Recorder
	titler   Titler
	notifier notify.Notifier
	log      logger.Logger
}

type ControllerOption func(*Controller)

func WithHistory(h History) ControllerOption {
	return func(c *Controller) { c.history = h }
}

func WithRecorder(r Recorder) ControllerOption {
	return func(c *Controller) { c.recorder = r }
}

func WithTitler(t Titler) ControllerOption {
	return func(c *Controller) { c.titler = t }
}

func WithLogger(l logger.Logger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// NewController drives session with sender. The notifier receives every
// user-facing failure; the session should report to the same notifier.
func NewController(session *Session, sender Sender, notifier notify.Notifier, opts ...ControllerOption) *Controller {
	if notifier == nil {
		notifier = notify.Discard
	}
	c := &Controller{
		session:  session,
		sender:   sender,
		notifier: notifier,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Session() *Session { return c.session }

func (c *Controller) SetKnowledgeBases(ids []string) {
	c.session.SetKnowledgeBases(ids)
}

// Send runs one full exchange synchronously. Blank text and sends while a
// reply is outstanding are ignored and report ok == false. The typing flag is
// cleared on every return path.
func (c *Controller) Send(ctx context.Context, text string) (ok bool) {
	p, ok := c.Begin(text)
	if !ok {
		return false
	}
	defer c.session.Abandon(p)

	reply, err := c.Exchange(ctx, p)
	if c.Complete(p, reply, err) && err == nil {
		rec := c.Finalize(ctx, c.session.Snapshot())
		c.ApplyTitle(rec.ID, rec.Title)
	}
	return true
}

// Begin appends the user's text and returns the outstanding request to hand
// to Exchange. It must run on the event loop.
func (c *Controller) Begin(text string) (Pending, bool) {
	p, ok := c.session.SendMessage(text)
	if !ok {
		c.log.Debug("chat", "send ignored", map[string]interface{}{"state": c.session.State().String()})
	}
	return p, ok
}

// Exchange calls the sender for p. It touches no session state and may run
// off the event loop.
func (c *Controller) Exchange(ctx context.Context, p Pending) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sender panicked: %v", ErrAbandoned, r)
		}
	}()
	return c.sender.Send(ctx, SendRequest{
		SessionID:        p.SessionID,
		Text:             p.Text,
		KnowledgeBaseIDs: p.KnowledgeBaseIDs,
	})
}

// Complete applies the outcome of Exchange to the session. It reports false
// when p was stale and nothing changed.
func (c *Controller) Complete(p Pending, reply string, err error) bool {
	if err != nil {
		if !c.session.OnFailure(p, err) {
			return false
		}
		c.log.Error("chat", "send failed", map[string]interface{}{
			"session_id": p.SessionID,
			"error":      err,
		})
		return true
	}
	if !c.session.OnReply(p, reply) {
		c.log.Debug("chat", "stale reply dropped", map[string]interface{}{"session_id": p.SessionID})
		return false
	}
	c.log.Info("chat", "reply received", map[string]interface{}{
		"session_id": p.SessionID,
		"messages":   c.session.Len(),
	})
	return true
}

// Finalize names an untitled snapshot and persists it through the recorder.
// It touches no session state and may run off the event loop; the returned
// record carries the title to hand back to ApplyTitle.
func (c *Controller) Finalize(ctx context.Context, rec Record) Record {
	if rec.Title == "" {
		rec.Title = c.title(ctx, firstUserText(rec.Messages))
	}
	if c.recorder == nil {
		return rec
	}
	if err := c.recorder.SaveSession(ctx, rec); err != nil {
		c.log.Error("chat", "save session failed", map[string]interface{}{
			"session_id": rec.ID,
			"error":      err,
		})
		c.notifier.Notify(notify.Warning("Reply received but the chat could not be saved"))
	}
	return rec
}

// ApplyTitle sets the title of the live session if it is still the session
// named by id and has none yet.
func (c *Controller) ApplyTitle(id, title string) {
	if c.session.ID() == id && c.session.Title() == "" {
		c.session.SetTitle(title)
	}
}

// NewChat resets the conversation. Ignored while a reply is outstanding.
func (c *Controller) NewChat() bool {
	return c.session.CreateNewChat()
}

// Load hydrates the session from history. A missing session yields an empty
// conversation with that id; transport errors are notified and leave the
// current conversation as it was.
func (c *Controller) Load(ctx context.Context, id string) bool {
	if c.session.Typing() {
		return false
	}
	rec, ok := c.Fetch(ctx, id)
	if !ok {
		return false
	}
	return c.Hydrate(rec)
}

// Fetch reads a stored conversation without touching the session, so it may
// run off the event loop. ok is false when the read failed; the failure has
// already been notified.
func (c *Controller) Fetch(ctx context.Context, id string) (rec Record, ok bool) {
	if c.history == nil {
		return Record{}, false
	}
	found, err := c.history.LoadSession(ctx, id)
	if err != nil {
		c.log.Error("chat", "load session failed", map[string]interface{}{"session_id": id, "error": err})
		c.notifier.Notify(notify.Error("Failed to load chat history", nil))
		return Record{}, false
	}
	if found == nil {
		return Record{ID: id}, true
	}
	return *found, true
}

// Hydrate replaces the conversation with rec. Ignored while a reply is
// outstanding.
func (c *Controller) Hydrate(rec Record) bool {
	return c.session.LoadSession(rec)
}

// Sessions lists stored conversations for the history picker. Failures are
// notified and produce an empty list.
func (c *Controller) Sessions(ctx context.Context) []Summary {
	if c.history == nil {
		return nil
	}
	list, err := c.history.ListSessions(ctx)
	if err != nil {
		c.log.Error("chat", "list sessions failed", map[string]interface{}{"error": err})
		c.notifier.Notify(notify.Error("Failed to load chat history", nil))
		return nil
	}
	return list
}

func (c *Controller) title(ctx context.Context, firstText string) string {
	if c.titler != nil {
		title, err := c.titler.Title(ctx, firstText)
		if err == nil && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
		c.log.Warn("chat", "title generation failed", map[string]interface{}{"error": fmt.Sprint(err)})
	}
	return FallbackTitle(firstText)
}

func firstUserText(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}

// FallbackTitle is the first line of text cut to a short display length.
func FallbackTitle(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if utf8.RuneCountInString(text) <= maxFallbackTitle {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxFallbackTitle])) + "…"
}

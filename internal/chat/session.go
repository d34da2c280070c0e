// Package chat holds the state of one conversation with the assistant and
// drives it through send, reply, failure, reset and load transitions.
package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"gwi.com/kb-console/internal/notify"
)

type State int

const (
	StateIdle State = iota
	StateSending
)

func (s State) String() string {
	if s == StateSending {
		return "sending"
	}
	return "idle"
}

// ErrAbandoned settles a send whose outcome never arrived, e.g. a panicking sender.
var ErrAbandoned = errors.New("send abandoned before a reply arrived")

// Pending identifies the one outstanding send. Replies carrying any other
// Pending are stale and ignored.
type Pending struct {
	seq              uint64
	SessionID        string
	Text             string
	KnowledgeBaseIDs []string
}

// Session is the message list plus typing flag of a single conversation.
// It is not safe for concurrent use: every method is expected to run on the
// UI event loop.
type Session struct {
	id               string
	title            string
	createdAt        time.Time
	knowledgeBaseIDs []string
	messages         []Message
	state            State
	pending          uint64
	seq              uint64
	revision         uint64

	now      func() time.Time
	newID    func() string
	welcome  func() string
	notifier notify.Notifier
	failText string
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

// WithWelcome seeds every new chat with the returned text as an assistant
// message. An empty string seeds nothing.
func WithWelcome(welcome func() string) Option {
	return func(s *Session) { s.welcome = welcome }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithFailureMessage replaces the user-facing text reported when a send fails.
func WithFailureMessage(text string) Option {
	return func(s *Session) { s.failText = text }
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		now:      time.Now,
		newID:    uuid.NewString,
		notifier: notify.Discard,
		failText: "Failed to get a reply, please try again",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.id = s.newID()
	s.createdAt = s.now()
	return s
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Title() string    { return s.title }
func (s *Session) State() State     { return s.state }
func (s *Session) Typing() bool     { return s.state == StateSending }
func (s *Session) Len() int         { return len(s.messages) }
func (s *Session) Revision() uint64 { return s.revision }

// Messages returns a copy of the conversation in append order.
func (s *Session) Messages() []Message {
	return append([]Message(nil), s.messages...)
}

func (s *Session) KnowledgeBaseIDs() []string {
	return append([]string(nil), s.knowledgeBaseIDs...)
}

// SetKnowledgeBases replaces the knowledge bases attached to later sends.
func (s *Session) SetKnowledgeBases(ids []string) {
	s.knowledgeBaseIDs = append([]string(nil), ids...)
}

func (s *Session) SetTitle(title string) {
	s.title = title
}

// SendMessage optimistically appends the user's text and enters Sending.
// Blank text, or a send while another is outstanding, changes nothing and
// returns ok == false.
func (s *Session) SendMessage(text string) (p Pending, ok bool) {
	if s.state != StateIdle || strings.TrimSpace(text) == "" {
		return Pending{}, false
	}
	s.append(RoleUser, text)
	s.seq++
	s.pending = s.seq
	s.state = StateSending
	s.revision++
	return Pending{
		seq:              s.seq,
		SessionID:        s.id,
		Text:             text,
		KnowledgeBaseIDs: s.KnowledgeBaseIDs(),
	}, true
}

// OnReply appends the assistant's reply and returns to Idle.
func (s *Session) OnReply(p Pending, text string) bool {
	if !s.settle(p) {
		return false
	}
	s.append(RoleAssistant, text)
	return true
}

// OnFailure returns to Idle without an assistant message and reports the
// failure once. The user's message stays in the list.
func (s *Session) OnFailure(p Pending, err error) bool {
	if !s.settle(p) {
		return false
	}
	s.notifier.Notify(notify.Error(s.failText, nil))
	return true
}

// Abandon returns to Idle if p is still outstanding, without appending or
// notifying. It is safe to defer after every send.
func (s *Session) Abandon(p Pending) bool {
	return s.settle(p)
}

// CreateNewChat clears the conversation, starts a new session id and seeds
// the welcome message. Ignored while Sending.
func (s *Session) CreateNewChat() bool {
	if s.state != StateIdle {
		return false
	}
	s.id = s.newID()
	s.title = ""
	s.createdAt = s.now()
	s.messages = nil
	if s.welcome != nil {
		if text := s.welcome(); strings.TrimSpace(text) != "" {
			s.append(RoleAssistant, text)
		}
	}
	s.revision++
	return true
}

// LoadSession replaces the conversation with a stored one, dropping messages
// that carry provider debug markers. Timestamps are clamped so they never go
// backwards. Ignored while Sending.
func (s *Session) LoadSession(rec Record) bool {
	if s.state != StateIdle {
		return false
	}
	s.id = rec.ID
	s.title = rec.Title
	s.createdAt = rec.CreatedAt
	if len(rec.KnowledgeBaseIDs) > 0 {
		s.SetKnowledgeBases(rec.KnowledgeBaseIDs)
	}
	s.messages = FilterDebugMessages(rec.Messages)
	for i := 1; i < len(s.messages); i++ {
		if s.messages[i].Timestamp.Before(s.messages[i-1].Timestamp) {
			s.messages[i].Timestamp = s.messages[i-1].Timestamp
		}
	}
	s.revision++
	return true
}

// Snapshot returns the conversation as a history record.
func (s *Session) Snapshot() Record {
	updated := s.createdAt
	if n := len(s.messages); n > 0 {
		updated = s.messages[n-1].Timestamp
	}
	return Record{
		ID:               s.id,
		Title:            s.title,
		KnowledgeBaseIDs: s.KnowledgeBaseIDs(),
		Messages:         s.Messages(),
		CreatedAt:        s.createdAt,
		UpdatedAt:        updated,
	}
}

func (s *Session) settle(p Pending) bool {
	if s.state != StateSending || p.seq == 0 || p.seq != s.pending {
		return false
	}
	s.state = StateIdle
	s.pending = 0
	s.revision++
	return true
}

// append adds a message whose timestamp never precedes the last one.
func (s *Session) append(role Role, content string) {
	ts := s.now()
	if n := len(s.messages); n > 0 && ts.Before(s.messages[n-1].Timestamp) {
		ts = s.messages[n-1].Timestamp
	}
	s.messages = append(s.messages, Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
	})
}

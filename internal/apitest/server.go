// Package apitest serves the console REST API from memory. It backs the api
// tests and the demo command.
package apitest

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/documents"
	"gwi.com/kb-console/internal/logger"
)

// Op names one route so tests can force it to fail or count its calls.
type Op string

const (
	OpLogin          Op = "login"
	OpKnowledgeBases Op = "knowledge-bases"
	OpDocuments      Op = "documents"
	OpSync           Op = "sync"
	OpDelete         Op = "delete"
	OpUpload         Op = "upload"
	OpChat           Op = "chat"
	OpSessions       Op = "sessions"
	OpSession        Op = "session"
	OpSave           Op = "save"
)

// ReplyFunc produces the assistant reply for a chat request.
type ReplyFunc func(message string, knowledgeBases []documents.KnowledgeBase) string

type Server struct {
	secret   []byte
	tokenTTL time.Duration
	latency  time.Duration
	reply    ReplyFunc
	log      logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	users     map[string]string
	kbs       []documents.KnowledgeBase
	docs      map[string][]documents.Document
	sessions  map[string]chat.Record
	failures  map[Op]int
	calls     map[Op]int
	lastChats []ChatRequest
}

type Option func(*Server)

func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// WithLatency delays every chat reply, which keeps the typing indicator visible
// in the demo.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

func WithReply(f ReplyFunc) Option {
	return func(s *Server) { s.reply = f }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

func WithUser(username, password string) Option {
	return func(s *Server) { s.users[username] = password }
}

// NewServer returns a server without fixtures; call Seed or use NewDemoServer.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:   []byte("apitest-secret"),
		tokenTTL: time.Hour,
		reply:    defaultReply,
		log:      logger.Nop(),
		now:      time.Now,
		users:    map[string]string{},
		docs:     map[string][]documents.Document{},
		sessions: map[string]chat.Record{},
		failures: map[Op]int{},
		calls:    map[Op]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.jwtAuth)

			r.Get("/knowledge-bases", s.handleKnowledgeBases)
			r.Route("/knowledge-bases/{kbID}/documents", func(r chi.Router) {
				r.Get("/", s.handleListDocuments)
				r.Post("/", s.handleUpload)
				r.Post("/sync", s.handleSync)
				r.Post("/delete", s.handleDelete)
			})

			r.Post("/chat", s.handleChat)
			r.Get("/chat/sessions", s.handleListSessions)
			r.Get("/chat/sessions/{sessionID}", s.handleGetSession)
			r.Put("/chat/sessions/{sessionID}", s.handleSaveSession)
		})
	})

	return r
}

// Fail makes every following call to op answer with status until Recover.
func (s *Server) Fail(op Op, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = status
}

func (s *Server) Recover(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

// Calls counts requests that reached op's handler, including forced failures.
func (s *Server) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// ChatRequests returns the chat requests received so far.
func (s *Server) ChatRequests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.lastChats...)
}

func (s *Server) Documents(knowledgeBaseID string) []documents.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]documents.Document(nil), s.docs[knowledgeBaseID]...)
}

// Session returns a stored session and whether it exists.
func (s *Server) Session(id string) (chat.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	return rec, ok
}

// enter records a call to op and reports a forced failure status, or 0.
func (s *Server) enter(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.failures[op]
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("apitest", "request", map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		})
	})
}

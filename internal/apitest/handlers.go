package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gwi.com/kb-console/internal/auth"
	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/documents"
)

type ctxKey string

const userKey ctxKey = "username"

const maxUploadBytes = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// failed writes the forced failure for op, if any.
func (s *Server) failed(w http.ResponseWriter, op Op) bool {
	status := s.enter(op)
	if status == 0 {
		return false
	}
	writeError(w, status, fmt.Sprintf("forced %s failure", op))
	return true
}

func (s *Server) jwtAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		username, err := auth.ValidateJWT(tokenString, s.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		s.mu.Lock()
		_, known := s.users[username]
		s.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpLogin) {
		return
	}
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.mu.Lock()
	password, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(req.Username, s.secret, s.tokenTTL)
	if err != nil {
		s.log.Error("apitest", "failed to sign token", map[string]interface{}{"username": req.Username, "error": err})
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpKnowledgeBases) {
		return
	}
	s.mu.Lock()
	kbs := make([]documents.KnowledgeBase, len(s.kbs))
	for i, kb := range s.kbs {
		kb.DocumentCount = len(s.docs[kb.ID])
		kbs[i] = kb
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, kbs)
}

func (s *Server) knowledgeBase(id string) (documents.KnowledgeBase, bool) {
	for _, kb := range s.kbs {
		if kb.ID == id {
			return kb, true
		}
	}
	return documents.KnowledgeBase{}, false
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpDocuments) {
		return
	}
	kbID := chi.URLParam(r, "kbID")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)
	if page < 1 || pageSize < 1 {
		writeError(w, http.StatusBadRequest, "page and page_size must be positive")
		return
	}
	search := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.Lock()
	_, ok := s.knowledgeBase(kbID)
	var matched []documents.Document
	for _, d := range s.docs[kbID] {
		if search == "" || strings.Contains(strings.ToLower(d.Name), search) {
			matched = append(matched, d)
		}
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Knowledge base not found")
		return
	}

	offset := (page - 1) * pageSize
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	writeJSON(w, http.StatusOK, documents.Page{
		Rows:   append([]documents.Document{}, matched[offset:end]...),
		Total:  len(matched),
		Offset: offset,
	})
}

type IDsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpSync) {
		return
	}
	s.mutateDocuments(w, r, func(d *documents.Document) bool {
		d.SyncStatus = "syncing"
		d.UpdatedAt = s.now().UTC()
		return true
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpDelete) {
		return
	}
	s.mutateDocuments(w, r, func(*documents.Document) bool { return false })
}

// mutateDocuments applies apply to every requested document, dropping those
// for which it returns false. Unknown ids fail the whole request.
func (s *Server) mutateDocuments(w http.ResponseWriter, r *http.Request, apply func(*documents.Document) bool) {
	kbID := chi.URLParam(r, "kbID")
	var req IDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids cannot be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.knowledgeBase(kbID); !ok {
		writeError(w, http.StatusNotFound, "Knowledge base not found")
		return
	}
	wanted := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		wanted[id] = true
	}
	found := 0
	for _, d := range s.docs[kbID] {
		if wanted[d.ID] {
			found++
		}
	}
	if found != len(wanted) {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	kept := make([]documents.Document, 0, len(s.docs[kbID]))
	for _, d := range s.docs[kbID] {
		if wanted[d.ID] && !apply(&d) {
			continue
		}
		kept = append(kept, d)
	}
	s.docs[kbID] = kept
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpUpload) {
		return
	}
	kbID := chi.URLParam(r, "kbID")
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.knowledgeBase(kbID); !ok {
		writeError(w, http.StatusNotFound, "Knowledge base not found")
		return
	}
	doc := documents.Document{
		ID:         uuid.NewString(),
		Name:       header.Filename,
		Size:       size,
		Type:       strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), "."),
		Status:     "uploaded",
		SyncStatus: "pending",
		UpdatedAt:  s.now().UTC(),
	}
	s.docs[kbID] = append(s.docs[kbID], doc)
	writeJSON(w, http.StatusCreated, doc)
}

type ChatRequest struct {
	Message          string   `json:"message"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	SessionID        string   `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpChat) {
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	s.mu.Lock()
	s.lastChats = append(s.lastChats, req)
	var kbs []documents.KnowledgeBase
	for _, id := range req.KnowledgeBaseIDs {
		if kb, ok := s.knowledgeBase(id); ok {
			kbs = append(kbs, kb)
		}
	}
	s.mu.Unlock()

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": s.reply(req.Message, kbs)})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpSessions) {
		return
	}
	s.mu.Lock()
	summaries := make([]chat.Summary, 0, len(s.sessions))
	for _, rec := range s.sessions {
		summaries = append(summaries, chat.Summary{
			ID:           rec.ID,
			Title:        rec.Title,
			MessageCount: len(rec.Messages),
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	s.mu.Unlock()
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpSession) {
		return
	}
	id := chi.URLParam(r, "sessionID")
	rec, ok := s.Session(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, OpSave) {
		return
	}
	id := chi.URLParam(r, "sessionID")
	var rec chat.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if rec.ID != "" && rec.ID != id {
		writeError(w, http.StatusBadRequest, "Session id does not match the path")
		return
	}
	rec.ID = id
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now().UTC()
	}

	s.mu.Lock()
	s.sessions[id] = rec
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func defaultReply(message string, kbs []documents.KnowledgeBase) string {
	if len(kbs) == 0 {
		return fmt.Sprintf("No knowledge base is selected, so I can only say that you asked: %q.", message)
	}
	names := make([]string, len(kbs))
	for i, kb := range kbs {
		names[i] = kb.Name
	}
	return fmt.Sprintf("Searching %s for %q found nothing conclusive in this demo data.", strings.Join(names, ", "), message)
}

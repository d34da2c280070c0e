package apitest

import (
	"fmt"
	"time"

	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/documents"
)

const (
	DemoUsername = "demo"
	DemoPassword = "demo"
)

// AddKnowledgeBase registers kb with docs, replacing any existing entry.
func (s *Server) AddKnowledgeBase(kb documents.KnowledgeBase, docs ...documents.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.kbs {
		if existing.ID == kb.ID {
			s.kbs[i] = kb
			s.docs[kb.ID] = append([]documents.Document(nil), docs...)
			return
		}
	}
	s.kbs = append(s.kbs, kb)
	s.docs[kb.ID] = append([]documents.Document(nil), docs...)
}

func (s *Server) AddSession(rec chat.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ID] = rec
}

// GenerateDocuments returns n documents named after prefix with ids prefix-00, prefix-01...
func GenerateDocuments(prefix string, n int, updated time.Time) []documents.Document {
	types := []string{"pdf", "docx", "md", "csv"}
	docs := make([]documents.Document, n)
	for i := range docs {
		typ := types[i%len(types)]
		docs[i] = documents.Document{
			ID:         fmt.Sprintf("%s-%02d", prefix, i),
			Name:       fmt.Sprintf("%s-%02d.%s", prefix, i, typ),
			Size:       int64(1024 * (i + 1)),
			Type:       typ,
			Status:     "ready",
			SyncStatus: "synced",
			UpdatedAt:  updated.Add(-time.Duration(i) * time.Hour),
		}
	}
	return docs
}

// NewDemoServer returns a server with the demo user, two knowledge bases and
// one earlier conversation.
func NewDemoServer(opts ...Option) *Server {
	s := NewServer(append([]Option{WithUser(DemoUsername, DemoPassword)}, opts...)...)
	now := s.now().UTC().Truncate(time.Second)

	s.AddKnowledgeBase(documents.KnowledgeBase{
		ID:          "kb-research",
		Name:        "Market Research",
		Description: "Survey reports and audience studies",
	}, GenerateDocuments("survey", 23, now)...)
	s.AddKnowledgeBase(documents.KnowledgeBase{
		ID:          "kb-handbook",
		Name:        "Employee Handbook",
		Description: "Policies and onboarding guides",
	}, GenerateDocuments("policy", 4, now)...)

	started := now.Add(-26 * time.Hour)
	s.AddSession(chat.Record{
		ID:               "session-welcome",
		Title:            "Gen Z social media usage",
		KnowledgeBaseIDs: []string{"kb-research"},
		Messages: []chat.Message{
			{ID: "m1", Role: chat.RoleUser, Content: "How much time does Gen Z spend on social media?", Timestamp: started},
			{ID: "m2", Role: chat.RoleAssistant, Content: "parts { text_metadata=None }", Timestamp: started.Add(time.Second)},
			{ID: "m3", Role: chat.RoleAssistant, Content: "The 2024 survey puts it at around three hours a day.", Timestamp: started.Add(2 * time.Second)},
		},
		CreatedAt: started,
		UpdatedAt: started.Add(2 * time.Second),
	})
	return s
}

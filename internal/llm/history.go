package llm

import (
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/patrickmn/go-cache"
)

// historyTTL bounds how long an idle conversation keeps its model history.
const historyTTL = 2 * time.Hour

// historyBook holds the Gemini chat history of each live session.
type historyBook struct {
	c *cache.Cache
}

func newHistoryBook() *historyBook {
	return &historyBook{c: cache.New(historyTTL, 10*time.Minute)}
}

func (h *historyBook) get(sessionID string) []*genai.Content {
	if sessionID == "" {
		return nil
	}
	if v, ok := h.c.Get(sessionID); ok {
		return append([]*genai.Content(nil), v.([]*genai.Content)...)
	}
	return nil
}

func (h *historyBook) set(sessionID string, history []*genai.Content) {
	if sessionID == "" {
		return
	}
	h.c.SetDefault(sessionID, append([]*genai.Content(nil), history...))
}

func (h *historyBook) len() int {
	return h.c.ItemCount()
}

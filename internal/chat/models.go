package chat

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is a full conversation as stored by a history backend.
type Record struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	KnowledgeBaseIDs []string  `json:"knowledge_base_ids,omitempty"`
	Messages         []Message `json:"messages"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Summary is one entry of the history picker.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// debugMarkers are fragments of provider debug output that sometimes leak into
// stored message content; such messages are never shown.
var debugMarkers = []string{
	"video_metadata=None",
	"image_metadata=None",
	"text_metadata=None",
}

// FilterDebugMessages returns the messages whose content carries no debug marker,
// preserving order.
func FilterDebugMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if hasDebugMarker(m.Content) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasDebugMarker(content string) bool {
	for _, marker := range debugMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

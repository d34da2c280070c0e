package documents

import "time"

type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	SyncStatus string    `json:"sync_status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type KnowledgeBase struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount int    `json:"document_count"`
}

// Query selects one page of a knowledge base. Page is 1-based.
type Query struct {
	KnowledgeBaseID string
	Page            int
	PageSize        int
	Search          string
}

// Page is one server-side page of documents. Offset is the global index of Rows[0].
type Page struct {
	Rows   []Document `json:"items"`
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
}

// Package documents pages through the documents of one knowledge base and
// applies bulk actions to the rows the user has checked.
package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gwi.com/kb-console/internal/logger"
	"gwi.com/kb-console/internal/notify"
	"gwi.com/kb-console/internal/selection"
)

type Fetcher interface {
	FetchDocuments(ctx context.Context, q Query) (Page, error)
}

type Mutator interface {
	SyncDocuments(ctx context.Context, knowledgeBaseID string, ids []string) error
	DeleteDocuments(ctx context.Context, knowledgeBaseID string, ids []string) error
	UploadDocument(ctx context.Context, knowledgeBaseID, name string, r io.Reader) (Document, error)
}

type Service interface {
	Fetcher
	Mutator
}

// Browser is not safe for concurrent use.
type Browser struct {
	svc      Service
	notifier notify.Notifier
	log      logger.Logger
	tracker  *selection.Tracker

	query  Query
	rows   []Document
	total  int
	loaded bool
}

func NewBrowser(svc Service, knowledgeBaseID string, pageSize int, notifier notify.Notifier, log logger.Logger) *Browser {
	if pageSize <= 0 {
		pageSize = 10
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Browser{
		svc:      svc,
		notifier: notifier,
		log:      log,
		tracker:  selection.NewTracker(),
		query:    Query{KnowledgeBaseID: knowledgeBaseID, Page: 1, PageSize: pageSize},
	}
}

func (b *Browser) Query() Query                  { return b.query }
func (b *Browser) Rows() []Document              { return append([]Document(nil), b.rows...) }
func (b *Browser) Total() int                    { return b.total }
func (b *Browser) Loaded() bool                  { return b.loaded }
func (b *Browser) Selection() *selection.Tracker { return b.tracker }

// TotalPages is never less than 1 so an empty result still has a page to show.
func (b *Browser) TotalPages() int {
	if b.total <= 0 {
		return 1
	}
	return (b.total + b.query.PageSize - 1) / b.query.PageSize
}

// SetKnowledgeBase switches to another knowledge base and reloads from page 1.
func (b *Browser) SetKnowledgeBase(ctx context.Context, id string) error {
	q := b.query
	q.KnowledgeBaseID = id
	q.Page = 1
	q.Search = ""
	return b.load(ctx, q)
}

// Load fetches the current page. On failure the previous rows stay in place.
func (b *Browser) Load(ctx context.Context) error {
	return b.load(ctx, b.query)
}

func (b *Browser) Search(ctx context.Context, term string) error {
	q := b.query
	q.Search = term
	q.Page = 1
	return b.load(ctx, q)
}

func (b *Browser) GoToPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	if b.loaded && page > b.TotalPages() {
		page = b.TotalPages()
	}
	q := b.query
	q.Page = page
	return b.load(ctx, q)
}

func (b *Browser) NextPage(ctx context.Context) error {
	if b.query.Page >= b.TotalPages() {
		return nil
	}
	return b.GoToPage(ctx, b.query.Page+1)
}

func (b *Browser) PrevPage(ctx context.Context) error {
	if b.query.Page <= 1 {
		return nil
	}
	return b.GoToPage(ctx, b.query.Page-1)
}

func (b *Browser) Toggle(local int) { b.tracker.Toggle(local) }
func (b *Browser) SelectAllOnPage() { b.tracker.SelectAllOnPage() }
func (b *Browser) ClearSelection()  { b.tracker.ClearAll() }

// SelectedIDs maps the checked rows of the visible page to document ids.
func (b *Browser) SelectedIDs() []string {
	var ids []string
	for _, local := range b.tracker.SelectedLocal() {
		if local < len(b.rows) {
			ids = append(ids, b.rows[local].ID)
		}
	}
	return ids
}

func (b *Browser) SyncSelected(ctx context.Context) error {
	return b.bulk(ctx, "sync", b.SelectedIDs())
}

func (b *Browser) DeleteSelected(ctx context.Context) error {
	return b.bulk(ctx, "delete", b.SelectedIDs())
}

// Sync and Delete act on explicit document ids regardless of the selection.
func (b *Browser) Sync(ctx context.Context, ids ...string) error {
	return b.bulk(ctx, "sync", ids)
}

func (b *Browser) Delete(ctx context.Context, ids ...string) error {
	return b.bulk(ctx, "delete", ids)
}

// Upload sends a local file to the current knowledge base and refreshes.
func (b *Browser) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		b.notifier.Notify(notify.Error("Failed to read file", err))
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	doc, err := b.svc.UploadDocument(ctx, b.query.KnowledgeBaseID, name, f)
	if err != nil {
		b.log.Error("documents", "upload failed", map[string]interface{}{"file": name, "error": err})
		b.notifier.Notify(notify.Error("Failed to upload "+name, nil))
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	b.log.Info("documents", "uploaded", map[string]interface{}{"file": name, "document_id": doc.ID})
	b.notifier.Notify(notify.Success(fmt.Sprintf("Uploaded %s", name)))
	return b.refresh(ctx)
}

func (b *Browser) bulk(ctx context.Context, action string, ids []string) error {
	if len(ids) == 0 {
		b.notifier.Notify(notify.Info("No documents selected"))
		return nil
	}

	var err error
	switch action {
	case "sync":
		err = b.svc.SyncDocuments(ctx, b.query.KnowledgeBaseID, ids)
	case "delete":
		err = b.svc.DeleteDocuments(ctx, b.query.KnowledgeBaseID, ids)
	default:
		return fmt.Errorf("unknown document action %q", action)
	}
	details := map[string]interface{}{"action": action, "count": len(ids), "knowledge_base_id": b.query.KnowledgeBaseID}
	if err != nil {
		details["error"] = err
		b.log.Error("documents", "bulk action failed", details)
		b.notifier.Notify(notify.Error(fmt.Sprintf("Failed to %s %s", action, plural(len(ids))), nil))
		return fmt.Errorf("failed to %s documents: %w", action, err)
	}
	b.log.Info("documents", "bulk action done", details)
	verb := map[string]string{"sync": "Sync started for", "delete": "Deleted"}[action]
	b.notifier.Notify(notify.Success(fmt.Sprintf("%s %s", verb, plural(len(ids)))))
	return b.refresh(ctx)
}

// refresh reloads after a mutation, stepping back a page when the current one
// no longer exists.
func (b *Browser) refresh(ctx context.Context) error {
	if err := b.Load(ctx); err != nil {
		return err
	}
	if len(b.rows) == 0 && b.query.Page > 1 && b.query.Page > b.TotalPages() {
		return b.GoToPage(ctx, b.TotalPages())
	}
	return nil
}

func (b *Browser) load(ctx context.Context, q Query) error {
	page, err := b.svc.FetchDocuments(ctx, q)
	if err != nil {
		b.log.Error("documents", "fetch failed", map[string]interface{}{
			"knowledge_base_id": q.KnowledgeBaseID,
			"page":              q.Page,
			"error":             err,
		})
		b.notifier.Notify(notify.Error("Failed to load documents", nil))
		return fmt.Errorf("failed to fetch documents: %w", err)
	}
	b.query = q
	b.rows = page.Rows
	b.total = page.Total
	b.loaded = true
	b.tracker.OnPageChanged(page.Offset, len(page.Rows))
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "1 document"
	}
	return fmt.Sprintf("%d documents", n)
}

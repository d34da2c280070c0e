// Package api is the HTTP client of the knowledge-base console REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"gwi.com/kb-console/internal/auth"
	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/documents"
	"gwi.com/kb-console/internal/logger"
)

const (
	knowledgeBasesKey = "knowledge-bases"
	knowledgeBasesTTL = time.Minute
	tokenLeeway       = 30 * time.Second
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
	cache    *cache.Cache
	log      logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	token string
}

type Option func(*Client)

// WithCredentials lets the client log in, and log in again once the token expires.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache.New(knowledgeBasesTTL, 2*knowledgeBasesTTL),
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges the configured credentials for a bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" {
		return fmt.Errorf("no credentials configured")
	}
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}
	var resp loginResponse
	if err := c.send(ctx, http.MethodPost, "/api/login", body, "application/json", "", &resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login failed: empty token")
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	c.log.Info("api", "logged in", map[string]interface{}{"username": c.username})
	return nil
}

func (c *Client) ListKnowledgeBases(ctx context.Context) ([]documents.KnowledgeBase, error) {
	if cached, ok := c.cache.Get(knowledgeBasesKey); ok {
		return cached.([]documents.KnowledgeBase), nil
	}
	var kbs []documents.KnowledgeBase
	if err := c.do(ctx, http.MethodGet, "/api/knowledge-bases", nil, "", &kbs); err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	c.cache.SetDefault(knowledgeBasesKey, kbs)
	return kbs, nil
}

func (c *Client) FetchDocuments(ctx context.Context, q documents.Query) (documents.Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	var page documents.Page
	if err := c.do(ctx, http.MethodGet, documentsPath(q.KnowledgeBaseID)+"?"+params.Encode(), nil, "", &page); err != nil {
		return documents.Page{}, err
	}
	return page, nil
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (c *Client) SyncDocuments(ctx context.Context, knowledgeBaseID string, ids []string) error {
	return c.postIDs(ctx, documentsPath(knowledgeBaseID)+"/sync", ids)
}

func (c *Client) DeleteDocuments(ctx context.Context, knowledgeBaseID string, ids []string) error {
	if err := c.postIDs(ctx, documentsPath(knowledgeBaseID)+"/delete", ids); err != nil {
		return err
	}
	c.cache.Delete(knowledgeBasesKey)
	return nil
}

func (c *Client) UploadDocument(ctx context.Context, knowledgeBaseID, name string, r io.Reader) (documents.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return documents.Document{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return documents.Document{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return documents.Document{}, fmt.Errorf("failed to finish form: %w", err)
	}

	var doc documents.Document
	if err := c.do(ctx, http.MethodPost, documentsPath(knowledgeBaseID), buf.Bytes(), mw.FormDataContentType(), &doc); err != nil {
		return documents.Document{}, err
	}
	c.cache.Delete(knowledgeBasesKey)
	return doc, nil
}

type sendRequest struct {
	Message          string   `json:"message"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	SessionID        string   `json:"session_id,omitempty"`
}

type sendResponse struct {
	Reply string `json:"reply"`
}

// Send implements chat.Sender.
func (c *Client) Send(ctx context.Context, req chat.SendRequest) (string, error) {
	body, err := json.Marshal(sendRequest{
		Message:          req.Text,
		KnowledgeBaseIDs: nonNil(req.KnowledgeBaseIDs),
		SessionID:        req.SessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, "application/json", &resp); err != nil {
		return "", err
	}
	return resp.Reply, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]chat.Summary, error) {
	var summaries []chat.Summary
	if err := c.do(ctx, http.MethodGet, "/api/chat/sessions", nil, "", &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// LoadSession returns nil, nil when the server does not know the id.
func (c *Client) LoadSession(ctx context.Context, id string) (*chat.Record, error) {
	var rec chat.Record
	err := c.do(ctx, http.MethodGet, "/api/chat/sessions/"+url.PathEscape(id), nil, "", &rec)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) SaveSession(ctx context.Context, rec chat.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/api/chat/sessions/"+url.PathEscape(rec.ID), body, "application/json", nil)
}

func (c *Client) postIDs(ctx context.Context, path string, ids []string) error {
	body, err := json.Marshal(idsRequest{IDs: nonNil(ids)})
	if err != nil {
		return fmt.Errorf("failed to encode ids: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, "application/json", nil)
}

// do sends an authenticated request. A 401 with credentials configured triggers
// one fresh login and a single retry.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out interface{}) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	err = c.send(ctx, method, path, body, contentType, token, out)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized && c.username != "" {
		c.log.Warn("api", "token rejected, logging in again", map[string]interface{}{"path": path})
		if err := c.Login(ctx); err != nil {
			return err
		}
		return c.send(ctx, method, path, body, contentType, c.Token(), out)
	}
	return err
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	token := c.Token()
	if c.username == "" || !auth.Expired(token, c.now(), tokenLeeway) {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	return c.Token(), nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType, token string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("api", "request failed", map[string]interface{}{"method": method, "path": path, "error": err})
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api", "request done", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": c.now().Sub(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// readError accepts both {"error": "..."} bodies and plain text.
func readError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}

func documentsPath(knowledgeBaseID string) string {
	return "/api/knowledge-bases/" + url.PathEscape(knowledgeBaseID) + "/documents"
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

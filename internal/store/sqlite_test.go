package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/kb-console/internal/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 5, 10, 8, 30, 0, 0, time.UTC)

func record(id string, updated time.Time, contents ...string) chat.Record {
	rec := chat.Record{
		ID:               id,
		Title:            "Chat " + id,
		KnowledgeBaseIDs: []string{"kb-1", "kb-2"},
		CreatedAt:        base,
		UpdatedAt:        updated,
	}
	for i, c := range contents {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		rec.Messages = append(rec.Messages, chat.Message{
			ID:        id + "-m" + string(rune('a'+i)),
			Role:      role,
			Content:   c,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	return rec
}

func TestSaveAndLoadSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := record("s1", base.Add(time.Minute), "hello", "hi there", "how are sales?")

	require.NoError(t, s.SaveSession(ctx, rec))

	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Chat s1", got.Title)
	assert.Equal(t, []string{"kb-1", "kb-2"}, got.KnowledgeBaseIDs)
	require.Len(t, got.Messages, 3)
	for i, m := range got.Messages {
		assert.Equal(t, rec.Messages[i].ID, m.ID)
		assert.Equal(t, rec.Messages[i].Role, m.Role)
		assert.Equal(t, rec.Messages[i].Content, m.Content)
		assert.True(t, rec.Messages[i].Timestamp.Equal(m.Timestamp))
	}
}

func TestSaveSessionReplacesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSession(ctx, record("s1", base, "a", "b", "c", "d")))

	updated := record("s1", base.Add(time.Hour), "a", "b")
	updated.Title = "Renamed"
	require.NoError(t, s.SaveSession(ctx, updated))

	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, base.Equal(got.CreatedAt), "created_at is kept on update")
	assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))
}

func TestLoadMissingSession(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LoadSession(context.Background(), "nope")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadEmptySession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := record("empty", base)
	rec.KnowledgeBaseIDs = nil
	require.NoError(t, s.SaveSession(ctx, rec))

	got, err := s.LoadSession(ctx, "empty")

	require.NoError(t, err)
	assert.NotNil(t, got.Messages)
	assert.Empty(t, got.Messages)
	assert.Empty(t, got.KnowledgeBaseIDs)
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSession(ctx, record("old", base, "x")))
	require.NoError(t, s.SaveSession(ctx, record("new", base.Add(2*time.Hour), "x", "y", "z")))
	require.NoError(t, s.SaveSession(ctx, record("mid", base.Add(time.Hour), "x", "y")))

	list, err := s.ListSessions(ctx)

	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, 3, list[0].MessageCount)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
	assert.Equal(t, "Chat old", list[2].Title)
}

func TestListSessionsEmpty(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListSessions(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSaveSessionFillsMissingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := chat.Record{Messages: []chat.Message{{Role: chat.RoleUser, Content: "no id"}}}

	require.NoError(t, s.SaveSession(ctx, rec))

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got, err := s.LoadSession(ctx, list[0].ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.NotEmpty(t, got.Messages[0].ID)
	assert.False(t, got.Messages[0].Timestamp.IsZero())
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveSession(ctx, record("s1", base, "a", "b")))

	require.NoError(t, s.DeleteSession(ctx, "s1"))

	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Error(t, s.DeleteSession(ctx, "s1"))
}

func TestStoreRoundTripsThroughSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := chat.NewSession()
	p, _ := sess.SendMessage("hello")
	sess.OnReply(p, "hi")
	require.NoError(t, s.SaveSession(ctx, sess.Snapshot()))

	rec, err := s.LoadSession(ctx, sess.ID())
	require.NoError(t, err)

	other := chat.NewSession()
	require.True(t, other.LoadSession(*rec))
	assert.Equal(t, sess.Messages()[1].Content, other.Messages()[1].Content)
	assert.Equal(t, sess.ID(), other.ID())
}

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/kb-console/internal/apitest"
	"gwi.com/kb-console/internal/config"
)

func setupDemo(t *testing.T, kbs ...string) *apitest.Server {
	t.Helper()
	srv := apitest.NewDemoServer()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	prevCfg, prevKBs := config.AppConfig, knowledgeBases
	t.Cleanup(func() { config.AppConfig, knowledgeBases = prevCfg, prevKBs })

	config.AppConfig = config.Config{
		APIBaseURL:     ts.URL,
		Username:       apitest.DemoUsername,
		Password:       apitest.DemoPassword,
		Backend:        config.BackendAPI,
		LogLevel:       "DEBUG",
		LogFile:        filepath.Join(t.TempDir(), "console.log"),
		PageSize:       10,
		NotifyDuration: time.Second,
		HTTPTimeout:    5 * time.Second,
	}
	knowledgeBases = kbs
	return srv
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	prev := errOut
	errOut = &stderr
	defer func() { errOut = prev }()
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestChatCommandPrintsReply(t *testing.T) {
	srv := setupDemo(t, "kb-research")

	out, errOut, err := execute(t, chatCmd(), "What", "is", "reach?")
	require.NoError(t, err)

	assert.Contains(t, out, "Market Research")
	assert.Contains(t, errOut, "session ")
	reqs := srv.ChatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "What is reach?", reqs[0].Message)
	assert.Equal(t, []string{"kb-research"}, reqs[0].KnowledgeBaseIDs)
}

func TestChatCommandContinuesSession(t *testing.T) {
	srv := setupDemo(t)

	_, _, err := execute(t, chatCmd(), "--session", "session-welcome", "And", "millennials?")
	require.NoError(t, err)

	rec, ok := srv.Session("session-welcome")
	require.True(t, ok)
	assert.Len(t, rec.Messages, 4, "debug marker message dropped, new exchange appended")
	assert.Equal(t, []string{"kb-research"}, srv.ChatRequests()[0].KnowledgeBaseIDs)
}

func TestChatCommandFailure(t *testing.T) {
	srv := setupDemo(t)
	srv.Fail(apitest.OpChat, http.StatusBadGateway)

	_, _, err := execute(t, chatCmd(), "hello")

	assert.ErrorIs(t, err, errNoReply)
}

func TestDocsListCommand(t *testing.T) {
	setupDemo(t, "kb-research")

	out, _, err := execute(t, docsCmd(), "list", "--page", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "survey-20")
	assert.Contains(t, out, "survey-22")
	assert.NotContains(t, out, "survey-19")
	assert.Contains(t, out, "page 3/3, 23 documents")
}

func TestDocsListRequiresKnowledgeBase(t *testing.T) {
	setupDemo(t)

	_, _, err := execute(t, docsCmd(), "list")

	assert.ErrorContains(t, err, "--kb is required")
}

func TestDocsDeleteCommand(t *testing.T) {
	srv := setupDemo(t, "kb-handbook")

	_, errOut, err := execute(t, docsCmd(), "delete", "policy-00", "policy-01")
	require.NoError(t, err)

	assert.Len(t, srv.Documents("kb-handbook"), 2)
	assert.Contains(t, errOut, "Deleted 2 documents")
}

func TestDocsSyncFailurePrintsNotification(t *testing.T) {
	srv := setupDemo(t, "kb-handbook")
	srv.Fail(apitest.OpSync, http.StatusInternalServerError)

	_, errOut, err := execute(t, docsCmd(), "sync", "policy-00")

	assert.Error(t, err)
	assert.Contains(t, errOut, "Failed to sync 1 document")
}

func TestKnowledgeBaseListCommand(t *testing.T) {
	setupDemo(t)

	out, _, err := execute(t, kbCmd(), "list")
	require.NoError(t, err)

	assert.Contains(t, out, "kb-research")
	assert.Contains(t, out, "Employee Handbook")
}

func TestHistoryCommands(t *testing.T) {
	setupDemo(t)

	out, _, err := execute(t, historyCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "session-welcome")
	assert.Contains(t, out, "Gen Z social media usage")

	out, _, err = execute(t, historyCmd(), "show", "session-welcome")
	require.NoError(t, err)
	assert.Contains(t, out, "three hours a day")
	assert.NotContains(t, out, "text_metadata")
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"gwi.com/kb-console/internal/api"
	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/config"
	"gwi.com/kb-console/internal/llm"
	"gwi.com/kb-console/internal/logger"
	"gwi.com/kb-console/internal/notify"
	"gwi.com/kb-console/internal/store"
)

// errOut receives notifications of non-interactive commands.
var errOut io.Writer = os.Stderr

// app holds the collaborators shared by every command.
type app struct {
	cfg      config.Config
	log      logger.Logger
	toasts   *notify.Queue
	notifier notify.Notifier
	client   *api.Client

	sender   chat.Sender
	history  chat.History
	recorder chat.Recorder
	titler   chat.Titler

	closers []func()
}

// newApp wires the backend selected by cfg. Interactive apps route
// notifications to the toast queue; the others print them to stderr.
func newApp(ctx context.Context, cfg config.Config, interactive bool) (*app, error) {
	log := logger.NewZapLogger(cfg.LogFile, cfg.LogLevel)
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })
	if !cfg.EnvFileLoaded {
		log.Debug("config", "no .env file found, relying on environment variables", nil)
	}

	outputs := notify.Multi{notify.Logged{Log: log}}
	if interactive {
		a.toasts = notify.NewQueue(3)
		outputs = append(outputs, a.toasts)
	} else {
		outputs = append(outputs, notify.Printer{Out: errOut})
	}
	if cfg.DesktopNotify {
		outputs = append(outputs, notify.Desktop{Log: log})
	}
	a.notifier = notify.Defaults{Next: outputs, Duration: cfg.NotifyDuration}

	opts := []api.Option{api.WithLogger(log)}
	if cfg.APIToken != "" {
		opts = append(opts, api.WithToken(cfg.APIToken))
	}
	if cfg.Username != "" {
		opts = append(opts, api.WithCredentials(cfg.Username, cfg.Password))
	}
	a.client = api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, opts...)

	switch cfg.Backend {
	case config.BackendGemini:
		db, err := store.NewSQLiteStore(cfg.HistoryDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open chat history: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		gemini, err := llm.NewGeminiSender(ctx, cfg.GeminiAPIKey, a.knowledgeBaseNames, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, gemini.Close)

		a.sender, a.history, a.recorder, a.titler = gemini, db, db, gemini
	default:
		a.sender, a.history, a.recorder = a.client, a.client, a.client
	}

	log.Info("console", "backend ready", map[string]interface{}{"backend": cfg.Backend, "interactive": interactive})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// controller builds a fresh conversation. Interactive sessions open with the
// configured welcome message.
func (a *app) controller(knowledgeBaseIDs []string, withWelcome bool) *chat.Controller {
	opts := []chat.Option{chat.WithNotifier(a.notifier)}
	if withWelcome {
		welcome := a.cfg.WelcomeMessage
		opts = append(opts, chat.WithWelcome(func() string { return welcome }))
	}
	session := chat.NewSession(opts...)
	if withWelcome {
		session.CreateNewChat()
	}

	ctrlOpts := []chat.ControllerOption{
		chat.WithHistory(a.history),
		chat.WithRecorder(a.recorder),
		chat.WithLogger(a.log),
	}
	if a.titler != nil {
		ctrlOpts = append(ctrlOpts, chat.WithTitler(a.titler))
	}
	ctrl := chat.NewController(session, a.sender, a.notifier, ctrlOpts...)
	ctrl.SetKnowledgeBases(knowledgeBaseIDs)
	return ctrl
}

// knowledgeBaseNames resolves ids through the API when it is reachable.
func (a *app) knowledgeBaseNames(ctx context.Context, ids []string) []string {
	kbs, err := a.client.ListKnowledgeBases(ctx)
	if err != nil {
		a.log.Warn("console", "knowledge base names unavailable", map[string]interface{}{"error": err})
		return ids
	}
	names := make(map[string]string, len(kbs))
	for _, kb := range kbs {
		names[kb.ID] = kb.Name
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id
		if name, ok := names[id]; ok {
			out[i] = name
		}
	}
	return out
}

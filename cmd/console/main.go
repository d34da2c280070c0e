// Package main provides the kb-console entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gwi.com/kb-console/internal/config"
	"gwi.com/kb-console/internal/documents"
	"gwi.com/kb-console/internal/tui"
)

var knowledgeBases []string

func main() {
	rootCmd := &cobra.Command{
		Use:   "console",
		Short: "Terminal console for the knowledge base service",
		Long: `console: chat with your knowledge bases and manage their documents.

Usage modes:
  console              Start the interactive terminal UI
  console <command>    Run a single command (see below)

Configuration is read from the environment and an optional .env file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig()
			return config.AppConfig.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), config.AppConfig)
		},
	}

	rootCmd.PersistentFlags().StringSliceVar(&knowledgeBases, "kb", nil, "Knowledge base ids to chat with (repeatable)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "chat", Title: "Chat:"},
		&cobra.Group{ID: "docs", Title: "Documents:"},
		&cobra.Group{ID: "demo", Title: "Demo:"},
	)

	for _, c := range []*cobra.Command{chatCmd(), historyCmd()} {
		c.GroupID = "chat"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{docsCmd(), kbCmd()} {
		c.GroupID = "docs"
		rootCmd.AddCommand(c)
	}
	demo := demoCmd()
	demo.GroupID = "demo"
	rootCmd.AddCommand(demo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// runTUI starts the interactive program against the configured backend.
func runTUI(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return runProgram(ctx, a)
}

func runProgram(ctx context.Context, a *app) error {
	kbID := ""
	if len(knowledgeBases) > 0 {
		kbID = knowledgeBases[0]
	}
	browser := documents.NewBrowser(a.client, kbID, a.cfg.PageSize, a.notifier, a.log)
	ctrl := a.controller(knowledgeBases, true)

	model := tui.New(tui.Options{
		Context:        ctx,
		Controller:     ctrl,
		Browser:        browser,
		KnowledgeBases: a.client.ListKnowledgeBases,
		Toasts:         a.toasts,
		Notifier:       a.notifier,
		Log:            a.log,
	})

	a.log.Info("console", "starting terminal UI", map[string]interface{}{"backend": a.cfg.Backend, "api": a.cfg.APIBaseURL})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/config"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved conversations",
	}
	cmd.AddCommand(historyListCmd(), historyShowCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.AppConfig, false)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.history.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			t := newTable(cmd.OutOrStdout(), "ID", "TITLE", "MESSAGES", "UPDATED")
			for _, s := range list {
				t.row(s.ID, s.Title, fmt.Sprint(s.MessageCount), ago(s.UpdatedAt))
			}
			return t.flush()
		},
	}
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.AppConfig, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl := a.controller(nil, false)
			if !ctrl.Load(cmd.Context(), args[0]) {
				return fmt.Errorf("failed to load session %s", args[0])
			}
			session := ctrl.Session()
			out := cmd.OutOrStdout()

			title := session.Title()
			if title == "" {
				title = "Untitled chat"
			}
			fmt.Fprintln(out, bold.Sprint(title))
			if session.Len() == 0 {
				fmt.Fprintln(out, dim.Sprint("No messages."))
				return nil
			}
			for _, m := range session.Messages() {
				who := cyan.Sprint("You")
				if m.Role == chat.RoleAssistant {
					who = mag.Sprint("Assistant")
				}
				fmt.Fprintf(out, "\n%s %s\n%s\n", who, dim.Sprint(m.Timestamp.Format("2006-01-02 15:04")), m.Content)
			}
			return nil
		},
	}
}

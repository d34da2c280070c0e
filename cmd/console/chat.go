package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gwi.com/kb-console/internal/chat"
	"gwi.com/kb-console/internal/config"
)

var errNoReply = errors.New("no reply received")

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message and print the reply",
		Long: `Send one message to the assistant and print its reply.

The exchange is saved to chat history. Use --session to continue an earlier
conversation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, config.AppConfig, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl := a.controller(knowledgeBases, false)
			if sessionID != "" {
				if !ctrl.Load(ctx, sessionID) {
					return fmt.Errorf("failed to load session %s", sessionID)
				}
				if len(knowledgeBases) > 0 {
					ctrl.SetKnowledgeBases(knowledgeBases)
				}
			}

			before := ctrl.Session().Len()
			if !ctrl.Send(ctx, strings.Join(args, " ")) {
				return fmt.Errorf("message is empty")
			}
			msgs := ctrl.Session().Messages()
			last := msgs[len(msgs)-1]
			if len(msgs) < before+2 || last.Role != chat.RoleAssistant {
				return errNoReply
			}

			fmt.Fprintln(cmd.OutOrStdout(), last.Content)
			fmt.Fprintln(cmd.ErrOrStderr(), dim.Sprintf("session %s", ctrl.Session().ID()))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Continue the conversation with this id")
	return cmd
}

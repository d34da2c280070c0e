package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gwi.com/kb-console/internal/config"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Knowledge bases",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the knowledge bases you can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.AppConfig, false)
			if err != nil {
				return err
			}
			defer a.Close()

			kbs, err := a.client.ListKnowledgeBases(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "DOCUMENTS", "DESCRIPTION")
			for _, kb := range kbs {
				t.row(kb.ID, kb.Name, fmt.Sprint(kb.DocumentCount), kb.Description)
			}
			return t.flush()
		},
	})
	return cmd
}

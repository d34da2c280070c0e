package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gwi.com/kb-console/internal/config"
	"gwi.com/kb-console/internal/documents"
)

func docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List, sync, delete and upload documents of a knowledge base",
	}
	cmd.AddCommand(docsListCmd(), docsSyncCmd(), docsDeleteCmd(), docsUploadCmd())
	return cmd
}

// withBrowser runs fn against a browser on the first --kb knowledge base.
func withBrowser(cmd *cobra.Command, fn func(a *app, b *documents.Browser) error) error {
	if len(knowledgeBases) == 0 {
		return fmt.Errorf("--kb is required")
	}
	a, err := newApp(cmd.Context(), config.AppConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, documents.NewBrowser(a.client, knowledgeBases[0], a.cfg.PageSize, a.notifier, a.log))
}

func docsListCmd() *cobra.Command {
	var (
		page   int
		search string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(cmd, func(a *app, b *documents.Browser) error {
				ctx := cmd.Context()
				if search != "" {
					if err := b.Search(ctx, search); err != nil {
						return err
					}
				} else if err := b.Load(ctx); err != nil {
					return err
				}
				if page > 1 {
					if err := b.GoToPage(ctx, page); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				t := newTable(out, "#", "ID", "NAME", "TYPE", "SIZE", "SYNC", "UPDATED")
				offset := b.Selection().Offset()
				for i, d := range b.Rows() {
					t.row(fmt.Sprint(offset+i+1), d.ID, d.Name, d.Type, humanize.Bytes(uint64(max(d.Size, 0))), d.SyncStatus, ago(d.UpdatedAt))
				}
				if err := t.flush(); err != nil {
					return err
				}
				fmt.Fprintln(out, dim.Sprintf("page %d/%d, %d documents", b.Query().Page, b.TotalPages(), b.Total()))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().StringVar(&search, "search", "", "Only documents whose name contains this text")
	return cmd
}

func docsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <document-id>...",
		Short: "Start syncing documents into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(cmd, func(_ *app, b *documents.Browser) error {
				return b.Sync(cmd.Context(), args...)
			})
		},
	}
}

func docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Delete documents from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(cmd, func(_ *app, b *documents.Browser) error {
				return b.Delete(cmd.Context(), args...)
			})
		},
	}
}

func docsUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload local files to the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(cmd, func(_ *app, b *documents.Browser) error {
				for _, path := range args {
					if err := b.Upload(cmd.Context(), path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

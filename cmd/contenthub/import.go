package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/resilience"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a content directory into the Postgres content_items table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Corpus.Dir
			}
			ctx := cmd.Context()

			store, err := corpus.Load(ctx, corpus.DirSource{Dir: dir})
			if err != nil {
				return fmt.Errorf("loading %s: %w", dir, err)
			}
			pg, err := postgres.New(cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connecting to postgres: %w", err)
			}
			defer pg.Close()

			src := corpus.NewPostgresSource(pg, resilience.DefaultRetryConfig())
			if err := src.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := src.Upsert(ctx, store.All()); err != nil {
				return err
			}
			slog.Info("import finished", "dir", dir, "documents", store.Len(), "fingerprint", store.Fingerprint())
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents from %s\n", store.Len(), dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "content directory (defaults to corpus.dir)")
	return cmd
}

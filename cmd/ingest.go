package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/ygo-judge/internal/ingest"
	"github.com/MimeLyc/ygo-judge/internal/persistence"
)

func newIngestCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load reference data into the database",
	}
	cmd.AddCommand(newIngestCatalogCmd(c), newIngestRulingsCmd(c))
	return cmd
}

func newIngestCatalogCmd(c *cli) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Replace the card table with the public card catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewSQLiteStore(c.cfg.Data.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			fetcher := ingest.NewCatalogFetcher(c.cfg.Catalog.URL, timeout)
			n, err := ingest.ImportCatalog(cmd.Context(), fetcher, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d cards\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "catalog download timeout")
	return cmd
}

func newIngestRulingsCmd(c *cli) *cobra.Command {
	var source, cardsDir string
	cmd := &cobra.Command{
		Use:   "rulings",
		Short: "Copy translated rulings into the database, replacing card IDs with names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := ingest.LoadCardNames(cardsDir)
			if err != nil {
				return err
			}
			store, err := persistence.NewSQLiteStore(c.cfg.Data.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := ingest.FixRulings(cmd.Context(), source, names, store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d Q&A and %d FAQ rulings\n", res.QA, res.FAQ)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "translations.db", "SQLite database holding the translated rulings")
	cmd.Flags().StringVar(&cardsDir, "cards-dir", "cards", "directory of <id>.json card files")
	return cmd
}

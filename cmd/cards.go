package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/ygo-judge/internal/persistence"
)

func newCardsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Inspect the card reference table",
	}
	cmd.AddCommand(newCardsSearchCmd(c))
	return cmd
}

func newCardsSearchCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find cards whose name contains the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 50 {
				return fmt.Errorf("limit must be between 1 and 50")
			}
			store, err := persistence.NewSQLiteStore(c.cfg.Data.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			found, err := store.SearchCards(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(found)
			}
			if len(found) == 0 {
				fmt.Fprintln(out, "no cards found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE")
			for _, card := range found {
				fmt.Fprintf(tw, "%s\t%s\n", card.Name, card.TypeLabel)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of cards to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cards as JSON")
	return cmd
}

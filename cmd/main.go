package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/ygo-judge/internal/config"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries what every subcommand needs once the root command has loaded
// the configuration.
type cli struct {
	cfg    *config.Config
	dbPath string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "ygo-judge",
		Short: "Answer Yu-Gi-Oh! rules questions with a tool-using language model",
		Long: `ygo-judge answers rules questions about specific cards. A language model
reasons in a bounded Thought/Action/Observation loop, consulting official
rulings, a mechanics breakdown of each card and the rulebook before it
commits to a ruling.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if c.dbPath != "" {
				opts = append(opts, config.WithDBPath(c.dbPath))
			}
			cfg, err := config.New(opts...)
			if err != nil {
				return err
			}
			log.InitLogger(log.ParseLevel(cfg.Log.Level), cfg.Log.Format)
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite reference database (overrides DB_PATH)")

	root.AddCommand(
		newServeCmd(c),
		newAskCmd(c),
		newCardsCmd(c),
		newIngestCmd(c),
	)
	return root
}

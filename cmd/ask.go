package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/ygo-judge/internal/agent"
	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/internal/metrics"
)

func newAskCmd(c *cli) *cobra.Command {
	var (
		cardNames []string
		plain     bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the judge one rules question from the terminal",
		Example: `  ygo-judge ask "Can Ash Blossom negate Shaddoll Fusion?" \
    --card "Ash Blossom & Joyous Spring" --card "Shaddoll Fusion"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := buildBackends(ctx, c.cfg, metrics.New())
			if err != nil {
				return err
			}
			defer b.Close()

			selected, err := lookupCards(ctx, b.store, cardNames)
			if err != nil {
				return err
			}
			inq := agent.Inquiry{Question: strings.Join(args, " "), Cards: selected}
			return printInquiry(ctx, cmd.OutOrStdout(), b.judge, inq, plain)
		},
	}
	cmd.Flags().StringArrayVarP(&cardNames, "card", "c", nil, "card involved in the question (repeatable)")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the ruling without markdown rendering")
	return cmd
}

type cardLookup interface {
	CardByName(ctx context.Context, name string) (cards.Card, bool, error)
}

func lookupCards(ctx context.Context, store cardLookup, names []string) ([]cards.Card, error) {
	selected := make([]cards.Card, 0, len(names))
	for _, name := range names {
		card, ok, err := store.CardByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unknown card %q, try `ygo-judge cards search`", name)
		}
		selected = append(selected, card)
	}
	return selected, nil
}

type asker interface {
	Ask(ctx context.Context, inq agent.Inquiry) (string, <-chan agent.Event)
}

func printInquiry(ctx context.Context, w io.Writer, judge asker, inq agent.Inquiry, plain bool) error {
	_, events := judge.Ask(ctx, inq)
	var answer *agent.Answer
	for ev := range events {
		if ev.Err != nil {
			return ev.Err
		}
		r := ev.Result
		if r.Thought != nil {
			fmt.Fprintf(w, "Thought: %s\n", r.Thought.Content)
		}
		if r.Action != nil {
			fmt.Fprintf(w, "Action: %s: %s\n", r.Action.Name, r.Action.Input)
		}
		if r.Observation != nil {
			fmt.Fprintf(w, "Observation: %s\n", truncate(r.Observation.Content, 300))
		}
		if r.Answer != nil {
			answer = r.Answer
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if answer == nil {
		return fmt.Errorf("the judge finished without a ruling")
	}

	out, err := renderAnswer(answer, plain)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func renderAnswer(answer *agent.Answer, plain bool) (string, error) {
	md := fmt.Sprintf("## Ruling\n\n**%s**\n\n%s\n", answer.Ruling, answer.Explanation)
	if plain {
		return md, nil
	}
	out, err := glamour.Render(md, "dark")
	if err != nil {
		return "", fmt.Errorf("render answer: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package main

import (
	"context"
	"fmt"

	"github.com/MimeLyc/ygo-judge/internal/agent"
	"github.com/MimeLyc/ygo-judge/internal/config"
	"github.com/MimeLyc/ygo-judge/internal/llm"
	"github.com/MimeLyc/ygo-judge/internal/persistence"
	"github.com/MimeLyc/ygo-judge/internal/rulebook"
	"github.com/MimeLyc/ygo-judge/internal/rulings"
	"github.com/MimeLyc/ygo-judge/internal/tools"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

// backends are shared by every inquiry of one process.
type backends struct {
	store    *persistence.SQLiteStore
	searcher *rulings.Searcher
	book     *rulebook.Index
	judge    *agent.Judge
}

func (b *backends) Close() {
	if b.searcher != nil {
		_ = b.searcher.Close()
	}
	_ = b.book.Close()
	if b.store != nil {
		_ = b.store.Close()
	}
}

func buildBackends(ctx context.Context, cfg *config.Config, recorder agent.Recorder) (_ *backends, err error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}

	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	b.store, err = persistence.NewSQLiteStore(cfg.Data.DBPath)
	if err != nil {
		return nil, err
	}

	gateway, err := llm.NewGateway(cfg.LLM.Gateway())
	if err != nil {
		return nil, fmt.Errorf("create model gateway: %w", err)
	}

	b.searcher = rulings.NewSearcher(b.store)
	if err := b.searcher.Refresh(ctx); err != nil {
		return nil, err
	}

	if cfg.Data.RulebookPath != "" {
		var opts []rulebook.Option
		if cfg.Data.RulebookSummarize {
			opts = append(opts, rulebook.WithCondenser(gateway, cfg.Loop().Sampling))
		}
		b.book, err = rulebook.Open(cfg.Data.RulebookPath, opts...)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("RULEBOOK_PATH is not set, rulebook lookups will find no context")
	}

	registry, err := tools.NewDefaultRegistry(b.searcher, b.book)
	if err != nil {
		return nil, err
	}

	prompts, err := agent.LoadPrompts(cfg.Agent.PromptsFile)
	if err != nil {
		return nil, err
	}

	b.judge, err = agent.NewJudge(gateway, registry,
		agent.WithJudgeConfig(cfg.Loop()),
		agent.WithJudgePrompts(prompts),
		agent.WithJudgeRecorder(recorder),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

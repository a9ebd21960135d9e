package agent

import (
	"context"
	"fmt"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"github.com/MimeLyc/ygo-judge/internal/llm"
)

// Judge holds the backends shared by every inquiry and starts a fresh Loop
// for each question.
type Judge struct {
	gateway  llm.Gateway
	executor ToolExecutor
	cfg      Config
	prompts  Prompts
	recorder Recorder
}

type JudgeOption func(*Judge)

func WithJudgeConfig(cfg Config) JudgeOption {
	return func(j *Judge) { j.cfg = cfg }
}

func WithJudgePrompts(p Prompts) JudgeOption {
	return func(j *Judge) { j.prompts = p }
}

func WithJudgeRecorder(r Recorder) JudgeOption {
	return func(j *Judge) {
		if r != nil {
			j.recorder = r
		}
	}
}

// NewJudge validates the configuration once so each inquiry can start
// without further checks.
func NewJudge(gateway llm.Gateway, executor ToolExecutor, opts ...JudgeOption) (*Judge, error) {
	if gateway == nil {
		return nil, fmt.Errorf("model gateway is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	j := &Judge{
		gateway:  gateway,
		executor: executor,
		cfg:      DefaultConfig(),
		prompts:  DefaultPrompts(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(j)
	}
	if err := j.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent configuration: %w", err)
	}
	if err := j.prompts.Validate(); err != nil {
		return nil, err
	}
	known := make(map[string]struct{})
	for _, name := range executor.List() {
		known[name] = struct{}{}
	}
	for _, name := range j.cfg.RequiredTools {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("required tool %q is not registered", name)
		}
	}
	return j, nil
}

// Ask starts an inquiry and returns its ID with the result stream.
func (j *Judge) Ask(ctx context.Context, inq Inquiry) (string, <-chan Event) {
	id := uuid.NewString()
	loop := NewLoop(j.gateway, j.executor,
		WithInquiryID(id),
		WithConfig(j.cfg),
		WithPrompts(j.prompts),
		WithRecorder(j.recorder),
	)
	return id, loop.Run(ctx, inq)
}

// detectLocale returns the ISO 639-1 code of the question's language, or ""
// when detection is not reliable.
func detectLocale(question string) string {
	info := whatlanggo.Detect(question)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

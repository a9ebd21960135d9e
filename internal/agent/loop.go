package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MimeLyc/ygo-judge/internal/llm"
	"github.com/MimeLyc/ygo-judge/internal/tools"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

const inconclusiveRuling = "Inconclusive - Further investigation may be needed."

// ToolExecutor runs named tools and always yields observation text.
// *tools.Registry satisfies it.
type ToolExecutor interface {
	Execute(ctx context.Context, name, input string, scope tools.Scope) tools.ToolResult
	List() []string
	Describe() string
}

// Config bounds every inquiry identically.
type Config struct {
	MaxTurns         int
	MaxActions       int
	MaxThinkingTurns int
	RequiredTools    []string
	Sampling         llm.Sampling
}

func DefaultConfig() Config {
	return Config{
		MaxTurns:         15,
		MaxActions:       10,
		MaxThinkingTurns: 3,
		RequiredTools:    tools.DefaultNames(),
		Sampling:         llm.DefaultSampling(),
	}
}

func (c Config) Validate() error {
	if c.MaxTurns < 1 {
		return fmt.Errorf("max turns must be greater than 0")
	}
	if c.MaxActions < 1 {
		return fmt.Errorf("max actions must be greater than 0")
	}
	if c.MaxThinkingTurns < 0 {
		return fmt.Errorf("max thinking turns must not be negative")
	}
	if len(c.RequiredTools) == 0 {
		return fmt.Errorf("at least one required tool is needed")
	}
	return nil
}

// Loop answers exactly one inquiry. It is not reusable: build a new Loop
// per inquiry so no state leaks between questions.
type Loop struct {
	id       string
	gateway  llm.Gateway
	executor ToolExecutor
	parser   *Parser
	prompts  Prompts
	cfg      Config
	recorder Recorder
	logger   zerolog.Logger

	required map[string]struct{}
	seen     map[ActionRecord]struct{}
	scope    tools.Scope
	state    LoopState
	started  bool
}

type LoopOption func(*Loop)

func WithConfig(cfg Config) LoopOption {
	return func(l *Loop) { l.cfg = cfg }
}

func WithPrompts(p Prompts) LoopOption {
	return func(l *Loop) { l.prompts = p }
}

func WithRecorder(r Recorder) LoopOption {
	return func(l *Loop) {
		if r != nil {
			l.recorder = r
		}
	}
}

func WithInquiryID(id string) LoopOption {
	return func(l *Loop) { l.id = id }
}

func NewLoop(gateway llm.Gateway, executor ToolExecutor, opts ...LoopOption) *Loop {
	l := &Loop{
		gateway:  gateway,
		executor: executor,
		prompts:  DefaultPrompts(),
		cfg:      DefaultConfig(),
		recorder: nopRecorder{},
		seen:     make(map[ActionRecord]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.parser = NewParser(executor.List()...)
	l.required = make(map[string]struct{}, len(l.cfg.RequiredTools))
	for _, name := range l.cfg.RequiredTools {
		l.required[name] = struct{}{}
	}
	l.logger = log.With().Str("inquiry_id", l.id).Logger()
	return l
}

// Run starts the inquiry and returns its stream. The stream ends after the
// Answer-bearing result or after a single error event. Cancelling ctx
// abandons the inquiry; the stream is then closed without a terminal element.
func (l *Loop) Run(ctx context.Context, inq Inquiry) <-chan Event {
	out := make(chan Event)
	if l.started {
		go func() {
			defer close(out)
			send(ctx, out, Event{Err: fmt.Errorf("loop already used")})
		}()
		return out
	}
	l.started = true

	go func() {
		defer close(out)
		l.run(ctx, inq, out)
	}()
	return out
}

// State returns a snapshot of the loop state. Only meaningful once the
// stream returned by Run has been drained.
func (l *Loop) State() LoopState {
	s := l.state
	s.Messages = append([]llm.Message(nil), l.state.Messages...)
	s.ActionLog = append([]ActionRecord(nil), l.state.ActionLog...)
	return s
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Loop) run(ctx context.Context, inq Inquiry, out chan<- Event) {
	l.scope = tools.Scope{Cards: inq.Cards, Question: inq.Question, Locale: detectLocale(inq.Question)}
	l.state = LoopState{Phase: PhaseActing}

	emit := func(r TurnResult) bool {
		if r.Empty() {
			return true
		}
		if !send(ctx, out, Event{Result: &r}) {
			l.finish(OutcomeAbandoned)
			return false
		}
		return true
	}
	fail := func(err error) {
		if ctx.Err() != nil {
			l.finish(OutcomeAbandoned)
			return
		}
		l.logger.Error().Err(err).Int("turn", l.state.TurnCount).Str("phase", l.state.Phase.String()).Msg("Inquiry failed")
		l.finish(OutcomeFailed)
		send(ctx, out, Event{Err: err})
	}

	system, err := l.prompts.renderSystem(systemData{
		Tools:      l.executor.Describe(),
		Required:   l.cfg.RequiredTools,
		MaxActions: l.cfg.MaxActions,
	})
	if err != nil {
		fail(err)
		return
	}
	l.state.Messages = append(l.state.Messages,
		llm.SystemMessage(system),
		llm.UserMessage(formatInquiry(inq)),
	)
	l.logger.Info().Int("cards", len(inq.Cards)).Str("locale", l.scope.Locale).Msg("Inquiry started")

	for l.state.Phase == PhaseActing {
		if ctx.Err() != nil {
			l.finish(OutcomeAbandoned)
			return
		}
		l.state.TurnCount++
		if l.state.TurnCount > l.cfg.MaxTurns {
			l.logger.Info().Int("max_turns", l.cfg.MaxTurns).Msg("Turn budget exhausted")
			if emit(budgetAnswer("turns", l.cfg.MaxTurns, "turn")) {
				l.finish(OutcomeTurnBudget)
			}
			return
		}

		text, err := l.complete(ctx)
		if err != nil {
			fail(fmt.Errorf("turn %d: %w", l.state.TurnCount, err))
			return
		}
		result := l.parser.Parse(text)
		premature := result.Answer != nil
		result.Answer = nil
		if !emit(result) {
			return
		}

		if result.Action != nil {
			record := ActionRecord{Tool: result.Action.Name, Input: result.Action.Input}
			if _, dup := l.seen[record]; dup {
				l.logger.Debug().Str("tool", record.Tool).Str("input", record.Input).Msg("Skipping duplicate action")
				continue
			}

			l.state.ActionCount++
			if l.state.ActionCount > l.cfg.MaxActions {
				l.logger.Info().Int("max_actions", l.cfg.MaxActions).Msg("Action budget exhausted")
				if emit(budgetAnswer("actions", l.cfg.MaxActions, "action")) {
					l.finish(OutcomeActionBudget)
				}
				return
			}

			observation := l.act(ctx, record)
			if ctx.Err() != nil {
				l.finish(OutcomeAbandoned)
				return
			}
			l.seen[record] = struct{}{}
			l.state.ActionLog = append(l.state.ActionLog, record)
			l.state.Messages = append(l.state.Messages, llm.SystemMessage("Observation: "+observation))

			observed := result
			observed.Observation = &Observation{Content: observation}
			if !emit(observed) {
				return
			}
		}

		if l.covered() {
			l.state.Phase = PhaseReflecting
			l.logger.Info().Int("actions", l.state.ActionCount).Msg("All required tools used, reflecting")
			break
		}

		if premature {
			if err := l.remindCoverage(); err != nil {
				fail(err)
				return
			}
		}
	}

	l.reflect(ctx, emit, fail)
}

func (l *Loop) reflect(ctx context.Context, emit func(TurnResult) bool, fail func(error)) {
	for l.state.ThinkingTurn < l.cfg.MaxThinkingTurns {
		l.state.ThinkingTurn++
		l.state.Messages = append(l.state.Messages, llm.SystemMessage(l.prompts.ReflectionPrompt(l.state.ThinkingTurn)))

		text, err := l.complete(ctx)
		if err != nil {
			fail(fmt.Errorf("reflection turn %d: %w", l.state.ThinkingTurn, err))
			return
		}
		result := l.parser.Parse(text)
		result.Action = nil
		result.Answer = nil
		if !emit(result) {
			return
		}
		if result.Thought != nil {
			l.state.Messages = append(l.state.Messages, llm.AssistantMessage(result.Thought.Content))
		}
	}

	l.state.Messages = append(l.state.Messages, llm.SystemMessage(l.prompts.FinalInstruction))
	text, err := l.complete(ctx)
	if err != nil {
		fail(fmt.Errorf("final answer: %w", err))
		return
	}
	result := l.parser.Parse(text)
	result.Action = nil

	outcome := OutcomeAnswered
	if result.Answer == nil {
		l.logger.Info().Msg("Unable to reach a conclusive answer")
		result = inconclusiveAnswer()
		outcome = OutcomeInconclusive
	}
	l.state.Phase = PhaseDone
	if emit(result) {
		l.finish(outcome)
	}
}

func (l *Loop) complete(ctx context.Context) (string, error) {
	start := time.Now()
	text, err := l.gateway.Complete(ctx, l.state.Messages, l.cfg.Sampling)
	l.recorder.ModelCall(l.state.Phase, time.Since(start), err)
	l.logger.Debug().
		Int("turn", l.state.TurnCount).
		Int("thinking_turn", l.state.ThinkingTurn).
		Str("phase", l.state.Phase.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Model call")
	return text, err
}

func (l *Loop) act(ctx context.Context, record ActionRecord) string {
	res := l.executor.Execute(ctx, record.Tool, record.Input, l.scope)
	l.recorder.ToolCall(record.Tool, res.IsError)
	l.logger.Info().
		Int("action", l.state.ActionCount).
		Str("tool", record.Tool).
		Str("input", record.Input).
		Bool("is_error", res.IsError).
		Msg("Tool executed")
	return res.Content
}

// covered reports whether the distinct tools used equal the required set.
func (l *Loop) covered() bool {
	used := make(map[string]struct{}, len(l.state.ActionLog))
	for _, r := range l.state.ActionLog {
		used[r.Tool] = struct{}{}
	}
	if len(used) != len(l.required) {
		return false
	}
	for name := range used {
		if _, ok := l.required[name]; !ok {
			return false
		}
	}
	return true
}

func (l *Loop) missingTools() []string {
	used := make(map[string]struct{}, len(l.state.ActionLog))
	for _, r := range l.state.ActionLog {
		used[r.Tool] = struct{}{}
	}
	var missing []string
	for name := range l.required {
		if _, ok := used[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (l *Loop) remindCoverage() error {
	missing := l.missingTools()
	if len(missing) == 0 {
		return nil
	}
	reminder, err := l.prompts.renderCoverageReminder(missing)
	if err != nil {
		return err
	}
	l.logger.Debug().Strs("missing", missing).Msg("Answer withheld until all tools are used")
	l.state.Messages = append(l.state.Messages, llm.SystemMessage(reminder))
	return nil
}

func (l *Loop) finish(outcome Outcome) {
	l.state.Phase = PhaseDone
	l.recorder.InquiryFinished(outcome, l.state.TurnCount)
	l.logger.Info().
		Str("outcome", string(outcome)).
		Int("turns", l.state.TurnCount).
		Int("actions", l.state.ActionCount).
		Int("thinking_turns", l.state.ThinkingTurn).
		Msg("Inquiry finished")
}

func formatInquiry(inq Inquiry) string {
	quoted := make([]string, 0, len(inq.Cards))
	for _, c := range inq.Cards {
		quoted = append(quoted, fmt.Sprintf("%q", c.Name))
	}
	return fmt.Sprintf("Question: %s\nCards: [%s]", inq.Question, strings.Join(quoted, ", "))
}

func budgetAnswer(what string, limit int, constraint string) TurnResult {
	return TurnResult{
		Thought: &Thought{Content: fmt.Sprintf("Maximum %s (%d) reached without a conclusive answer.", what, limit)},
		Answer: &Answer{
			Explanation: fmt.Sprintf("After analyzing the available information, a definitive answer couldn't be reached within the given %s constraints.", constraint),
			Ruling:      inconclusiveRuling,
		},
	}
}

func inconclusiveAnswer() TurnResult {
	return TurnResult{
		Thought: &Thought{Content: "Unable to reach a conclusive answer."},
		Answer: &Answer{
			Explanation: "After analyzing the available information, a definitive answer couldn't be reached.",
			Ruling:      inconclusiveRuling,
		},
	}
}

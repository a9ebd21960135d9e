package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// perMessageOverhead approximates the role/framing tokens the chat format adds.
const perMessageOverhead = 4

// Gateway is the single capability the judge needs from a model provider.
type Gateway interface {
	Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error)
}

// Budget wraps a Gateway and keeps each prompt under MaxTokens by dropping
// the oldest observation messages. The first system message and the first
// user message are never dropped.
type Budget struct {
	next      Gateway
	codec     tokenizer.Codec
	maxTokens int
}

func NewBudget(next Gateway, maxTokens int) (*Budget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "load tokenizer")
	}
	return &Budget{next: next, codec: codec, maxTokens: maxTokens}, nil
}

func (b *Budget) Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error) {
	return b.next.Complete(ctx, b.Fit(messages), sampling)
}

// Count returns the approximate prompt size of messages in tokens.
func (b *Budget) Count(messages []Message) int {
	total := 0
	for _, m := range messages {
		ids, _, err := b.codec.Encode(m.Content)
		if err != nil {
			// fall back to a rough character estimate
			total += len(m.Content)/4 + perMessageOverhead
			continue
		}
		total += len(ids) + perMessageOverhead
	}
	return total
}

// Fit returns messages unchanged when they fit, otherwise a copy with the
// oldest observations removed until it fits or nothing droppable remains.
func (b *Budget) Fit(messages []Message) []Message {
	if b.maxTokens <= 0 || b.Count(messages) <= b.maxTokens {
		return messages
	}

	out := make([]Message, len(messages))
	copy(out, messages)
	for b.Count(out) > b.maxTokens {
		idx := oldestObservation(out)
		if idx < 0 {
			break
		}
		out = append(out[:idx], out[idx+1:]...)
	}
	return out
}

func oldestObservation(messages []Message) int {
	for i, m := range messages {
		if i == 0 {
			continue
		}
		if m.Role == RoleSystem && strings.HasPrefix(m.Content, "Observation:") {
			return i
		}
	}
	return -1
}

// NewGateway builds the provider selected by config, wrapped in a Budget when
// MaxPromptTokens is set.
func NewGateway(config *Config) (Gateway, error) {
	var (
		gw  Gateway
		err error
	)
	switch strings.ToLower(config.Provider) {
	case ProviderCompatible:
		gw, err = NewClient(config)
	default:
		gw, err = NewOpenAIGateway(config)
	}
	if err != nil {
		return nil, err
	}
	if config.MaxPromptTokens > 0 {
		return NewBudget(gw, config.MaxPromptTokens)
	}
	return gw, nil
}

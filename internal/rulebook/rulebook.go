// Package rulebook indexes the plain-text rulebook and returns the passages
// most relevant to a query, optionally condensed by the model.
package rulebook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/MimeLyc/ygo-judge/internal/llm"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

// NoContext is returned when there is nothing to search or nothing matched.
const NoContext = "no relevant context found"

const (
	DefaultTopK = 3

	// passages shorter than this are merged into the next one
	minPassageRunes = 200
)

const condenseSystemPrompt = "You are a Yu-Gi-Oh! rules expert. Provide relevant information to the query from the given passages. Do not answer the question, only provide context."

type Passage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Index is an in-memory full-text index over rulebook passages.
// A nil *Index is valid and always reports NoContext.
type Index struct {
	index    bleve.Index
	passages []Passage
	topK     int
	gateway  llm.Gateway
	sampling llm.Sampling
}

type Option func(*Index)

func WithTopK(k int) Option {
	return func(i *Index) {
		if k > 0 {
			i.topK = k
		}
	}
}

// WithCondenser routes the retrieved passages through the model, which is
// asked to extract context without answering.
func WithCondenser(gateway llm.Gateway, sampling llm.Sampling) Option {
	return func(i *Index) {
		i.gateway = gateway
		i.sampling = sampling
	}
}

// Open reads and indexes the rulebook at path.
func Open(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rulebook: %w", err)
	}
	defer f.Close()
	return New(f, opts...)
}

// New splits r into passages on blank lines and indexes them.
func New(r io.Reader, opts ...Option) (*Index, error) {
	passages, err := split(r)
	if err != nil {
		return nil, fmt.Errorf("read rulebook: %w", err)
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create rulebook index: %w", err)
	}
	batch := index.NewBatch()
	for _, p := range passages {
		if err := batch.Index(strconv.Itoa(p.Number), p); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index passage %d: %w", p.Number, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("write rulebook index: %w", err)
	}

	idx := &Index{index: index, passages: passages, topK: DefaultTopK, sampling: llm.DefaultSampling()}
	for _, opt := range opts {
		opt(idx)
	}
	log.Info("Indexed %d rulebook passages", len(passages))
	return idx, nil
}

func split(r io.Reader) ([]Passage, error) {
	var (
		passages []Passage
		current  strings.Builder
	)
	flush := func(force bool) {
		text := strings.TrimSpace(current.String())
		if text == "" {
			current.Reset()
			return
		}
		if !force && len([]rune(text)) < minPassageRunes {
			current.WriteString("\n")
			return
		}
		passages = append(passages, Passage{Number: len(passages) + 1, Text: text})
		current.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			flush(false)
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush(true)
	return passages, nil
}

func (i *Index) Close() error {
	if i == nil || i.index == nil {
		return nil
	}
	return i.index.Close()
}

// Len returns the number of indexed passages.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.passages)
}

// Passages returns the topK passages matching query, best first.
func (i *Index) Passages(ctx context.Context, query string) ([]Passage, error) {
	if i == nil || i.index == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	res, err := i.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, i.topK, 0, false))
	if err != nil {
		return nil, fmt.Errorf("search rulebook: %w", err)
	}

	out := make([]Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		n, err := strconv.Atoi(hit.ID)
		if err != nil || n < 1 || n > len(i.passages) {
			continue
		}
		out = append(out, i.passages[n-1])
	}
	return out, nil
}

// Search never fails. It returns the matching passages, condensed when a
// condenser is set, or NoContext.
func (i *Index) Search(ctx context.Context, query string) string {
	passages, err := i.Passages(ctx, query)
	if err != nil {
		log.Warn("Rulebook search failed: %v", err)
		return NoContext
	}
	if len(passages) == 0 {
		return NoContext
	}

	found := formatPassages(passages)
	if i.gateway == nil {
		return strings.TrimSpace(found)
	}

	condensed, err := i.gateway.Complete(ctx, []llm.Message{
		llm.SystemMessage(condenseSystemPrompt),
		llm.UserMessage(condensePrompt(found, query)),
	}, i.sampling)
	if err != nil || strings.TrimSpace(condensed) == "" {
		log.Warn("Rulebook condensation failed, returning raw passages: %v", err)
		return strings.TrimSpace(found)
	}
	return condensed
}

func formatPassages(passages []Passage) string {
	var sb strings.Builder
	sb.WriteString("Relevant information from the Yu-Gi-Oh! rulebook:\n\n")
	for _, p := range passages {
		fmt.Fprintf(&sb, "Passage %d:\n%s\n\n", p.Number, p.Text)
	}
	return sb.String()
}

func condensePrompt(passages, query string) string {
	return fmt.Sprintf(`Based on the following information from the Yu-Gi-Oh! rulebook, please provide context:

Context:
%s

User Question: %s

Please provide all relevant information from the provided sections of the rulebook given this question.`, passages, query)
}

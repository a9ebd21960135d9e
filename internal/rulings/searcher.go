// Package rulings gathers the official rulings relevant to a set of cards and
// ranks them against a free-text query.
package rulings

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

const (
	DefaultTopK     = 5
	DefaultSimilarK = 5
)

// Store is the subset of the reference database the searcher reads.
type Store interface {
	CardByName(ctx context.Context, name string) (cards.Card, bool, error)
	AllCards(ctx context.Context) ([]cards.Card, error)
	QARulings(ctx context.Context, cardName string) ([]cards.Ruling, error)
	FAQRulings(ctx context.Context, cardName string) ([]cards.Ruling, error)
}

type Option func(*Searcher)

func WithTopK(k int) Option {
	return func(s *Searcher) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithSimilarK(k int) Option {
	return func(s *Searcher) {
		if k > 0 {
			s.similarK = k
		}
	}
}

// Searcher collects rulings for the in-scope cards and for the cards whose
// text reads most like theirs. Safe for concurrent use.
type Searcher struct {
	store    Store
	topK     int
	similarK int

	mu      sync.RWMutex
	similar bleve.Index
}

func NewSearcher(store Store, opts ...Option) *Searcher {
	s := &Searcher{store: store, topK: DefaultTopK, similarK: DefaultSimilarK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type descriptionDoc struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// Refresh rebuilds the card-description index used to find similar cards.
func (s *Searcher) Refresh(ctx context.Context) error {
	all, err := s.store.AllCards(ctx)
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("create description index: %w", err)
	}
	batch := index.NewBatch()
	for _, c := range all {
		if err := batch.Index(c.Name, descriptionDoc{Name: c.Name, Desc: c.Description}); err != nil {
			_ = index.Close()
			return fmt.Errorf("index %q: %w", c.Name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return fmt.Errorf("write description index: %w", err)
	}

	s.mu.Lock()
	old := s.similar
	s.similar = index
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	log.Info("Indexed %d card descriptions for similar-card lookup", len(all))
	return nil
}

func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.similar == nil {
		return nil
	}
	err := s.similar.Close()
	s.similar = nil
	return err
}

// Search returns at most topK rulings for the cards in scope, best match for
// query first. Rulings in locale are preferred when any exist.
func (s *Searcher) Search(ctx context.Context, query string, scope []string, locale string) ([]cards.Ruling, error) {
	exact, err := s.exactRulings(ctx, scope)
	if err != nil {
		return nil, err
	}
	related, err := s.similarRulings(ctx, scope)
	if err != nil {
		return nil, err
	}

	candidates := preferLocale(dedupe(append(exact, related...)), locale)
	if len(candidates) == 0 {
		return nil, nil
	}
	return rank(ctx, query, candidates, s.topK)
}

// exactRulings fetches Q&A and FAQ rulings for every name concurrently,
// keeping the result order stable: all Q&A first, then all FAQ.
func (s *Searcher) exactRulings(ctx context.Context, names []string) ([]cards.Ruling, error) {
	qa := make([][]cards.Ruling, len(names))
	faq := make([][]cards.Ruling, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			found, err := s.store.QARulings(gctx, name)
			if err != nil {
				return fmt.Errorf("qa rulings for %q: %w", name, err)
			}
			qa[i] = found
			return nil
		})
		g.Go(func() error {
			found, err := s.store.FAQRulings(gctx, name)
			if err != nil {
				return fmt.Errorf("faq rulings for %q: %w", name, err)
			}
			faq[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []cards.Ruling
	for _, r := range qa {
		out = append(out, r...)
	}
	for _, r := range faq {
		out = append(out, r...)
	}
	return out, nil
}

func (s *Searcher) similarRulings(ctx context.Context, names []string) ([]cards.Ruling, error) {
	var descriptions []cards.Card
	for _, name := range names {
		card, ok, err := s.store.CardByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", name, err)
		}
		if ok && card.Description != "" {
			descriptions = append(descriptions, card)
		}
	}
	if len(descriptions) == 0 {
		return nil, nil
	}

	similar, err := s.similarCards(ctx, descriptions)
	if err != nil || len(similar) == 0 {
		return nil, err
	}
	log.Debug("Similar cards for %v: %v", names, similar)
	return s.exactRulings(ctx, similar)
}

// similarCards holds the read lock for every query so Refresh cannot close
// the index underneath a search.
func (s *Searcher) similarCards(ctx context.Context, list []cards.Card) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.similar == nil {
		return nil, nil
	}

	var similar []string
	seen := make(map[string]struct{})
	for _, card := range list {
		q := bleve.NewMatchQuery(card.Description)
		q.SetField("desc")
		res, err := s.similar.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, s.similarK, 0, false))
		if err != nil {
			return nil, fmt.Errorf("similar cards for %q: %w", card.Name, err)
		}
		for _, hit := range res.Hits {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			similar = append(similar, hit.ID)
		}
	}
	return similar, nil
}

func dedupe(list []cards.Ruling) []cards.Ruling {
	seen := make(map[string]struct{}, len(list))
	out := make([]cards.Ruling, 0, len(list))
	for _, r := range list {
		key := r.Source + "\x00" + r.Locale + "\x00" + r.Content
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func preferLocale(list []cards.Ruling, locale string) []cards.Ruling {
	if locale == "" {
		return list
	}
	var out []cards.Ruling
	for _, r := range list {
		if r.Locale == locale {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return list
	}
	return out
}

type rulingDoc struct {
	Content string `json:"content"`
}

// rank orders candidates by relevance to query; candidates the query does not
// match keep their original order behind the matches.
func rank(ctx context.Context, query string, candidates []cards.Ruling, k int) ([]cards.Ruling, error) {
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create ranking index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, r := range candidates {
		if err := batch.Index(strconv.Itoa(i), rulingDoc{Content: r.Content}); err != nil {
			return nil, fmt.Errorf("index ruling: %w", err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("write ranking index: %w", err)
	}

	out := make([]cards.Ruling, 0, k)
	used := make([]bool, len(candidates))
	if query != "" {
		q := bleve.NewMatchQuery(query)
		q.SetField("content")
		res, err := index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, k, 0, false))
		if err != nil {
			return nil, fmt.Errorf("rank rulings: %w", err)
		}
		for _, hit := range res.Hits {
			i, err := strconv.Atoi(hit.ID)
			if err != nil || used[i] {
				continue
			}
			used[i] = true
			out = append(out, candidates[i])
		}
	}
	for i := 0; i < len(candidates) && len(out) < k; i++ {
		if !used[i] {
			out = append(out, candidates[i])
		}
	}
	return out, nil
}

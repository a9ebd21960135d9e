package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/MimeLyc/ygo-judge/internal/persistence"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

const unknownCard = "Unknown Card"

var cardIDPattern = regexp.MustCompile(`\b(\d+)\b`)

// RulingWriter stores normalized rulings.
type RulingWriter interface {
	UpsertQA(ctx context.Context, e persistence.QAEntry) error
	UpsertFAQ(ctx context.Context, e persistence.FAQEntry) error
}

// LoadCardNames reads every <id>.json file in dir and maps the id to the
// file's "name" field. Unreadable files are skipped.
func LoadCardNames(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read card directory")
	}

	names := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn("Skipping card file %s: %v", entry.Name(), err)
			continue
		}
		var card struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &card); err != nil || card.Name == "" {
			log.Warn("Skipping card file %s: no name", entry.Name())
			continue
		}
		names[id] = card.Name
	}
	return names, nil
}

// ReplaceCardIDs rewrites every standalone number that is a known card id
// into that card's name. Other numbers are left alone.
func ReplaceCardIDs(text string, names map[string]string) string {
	return cardIDPattern.ReplaceAllStringFunc(text, func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return id
	})
}

// RulingsResult counts the rows written by FixRulings.
type RulingsResult struct {
	QA  int `json:"qa"`
	FAQ int `json:"faq"`
}

// FixRulings copies qa_tl and faq_tl_entries from the translations database
// at sourcePath into store, replacing card ids with names.
func FixRulings(ctx context.Context, sourcePath string, names map[string]string, store RulingWriter) (RulingsResult, error) {
	var res RulingsResult

	src, err := sql.Open("sqlite", sourcePath)
	if err != nil {
		return res, errors.Wrap(err, "open translations db")
	}
	defer src.Close()

	if res.QA, err = copyQA(ctx, src, names, store); err != nil {
		return res, err
	}
	if res.FAQ, err = copyFAQ(ctx, src, names, store); err != nil {
		return res, err
	}
	log.Info("Normalized %d Q&A and %d FAQ rulings from %s", res.QA, res.FAQ, sourcePath)
	return res, nil
}

func copyQA(ctx context.Context, src *sql.DB, names map[string]string, store RulingWriter) (int, error) {
	rows, err := src.QueryContext(ctx, `SELECT qaId, locale, title, question, answer, date, sourceHash, translator, lastEditor FROM qa_tl`)
	if err != nil {
		return 0, errors.Wrap(err, "query qa_tl")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			e    persistence.QAEntry
			hash sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Locale, &e.Title, &e.Question, &e.Answer, &e.Date, &hash, &e.Translator, &e.LastEditor); err != nil {
			return n, errors.Wrap(err, "scan qa_tl")
		}
		if hash.Valid {
			e.SourceHash = &hash.Int64
		}
		e.Title = ReplaceCardIDs(e.Title, names)
		e.Question = ReplaceCardIDs(e.Question, names)
		e.Answer = ReplaceCardIDs(e.Answer, names)
		if err := store.UpsertQA(ctx, e); err != nil {
			return n, fmt.Errorf("store qa %d/%s: %w", e.ID, e.Locale, err)
		}
		n++
	}
	return n, rows.Err()
}

func copyFAQ(ctx context.Context, src *sql.DB, names map[string]string, store RulingWriter) (int, error) {
	rows, err := src.QueryContext(ctx, `SELECT cardId, locale, effect, sourceHash, content FROM faq_tl_entries`)
	if err != nil {
		return 0, errors.Wrap(err, "query faq_tl_entries")
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			e    persistence.FAQEntry
			hash sql.NullInt64
		)
		if err := rows.Scan(&e.CardID, &e.Locale, &e.Effect, &hash, &e.Content); err != nil {
			return n, errors.Wrap(err, "scan faq_tl_entries")
		}
		if hash.Valid {
			e.SourceHash = &hash.Int64
		}
		e.Name = unknownCard
		if name, ok := names[fmt.Sprint(e.CardID)]; ok {
			e.Name = name
		}
		e.Content = ReplaceCardIDs(e.Content, names)
		if err := store.UpsertFAQ(ctx, e); err != nil {
			return n, fmt.Errorf("store faq %d/%s/%d: %w", e.CardID, e.Locale, e.Effect, err)
		}
		n++
	}
	return n, rows.Err()
}

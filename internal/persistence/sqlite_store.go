package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MimeLyc/ygo-judge/internal/cards"
	_ "modernc.org/sqlite"
)

// DefaultSearchLimit caps card name lookups.
const DefaultSearchLimit = 10

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore holds the read-mostly reference data: the card catalog and the
// two ruling tables. It is safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

const cardColumns = `name, humanReadableCardType, "desc", race, atk, def, attribute, card_images, level`

// SearchCards returns cards whose name contains query, case-insensitively.
func (s *SQLiteStore) SearchCards(ctx context.Context, query string, limit int) ([]cards.Card, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+cardColumns+`
		 FROM cards
		 WHERE name LIKE ? ESCAPE '\'
		 ORDER BY name ASC
		 LIMIT ?`,
		"%"+escapeLike(strings.TrimSpace(query))+"%",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCards(rows)
}

// CardByName looks a card up by its exact catalog name.
func (s *SQLiteStore) CardByName(ctx context.Context, name string) (cards.Card, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE name = ?`, name)
	if err != nil {
		return cards.Card{}, false, err
	}
	defer rows.Close()
	list, err := scanCards(rows)
	if err != nil {
		return cards.Card{}, false, err
	}
	if len(list) == 0 {
		return cards.Card{}, false, nil
	}
	return list[0], true, nil
}

// AllCards returns the whole catalog ordered by name.
func (s *SQLiteStore) AllCards(ctx context.Context) ([]cards.Card, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCards(rows)
}

func scanCards(rows *sql.Rows) ([]cards.Card, error) {
	ret := make([]cards.Card, 0)
	for rows.Next() {
		var (
			item            cards.Card
			atk, def, level sql.NullInt64
			imagesJSON      string
		)
		if err := rows.Scan(
			&item.Name,
			&item.TypeLabel,
			&item.Description,
			&item.Race,
			&atk,
			&def,
			&item.Attribute,
			&imagesJSON,
			&level,
		); err != nil {
			return nil, err
		}
		item.ATK = nullableInt(atk)
		item.DEF = nullableInt(def)
		item.Level = nullableInt(level)
		if imagesJSON != "" {
			var img cards.Image
			if err := json.Unmarshal([]byte(imagesJSON), &img); err != nil {
				return nil, fmt.Errorf("decode card_images for %q: %w", item.Name, err)
			}
			item.Image = &img
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// ReplaceCards swaps the catalog for list in a single transaction.
func (s *SQLiteStore) ReplaceCards(ctx context.Context, list []cards.Card) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range list {
		imagesJSON := ""
		if c.Image != nil {
			raw, mErr := json.Marshal(c.Image)
			if mErr != nil {
				err = mErr
				return err
			}
			imagesJSON = string(raw)
		}
		if _, err = stmt.ExecContext(ctx,
			c.Name,
			c.TypeLabel,
			c.Description,
			c.Race,
			intOrNull(c.ATK),
			intOrNull(c.DEF),
			c.Attribute,
			imagesJSON,
			intOrNull(c.Level),
		); err != nil {
			return fmt.Errorf("insert card %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// QARulings returns Q&A rulings whose question mentions cardName.
func (s *SQLiteStore) QARulings(ctx context.Context, cardName string) ([]cards.Ruling, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT locale, question, answer
		 FROM qa_tl_fixed
		 WHERE question LIKE ? ESCAPE '\'
		 ORDER BY qaId ASC, locale ASC`,
		"%"+escapeLike(cardName)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]cards.Ruling, 0)
	for rows.Next() {
		var locale, question, answer string
		if err := rows.Scan(&locale, &question, &answer); err != nil {
			return nil, err
		}
		ret = append(ret, cards.Ruling{
			Source:   cards.SourceQA,
			CardName: cardName,
			Content:  strings.TrimSpace(question + " " + answer),
			Locale:   locale,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// FAQRulings returns FAQ rulings attached to cardName.
func (s *SQLiteStore) FAQRulings(ctx context.Context, cardName string) ([]cards.Ruling, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT locale, content
		 FROM faq_tl_entries_fixed
		 WHERE name = ?
		 ORDER BY effect ASC, locale ASC`,
		cardName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]cards.Ruling, 0)
	for rows.Next() {
		var locale, content string
		if err := rows.Scan(&locale, &content); err != nil {
			return nil, err
		}
		ret = append(ret, cards.Ruling{
			Source:   cards.SourceFAQ,
			CardName: cardName,
			Content:  strings.TrimSpace(content),
			Locale:   locale,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertQA(ctx context.Context, e QAEntry) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO qa_tl_fixed (
			qaId, locale, title, question, answer, date, sourceHash, translator, lastEditor
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(qaId, locale) DO UPDATE SET
			title=excluded.title,
			question=excluded.question,
			answer=excluded.answer,
			date=excluded.date,
			sourceHash=excluded.sourceHash,
			translator=excluded.translator,
			lastEditor=excluded.lastEditor`,
		e.ID,
		e.Locale,
		e.Title,
		e.Question,
		e.Answer,
		e.Date,
		int64OrNull(e.SourceHash),
		e.Translator,
		e.LastEditor,
	)
	return err
}

func (s *SQLiteStore) UpsertFAQ(ctx context.Context, e FAQEntry) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO faq_tl_entries_fixed (
			cardId, locale, effect, sourceHash, content, name
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cardId, locale, effect) DO UPDATE SET
			sourceHash=excluded.sourceHash,
			content=excluded.content,
			name=excluded.name`,
		e.CardID,
		e.Locale,
		e.Effect,
		int64OrNull(e.SourceHash),
		e.Content,
		e.Name,
	)
	return err
}

// Stats counts the rows of every reference table.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM cards),
		(SELECT COUNT(*) FROM qa_tl_fixed),
		(SELECT COUNT(*) FROM faq_tl_entries_fixed)`).Scan(&st.Cards, &st.QA, &st.FAQ); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func intOrNull(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64OrNull(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

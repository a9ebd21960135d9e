package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/MimeLyc/ygo-judge/internal/cards"
	"github.com/MimeLyc/ygo-judge/pkg/log"
)

const DefaultCatalogURL = "https://db.ygoprodeck.com/api/v7/cardinfo.php"

// CardWriter replaces the card catalog.
type CardWriter interface {
	ReplaceCards(ctx context.Context, list []cards.Card) error
}

type catalogResponse struct {
	Data []catalogCard `json:"data"`
}

type catalogCard struct {
	Name      string        `json:"name"`
	TypeLabel string        `json:"humanReadableCardType"`
	Desc      string        `json:"desc"`
	Race      string        `json:"race"`
	Attribute string        `json:"attribute"`
	ATK       *int          `json:"atk"`
	DEF       *int          `json:"def"`
	Level     *int          `json:"level"`
	Rank      *int          `json:"rank"`
	LinkVal   *int          `json:"linkval"`
	Images    []cards.Image `json:"card_images"`
}

// card folds level, rank and link rating into one field and keeps only the
// first artwork.
func (c catalogCard) card() cards.Card {
	out := cards.Card{
		Name:        c.Name,
		TypeLabel:   c.TypeLabel,
		Description: c.Desc,
		Race:        c.Race,
		Attribute:   c.Attribute,
		ATK:         c.ATK,
		DEF:         c.DEF,
	}
	for _, v := range []*int{c.Level, c.Rank, c.LinkVal} {
		if v != nil && *v != 0 {
			out.Level = cards.IntPtr(*v)
			break
		}
	}
	if len(c.Images) > 0 {
		img := c.Images[0]
		out.Image = &img
	}
	return out
}

// CatalogFetcher downloads the public card catalog.
type CatalogFetcher struct {
	url    string
	client *http.Client
}

func NewCatalogFetcher(url string, timeout time.Duration) *CatalogFetcher {
	if strings.TrimSpace(url) == "" {
		url = DefaultCatalogURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CatalogFetcher{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *CatalogFetcher) Fetch(ctx context.Context) ([]cards.Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch catalog")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to retrieve catalog: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	list := make([]cards.Card, 0, len(payload.Data))
	seen := make(map[string]struct{}, len(payload.Data))
	for _, c := range payload.Data {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		// name is the table key; the catalog lists a few alternate printings twice
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		list = append(list, c.card())
	}
	return list, nil
}

// ImportCatalog fetches the catalog and replaces the stored cards.
func ImportCatalog(ctx context.Context, fetcher *CatalogFetcher, store CardWriter) (int, error) {
	start := time.Now()
	list, err := fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, fmt.Errorf("catalog is empty, keeping existing cards")
	}
	if err := store.ReplaceCards(ctx, list); err != nil {
		return 0, errors.Wrap(err, "store catalog")
	}
	log.Info("Imported %d cards in %s", len(list), time.Since(start).Round(time.Millisecond))
	return len(list), nil
}

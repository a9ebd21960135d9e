package cards

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Card is one entry of the reference card table. The JSON names match the
// catalog the front end already consumes.
type Card struct {
	Name        string `json:"name"`
	TypeLabel   string `json:"humanReadableCardType"`
	Description string `json:"desc"`
	Race        string `json:"race,omitempty"`
	Attribute   string `json:"attribute,omitempty"`
	ATK         *int   `json:"atk,omitempty"`
	DEF         *int   `json:"def,omitempty"`
	Level       *int   `json:"level,omitempty"`
	Image       *Image `json:"card_images,omitempty"`
}

// Image is the first artwork entry of a catalog card.
type Image struct {
	ID              int64  `json:"id,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	ImageURLSmall   string `json:"image_url_small,omitempty"`
	ImageURLCropped string `json:"image_url_cropped,omitempty"`
}

// Ruling is a single official ruling text attached to a card.
//
// Source: "qa" for Q&A entries, "faq" for FAQ entries
// Locale: ISO 639-1 code of Content, empty when unknown
type Ruling struct {
	Source   string `json:"source"`
	CardName string `json:"card_name"`
	Content  string `json:"content"`
	Locale   string `json:"locale,omitempty"`
}

const (
	SourceQA  = "qa"
	SourceFAQ = "faq"
)

// NormalizeName folds width variants, case and surrounding whitespace so
// names typed by users compare equal to catalog names.
func NormalizeName(name string) string {
	name = norm.NFKC.String(strings.TrimSpace(name))
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}

// Names returns the card names in order.
func Names(list []Card) []string {
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names
}

// Find returns the card named name. An exact match wins; otherwise names
// are compared after NormalizeName.
func Find(list []Card, name string) (Card, bool) {
	for _, c := range list {
		if c.Name == name {
			return c, true
		}
	}
	key := NormalizeName(name)
	if key == "" {
		return Card{}, false
	}
	for _, c := range list {
		if NormalizeName(c.Name) == key {
			return c, true
		}
	}
	return Card{}, false
}

// IntPtr is a convenience for optional battle stats.
func IntPtr(v int) *int {
	return &v
}

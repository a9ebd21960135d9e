package persistence

// QAEntry is one translated Q&A ruling after card ids were rewritten to names.
type QAEntry struct {
	ID         int64
	Locale     string
	Title      string
	Question   string
	Answer     string
	Date       string
	SourceHash *int64
	Translator string
	LastEditor string
}

// FAQEntry is one translated FAQ ruling attached to a single card.
type FAQEntry struct {
	CardID     int64
	Locale     string
	Effect     int64
	SourceHash *int64
	Content    string
	Name       string
}

// Stats summarises the reference tables.
type Stats struct {
	Cards int `json:"cards"`
	QA    int `json:"qa_rulings"`
	FAQ   int `json:"faq_rulings"`
}

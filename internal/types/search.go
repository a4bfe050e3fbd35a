package types

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Boolean modes for multi-term queries.
const (
	OperatorAND = "AND"
	OperatorOR  = "OR"
)

// SearchQuery describes one retrieval request against the document store.
type SearchQuery struct {
	// Keywords is the whitespace-separated query string.
	Keywords string `json:"keywords"`

	// Operator joins multiple terms: AND (default) requires all terms,
	// OR matches any.
	Operator string `json:"operator,omitempty"`

	// SourceID restricts results to one source.
	SourceID *primitive.ObjectID `json:"source_id,omitempty"`

	// ContentType restricts results to one content type.
	ContentType ContentType `json:"content_type,omitempty"`

	// From/To bound the crawled_at timestamp.
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Normalize fills defaults: AND semantics and a limit of 20.
func (q *SearchQuery) Normalize() {
	if q.Operator == "" {
		q.Operator = OperatorAND
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// Validate checks the query bounds after normalization.
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Keywords) == "" {
		return &ValidationError{Field: "keywords", Msg: "must not be empty"}
	}
	if q.Operator != OperatorAND && q.Operator != OperatorOR {
		return &ValidationError{Field: "operator", Msg: fmt.Sprintf("must be AND or OR, got %q", q.Operator)}
	}
	if q.Limit < 1 || q.Limit > 100 {
		return &ValidationError{Field: "limit", Msg: fmt.Sprintf("must be between 1 and 100, got %d", q.Limit)}
	}
	if q.ContentType != "" && !q.ContentType.Valid() {
		return &ValidationError{Field: "content_type", Msg: fmt.Sprintf("unknown content type %q", q.ContentType)}
	}
	return nil
}

// Terms splits the keyword string into individual query terms.
func (q *SearchQuery) Terms() []string {
	return strings.Fields(q.Keywords)
}

// SearchResult is one ranked hit from the document store.
type SearchResult struct {
	Document Document `json:"document"`

	// Score is the index's text relevance score.
	Score float64 `json:"score"`

	// Snippet is a bounded excerpt of the cleaned text centred on the
	// earliest query term.
	Snippet string `json:"snippet"`

	// Highlighted is the snippet with query terms wrapped in <mark> tags.
	Highlighted string `json:"highlighted,omitempty"`
}

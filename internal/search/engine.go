// Package search turns stored documents into ranked, excerpted results. The
// store executes the index query; this package owns the boolean-operator
// rewrite and the presentation of hits (snippets, highlighting).
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// snippetLength bounds the excerpt around the first matching
// term.
const snippetLength = 200

// Searcher is the slice of the store the engine needs.
type Searcher interface {
	SearchDocuments(ctx context.Context, q *types.SearchQuery) ([]*types.SearchResult, error)
}

// Engine executes search queries and decorates the results.
type Engine struct {
	store  Searcher
	logger *slog.Logger
}

func NewEngine(store Searcher, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With("component", "search"),
	}
}

// Search normalizes and validates the query, rewrites it for the index's
// boolean syntax, and fills each hit's snippet and highlighted excerpt.
// Normalize's defaults stick on the caller's query; the boolean rewrite
// does not.
func (e *Engine) Search(ctx context.Context, q *types.SearchQuery) ([]*types.SearchResult, error) {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	terms := q.Terms()

	// The text index treats space-separated terms as a disjunction, so OR
	// needs no extra syntax. AND quotes every term: the index then requires
	// each quoted phrase to be present. A single bare term is left unquoted
	// so stemmed matching still applies.
	exec := *q
	if q.Operator == types.OperatorAND && len(terms) > 1 {
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = `"` + t + `"`
		}
		exec.Keywords = strings.Join(quoted, " ")
	} else {
		exec.Keywords = strings.Join(terms, " ")
	}

	results, err := e.store.SearchDocuments(ctx, &exec)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		r.Snippet = Snippet(r.Document.CleanedText, terms, snippetLength)
		r.Highlighted = Highlight(r.Snippet, terms)
	}

	e.logger.Debug("search complete",
		"keywords", q.Keywords,
		"operator", q.Operator,
		"results", len(results))
	return results, nil
}

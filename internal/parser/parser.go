// Package parser converts raw fetched bytes of one content type into
// normalised results ready for storage.
package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Parser extracts documents from the body fetched for a source.
type Parser interface {
	// ContentType is the tag this parser is registered under.
	ContentType() types.ContentType

	// Parse converts one fetched body into results. Feed-like types emit
	// one result per entry; page-like types emit exactly one.
	Parse(body []byte, pageURL string) ([]*Result, error)
}

// URLRewriter is implemented by parsers whose fetch endpoint differs from
// the configured source URL: platforms read through a mirror feed or a
// listing API. FetchURL returns the source URL unchanged when it cannot
// derive an endpoint.
type URLRewriter interface {
	FetchURL(sourceURL string) string
}

// Result is the normalised output of a parse: one page, feed entry or post.
type Result struct {
	URL         string
	ContentType types.ContentType

	// RawContent is the decoded source text (markup included).
	RawContent string

	// CleanedText is the whitespace-normalised visible text.
	CleanedText string

	Title       string
	Author      string
	PublishDate *time.Time
	Language    string
	WordCount   int

	// Custom carries parser-specific metadata such as platform or score.
	Custom map[string]any

	// NextPage is a detected pagination URL, already absolutised; empty
	// when the parser found none.
	NextPage string
}

// newResult builds a result with the word count derived from the cleaned
// text.
func newResult(pageURL string, ct types.ContentType, raw, cleaned string) *Result {
	return &Result{
		URL:         pageURL,
		ContentType: ct,
		RawContent:  raw,
		CleanedText: cleaned,
		WordCount:   processing.WordCount(cleaned),
		Custom:      make(map[string]any),
	}
}

// Metadata converts the result's descriptive fields into document metadata.
// Keywords are filled in later by the crawl pipeline.
func (r *Result) Metadata() types.DocumentMetadata {
	return types.DocumentMetadata{
		Title:       r.Title,
		Author:      r.Author,
		PublishDate: r.PublishDate,
		Language:    r.Language,
		WordCount:   r.WordCount,
		Custom:      r.Custom,
	}
}

// Registry maps content types to their parsers.
type Registry struct {
	parsers map[types.ContentType]Parser
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty parser registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		parsers: make(map[types.ContentType]Parser),
		logger:  logger.With("component", "parser_registry"),
	}
}

// Register adds a parser under its content type.
func (r *Registry) Register(p Parser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ct := p.ContentType()
	if _, exists := r.parsers[ct]; exists {
		return fmt.Errorf("parser for content type %q already registered", ct)
	}

	r.parsers[ct] = p
	r.logger.Debug("parser registered", "content_type", ct)
	return nil
}

// Get returns the parser for a content type.
func (r *Registry) Get(ct types.ContentType) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[ct]
	return p, ok
}

// ContentTypes lists the registered content types.
func (r *Registry) ContentTypes() []types.ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cts := make([]types.ContentType, 0, len(r.parsers))
	for ct := range r.parsers {
		cts = append(cts, ct)
	}
	return cts
}

// DefaultRegistry returns a registry with the full parser set installed.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	feed := NewFeedParser(logger)
	for _, p := range []Parser{
		NewHTMLParser(logger),
		feed,
		NewPDFParser(logger),
		NewTextParser(logger),
		NewRedditParser(logger),
		NewTwitterParser(logger, feed),
		NewYouTubeParser(logger, feed),
		NewLinkedInParser(logger),
	} {
		// Content types are distinct here, so Register cannot fail.
		_ = r.Register(p)
	}
	return r
}

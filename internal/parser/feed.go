package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// FeedParser handles RSS and Atom feeds, emitting one result per entry.
type FeedParser struct {
	logger *slog.Logger
}

// NewFeedParser creates a feed parser.
func NewFeedParser(logger *slog.Logger) *FeedParser {
	return &FeedParser{
		logger: logger.With("component", "feed_parser"),
	}
}

// ContentType implements Parser.
func (p *FeedParser) ContentType() types.ContentType {
	return types.ContentTypeRSS
}

// Parse implements Parser. Each feed entry becomes its own result; an
// entry without a link inherits the feed URL.
func (p *FeedParser) Parse(body []byte, feedURL string) ([]*Result, error) {
	// gofeed parsers are not safe for concurrent reuse, so build one per
	// call.
	feed, err := gofeed.NewParser().ParseString(decode(body))
	if err != nil {
		return nil, &types.ParseError{URL: feedURL, ContentType: types.ContentTypeRSS, Err: err}
	}

	results := make([]*Result, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		results = append(results, p.parseEntry(item, feedURL))
	}

	p.logger.Debug("feed parsed", "url", feedURL, "entries", len(results))
	return results, nil
}

func (p *FeedParser) parseEntry(item *gofeed.Item, feedURL string) *Result {
	link := item.Link
	if link == "" {
		link = feedURL
	}

	// Prefer full content, fall back to the summary/description field.
	content := item.Content
	if content == "" {
		content = item.Description
	}

	cleaned := processing.NormalizeWhitespace(stripHTML(content))
	if cleaned == "" {
		cleaned = item.Title
	}

	res := newResult(link, types.ContentTypeRSS, content, cleaned)
	res.Title = item.Title
	res.Author = entryAuthor(item)

	if item.PublishedParsed != nil {
		res.PublishDate = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		res.PublishDate = item.UpdatedParsed
	}

	res.Custom["feed_url"] = feedURL
	if len(item.Categories) > 0 {
		res.Custom["tags"] = item.Categories
	}
	if item.GUID != "" {
		res.Custom["entry_id"] = item.GUID
	} else {
		res.Custom["entry_id"] = link
	}

	return res
}

func entryAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}

// stripHTML drops markup embedded in feed entry bodies, keeping the text.
func stripHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

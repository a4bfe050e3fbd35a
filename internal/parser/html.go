package parser

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Subtrees that never contribute visible article text.
const strippedElements = "script, style, nav, header, footer, aside, noscript"

// nextPageXPaths describe pagination anchors in preference order: an
// explicit rel, then class or id naming conventions.
var nextPageXPaths = []string{
	`//a[@rel='next']`,
	`//a[contains(translate(@class, 'NEXT', 'next'), 'next')]`,
	`//a[contains(translate(@id, 'NEXT', 'next'), 'next')]`,
}

// dateLayouts are the ISO-8601 shapes accepted in date metadata.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// HTMLParser extracts visible text and metadata from web pages.
type HTMLParser struct {
	logger *slog.Logger
}

// NewHTMLParser creates an HTML page parser.
func NewHTMLParser(logger *slog.Logger) *HTMLParser {
	return &HTMLParser{
		logger: logger.With("component", "html_parser"),
	}
}

// ContentType implements Parser.
func (p *HTMLParser) ContentType() types.ContentType {
	return types.ContentTypeHTML
}

// Parse implements Parser. It emits a single result per page.
func (p *HTMLParser) Parse(body []byte, pageURL string) ([]*Result, error) {
	htmlText := decode(body)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, ContentType: types.ContentTypeHTML, Err: err}
	}

	// Metadata lives in subtrees the text pass strips, so read it first.
	title := extractTitle(doc)
	author := extractAuthor(doc)
	publishDate := extractPublishDate(doc)
	language := strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))

	doc.Find(strippedElements).Remove()
	text := visibleText(doc)
	cleaned := processing.NormalizeWhitespace(text)

	res := newResult(pageURL, types.ContentTypeHTML, htmlText, cleaned)
	res.Title = title
	res.Author = author
	res.PublishDate = publishDate
	res.Language = language

	if next := p.nextPageURL(doc, pageURL); next != "" {
		res.NextPage = next
		res.Custom["next_page"] = next
	}

	return []*Result{res}, nil
}

// extractTitle prefers the title tag, then og:title, then the first h1.
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="author"]`, `meta[property="article:author"]`} {
		if a, ok := doc.Find(sel).Attr("content"); ok {
			if a = strings.TrimSpace(a); a != "" {
				return a
			}
		}
	}
	return ""
}

func extractPublishDate(doc *goquery.Document) *time.Time {
	for _, sel := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="publication_date"]`,
		`meta[name="date"]`,
	} {
		if raw, ok := doc.Find(sel).Attr("content"); ok {
			if d := parseISODate(raw); d != nil {
				return d
			}
		}
	}
	return nil
}

// parseISODate tries the accepted ISO-8601 layouts and returns nil when
// none fit.
func parseISODate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// visibleText returns the text of the innermost main content region:
// article, then main, then body, then the whole document.
func visibleText(doc *goquery.Document) string {
	for _, sel := range []string{"article", "main", "body"} {
		if region := doc.Find(sel).First(); region.Length() > 0 {
			return region.Text()
		}
	}
	return doc.Text()
}

// nextPageURL detects a pagination link and absolutises it against the
// current page.
func (p *HTMLParser) nextPageURL(doc *goquery.Document, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	root := doc.Get(0)
	for _, expr := range nextPageXPaths {
		node, err := htmlquery.Query(root, expr)
		if err != nil || node == nil {
			continue
		}
		href := strings.TrimSpace(htmlquery.SelectAttr(node, "href"))
		if href == "" {
			continue
		}
		if abs := absolutize(base, href); abs != "" {
			return abs
		}
	}
	return ""
}

// absolutize resolves href against base and keeps only http(s) results.
func absolutize(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

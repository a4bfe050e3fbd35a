package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Posts shorter than this are reaction counts and UI chrome, not content.
const minPostLength = 20

// Selector lists for the public company/profile page layouts, most
// specific first.
var (
	linkedinTitleSelectors = []string{
		"h1.top-card-layout__title",
		"h1.org-top-card-summary__title",
		"h1",
	}
	linkedinTaglineSelectors = []string{
		"p.top-card-layout__headline",
		"p.org-top-card-summary__tagline",
		"div.about-us__description",
	}
	linkedinPostSelectors = []string{
		"div.feed-shared-update-v2__description",
		"article.feed-shared-update-v2",
		"div.occludable-update",
	}
)

// LinkedInParser scrapes public LinkedIn company and profile pages.
type LinkedInParser struct {
	logger *slog.Logger
}

// NewLinkedInParser creates a LinkedIn page parser.
func NewLinkedInParser(logger *slog.Logger) *LinkedInParser {
	return &LinkedInParser{
		logger: logger.With("component", "linkedin_parser"),
	}
}

// ContentType implements Parser.
func (p *LinkedInParser) ContentType() types.ContentType {
	return types.ContentTypeLinkedIn
}

// Parse implements Parser. It emits a single result combining the page
// title, tagline and visible post blocks.
func (p *LinkedInParser) Parse(body []byte, pageURL string) ([]*Result, error) {
	htmlText := decode(body)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, ContentType: types.ContentTypeLinkedIn, Err: err}
	}

	title := firstText(doc, linkedinTitleSelectors)
	tagline := firstText(doc, linkedinTaglineSelectors)
	posts := extractPosts(doc)

	sections := make([]string, 0, 2+len(posts))
	if title != "" {
		sections = append(sections, title)
	}
	if tagline != "" {
		sections = append(sections, tagline)
	}
	sections = append(sections, posts...)

	cleaned := processing.NormalizeWhitespace(strings.Join(sections, "\n\n"))

	res := newResult(pageURL, types.ContentTypeLinkedIn, htmlText, cleaned)
	res.Title = title
	res.Custom["platform"] = "linkedin"
	res.Custom["post_count"] = len(posts)

	return []*Result{res}, nil
}

// firstText returns the text of the first selector that matches anything.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// extractPosts collects post blocks from the first matching layout.
func extractPosts(doc *goquery.Document) []string {
	for _, sel := range linkedinPostSelectors {
		nodes := doc.Find(sel)
		if nodes.Length() == 0 {
			continue
		}
		var posts []string
		nodes.Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > minPostLength {
				posts = append(posts, text)
			}
		})
		return posts
	}
	return nil
}

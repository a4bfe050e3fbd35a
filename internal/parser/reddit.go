package parser

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

var subredditRe = regexp.MustCompile(`/r/([^/]+)`)

// redditListing mirrors the public listing endpoint's JSON envelope.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	URL         string  `json:"url"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// RedditParser consumes the public subreddit listing JSON
// (/r/{sub}/{sort}.json) and yields one result per post.
type RedditParser struct {
	logger *slog.Logger
}

// NewRedditParser creates a Reddit listing parser.
func NewRedditParser(logger *slog.Logger) *RedditParser {
	return &RedditParser{
		logger: logger.With("component", "reddit_parser"),
	}
}

// ContentType implements Parser.
func (p *RedditParser) ContentType() types.ContentType {
	return types.ContentTypeReddit
}

// Parse implements Parser.
func (p *RedditParser) Parse(body []byte, listingURL string) ([]*Result, error) {
	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &types.ParseError{URL: listingURL, ContentType: types.ContentTypeReddit, Err: err}
	}

	fallbackSub := subredditFromURL(listingURL)

	results := make([]*Result, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Title == "" && post.Selftext == "" {
			continue
		}

		postURL := post.URL
		if postURL == "" {
			postURL = listingURL
		}

		raw := post.Title
		if post.Selftext != "" {
			raw += "\n\n" + post.Selftext
		}

		res := newResult(postURL, types.ContentTypeReddit, raw, processing.NormalizeWhitespace(raw))
		res.Title = post.Title
		res.Author = post.Author
		if post.CreatedUTC > 0 {
			created := time.Unix(int64(post.CreatedUTC), 0).UTC()
			res.PublishDate = &created
		}

		sub := post.Subreddit
		if sub == "" {
			sub = fallbackSub
		}
		res.Custom["platform"] = "reddit"
		res.Custom["subreddit"] = sub
		res.Custom["score"] = post.Score
		res.Custom["num_comments"] = post.NumComments
		res.Custom["post_id"] = post.ID

		results = append(results, res)
	}

	p.logger.Debug("reddit listing parsed", "url", listingURL, "posts", len(results))
	return results, nil
}

// FetchURL implements URLRewriter: subreddit pages are read through the
// public hot-listing endpoint.
func (p *RedditParser) FetchURL(sourceURL string) string {
	if strings.Contains(sourceURL, ".json") {
		return sourceURL
	}
	sub := subredditFromURL(sourceURL)
	if sub == "" {
		return sourceURL
	}
	return "https://www.reddit.com/r/" + sub + "/hot.json"
}

func subredditFromURL(rawURL string) string {
	if m := subredditRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// nitterInstance is the mirror timelines are read through.
const nitterInstance = "https://nitter.net"

// twitterUserRes pull the account name out of twitter.com, x.com and
// nitter-mirror URLs.
var twitterUserRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:twitter|x)\.com/([^/]+)`),
	regexp.MustCompile(`(?i)nitter\.[^/]+/([^/]+)`),
}

// TwitterParser reads a timeline through a mirror RSS feed and retags the
// entries as tweets.
type TwitterParser struct {
	logger *slog.Logger
	feed   *FeedParser
}

// NewTwitterParser creates a Twitter timeline parser on top of the feed
// parser.
func NewTwitterParser(logger *slog.Logger, feed *FeedParser) *TwitterParser {
	return &TwitterParser{
		logger: logger.With("component", "twitter_parser"),
		feed:   feed,
	}
}

// ContentType implements Parser.
func (p *TwitterParser) ContentType() types.ContentType {
	return types.ContentTypeTwitter
}

// Parse implements Parser. The body is the mirror feed for the account.
func (p *TwitterParser) Parse(body []byte, feedURL string) ([]*Result, error) {
	results, err := p.feed.Parse(body, feedURL)
	if err != nil {
		return nil, &types.ParseError{URL: feedURL, ContentType: types.ContentTypeTwitter, Err: err}
	}

	username := twitterUsername(feedURL)
	for _, res := range results {
		res.ContentType = types.ContentTypeTwitter
		res.Custom["platform"] = "twitter"
		if username != "" {
			res.Custom["username"] = username
		}
	}

	p.logger.Debug("timeline parsed", "url", feedURL, "tweets", len(results), "username", username)
	return results, nil
}

// FetchURL implements URLRewriter: timelines are read through the mirror's
// RSS feed, not the configured profile page.
func (p *TwitterParser) FetchURL(sourceURL string) string {
	if strings.HasSuffix(strings.TrimSuffix(sourceURL, "/"), "/rss") {
		return sourceURL
	}
	username := twitterUsername(sourceURL)
	if username == "" {
		return sourceURL
	}
	return nitterInstance + "/" + username + "/rss"
}

func twitterUsername(rawURL string) string {
	for _, re := range twitterUserRes {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

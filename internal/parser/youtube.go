package parser

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// youtubeFeedBase is the Atom feed endpoint channels and playlists are read
// through.
const youtubeFeedBase = "https://www.youtube.com/feeds/videos.xml"

// videoIDRes match the watch, short-link and embed URL shapes.
var videoIDRes = []*regexp.Regexp{
	regexp.MustCompile(`watch\?v=([^&]+)`),
	regexp.MustCompile(`youtu\.be/([^?]+)`),
	regexp.MustCompile(`embed/([^?]+)`),
}

var youtubeChannelRe = regexp.MustCompile(`/channel/([A-Za-z0-9_-]+)`)

// YouTubeParser reads a channel or playlist Atom feed
// (feeds/videos.xml?channel_id=… or ?playlist_id=…) and retags the entries
// as videos.
type YouTubeParser struct {
	logger *slog.Logger
	feed   *FeedParser
}

// NewYouTubeParser creates a YouTube feed parser on top of the feed parser.
func NewYouTubeParser(logger *slog.Logger, feed *FeedParser) *YouTubeParser {
	return &YouTubeParser{
		logger: logger.With("component", "youtube_parser"),
		feed:   feed,
	}
}

// ContentType implements Parser.
func (p *YouTubeParser) ContentType() types.ContentType {
	return types.ContentTypeYouTube
}

// Parse implements Parser. The body is the channel/playlist feed XML.
func (p *YouTubeParser) Parse(body []byte, feedURL string) ([]*Result, error) {
	results, err := p.feed.Parse(body, feedURL)
	if err != nil {
		return nil, &types.ParseError{URL: feedURL, ContentType: types.ContentTypeYouTube, Err: err}
	}

	channelID, playlistID := youtubeFeedIDs(feedURL)
	for _, res := range results {
		res.ContentType = types.ContentTypeYouTube
		res.Custom["platform"] = "youtube"
		if channelID != "" {
			res.Custom["channel_id"] = channelID
		}
		if playlistID != "" {
			res.Custom["playlist_id"] = playlistID
		}
		if id := videoID(res.URL); id != "" {
			res.Custom["video_id"] = id
		}
	}

	p.logger.Debug("video feed parsed", "url", feedURL, "videos", len(results))
	return results, nil
}

// FetchURL implements URLRewriter: channel and playlist pages are read
// through their Atom feed.
func (p *YouTubeParser) FetchURL(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return sourceURL
	}
	if strings.Contains(u.Path, "feeds/videos.xml") {
		return sourceURL
	}
	if m := youtubeChannelRe.FindStringSubmatch(u.Path); m != nil {
		return youtubeFeedBase + "?channel_id=" + m[1]
	}
	if list := u.Query().Get("list"); list != "" {
		return youtubeFeedBase + "?playlist_id=" + list
	}
	return sourceURL
}

func youtubeFeedIDs(feedURL string) (channelID, playlistID string) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", ""
	}
	q := u.Query()
	return q.Get("channel_id"), q.Get("playlist_id")
}

func videoID(rawURL string) string {
	for _, re := range videoIDRes {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

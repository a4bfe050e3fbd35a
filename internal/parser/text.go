package parser

import (
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Titles longer than this are headings pasted into body text, not titles.
const maxTitleLength = 200

// TextParser handles plain text files.
type TextParser struct {
	logger *slog.Logger
}

// NewTextParser creates a plain text parser.
func NewTextParser(logger *slog.Logger) *TextParser {
	return &TextParser{
		logger: logger.With("component", "text_parser"),
	}
}

// ContentType implements Parser.
func (p *TextParser) ContentType() types.ContentType {
	return types.ContentTypeTXT
}

// Parse implements Parser.
func (p *TextParser) Parse(body []byte, pageURL string) ([]*Result, error) {
	text := decode(body)
	if strings.TrimSpace(text) == "" {
		return nil, &types.ParseError{
			URL:         pageURL,
			ContentType: types.ContentTypeTXT,
			Err:         types.ErrEmptyResponse,
		}
	}

	res := newResult(pageURL, types.ContentTypeTXT, text, processing.NormalizeWhitespace(text))
	res.Title = textTitle(text, pageURL)
	res.Custom["file_size"] = len(body)
	res.Custom["charset"] = charsetName(body)

	return []*Result{res}, nil
}

// textTitle uses the first short non-empty line, falling back to the URL's
// file stem.
func textTitle(text, pageURL string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) < maxTitleLength {
			return line
		}
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	stem := path.Base(u.Path)
	stem = strings.TrimSuffix(stem, path.Ext(stem))
	if stem == "." || stem == "/" {
		return ""
	}
	return stem
}

package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/sourcewatch/sourcewatch/internal/processing"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

// PDFParser extracts text and Info-dictionary metadata from PDF documents.
type PDFParser struct {
	logger *slog.Logger
}

// NewPDFParser creates a PDF document parser.
func NewPDFParser(logger *slog.Logger) *PDFParser {
	return &PDFParser{
		logger: logger.With("component", "pdf_parser"),
	}
}

// ContentType implements Parser.
func (p *PDFParser) ContentType() types.ContentType {
	return types.ContentTypePDF
}

// Parse implements Parser. Encrypted documents get one empty-password
// decryption attempt; anything still locked is rejected.
func (p *PDFParser) Parse(body []byte, pageURL string) (results []*Result, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = &types.ParseError{
				URL:         pageURL,
				ContentType: types.ContentTypePDF,
				Err:         fmt.Errorf("malformed pdf: %v", r),
			}
		}
	}()

	if len(body) < 4 || string(body[:4]) != "%PDF" {
		return nil, &types.ParseError{
			URL:         pageURL,
			ContentType: types.ContentTypePDF,
			Err:         fmt.Errorf("content does not start with %%PDF"),
		}
	}

	reader, err := pdf.NewReaderEncrypted(bytes.NewReader(body), int64(len(body)), emptyPassword)
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, ContentType: types.ContentTypePDF, Err: err}
	}

	var parts []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("pdf page extraction failed", "url", pageURL, "page", i, "error", err)
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	raw := strings.Join(parts, "\n\n")
	cleaned := processing.NormalizeWhitespace(raw)
	if raw == "" {
		p.logger.Warn("no text extracted from pdf", "url", pageURL)
	}

	res := newResult(pageURL, types.ContentTypePDF, raw, cleaned)
	info := reader.Trailer().Key("Info")
	res.Title = pdfInfoString(info, "Title")
	res.Author = pdfInfoString(info, "Author")
	res.PublishDate = pdfInfoDate(info)
	res.Custom["num_pages"] = numPages
	res.Custom["is_encrypted"] = !reader.Trailer().Key("Encrypt").IsNull()

	return []*Result{res}, nil
}

// emptyPassword makes NewReaderEncrypted try only the empty password.
func emptyPassword() string { return "" }

func pdfInfoString(info pdf.Value, key string) string {
	if info.IsNull() {
		return ""
	}
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

func pdfInfoDate(info pdf.Value) *time.Time {
	raw := pdfInfoString(info, "CreationDate")
	if raw == "" {
		raw = pdfInfoString(info, "ModDate")
	}
	return decodePDFDate(raw)
}

// decodePDFDate reads the D:YYYYMMDDHHMMSS date form, ignoring the
// timezone suffix.
func decodePDFDate(raw string) *time.Time {
	raw = strings.TrimPrefix(raw, "D:")
	if len(raw) < 14 {
		return nil
	}
	t, err := time.ParseInLocation("20060102150405", raw[:14], time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

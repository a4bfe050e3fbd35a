package parser

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// sniffDefault is the name DetermineEncoding falls back to when the bytes
// carry no usable signal; it means "no idea", not "windows-1252".
const sniffDefault = "windows-1252"

// decode converts raw bytes to text: the sniffed charset when the sniffer
// has real evidence (BOM or meta tag), otherwise UTF-8, with latin-1 as the
// last resort for byte soup.
func decode(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	enc, name, certain := charset.DetermineEncoding(body, "")
	if certain || name != sniffDefault {
		if out, err := enc.NewDecoder().Bytes(body); err == nil {
			return string(out)
		}
	}

	if utf8.Valid(body) {
		return string(body)
	}
	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(body); err == nil {
		return string(out)
	}
	return strings.ToValidUTF8(string(body), string(utf8.RuneError))
}

// charsetName reports the sniffed charset label for metadata purposes.
func charsetName(body []byte) string {
	_, name, certain := charset.DetermineEncoding(body, "")
	if certain || name != sniffDefault {
		return name
	}
	return "utf-8"
}

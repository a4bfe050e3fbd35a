// Package blocking classifies crawl responses as adversarial or clean.
// Detection is pure: it never mutates state and never issues requests.
package blocking

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Block type labels reported in Result.BlockType.
const (
	BlockTypeCAPTCHA = "CAPTCHA"
	BlockTypeIPBan   = "IP_BAN"
)

// HTTP statuses treated as blocks, with their reason labels.
var httpBlockReasons = map[int]string{
	403: "HTTP_403_FORBIDDEN",
	429: "HTTP_429_RATE_LIMIT",
	503: "HTTP_503_SERVICE_UNAVAILABLE",
}

// Body substrings that indicate a CAPTCHA wall (checked case-insensitively).
var captchaPatterns = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"cloudflare",
	"challenge",
	"verify you are human",
	"security check",
	"unusual traffic",
	"robot",
	"automated",
}

// Body patterns that indicate an IP-level ban.
var ipBanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ip.*banned`),
	regexp.MustCompile(`ip.*blocked`),
	regexp.MustCompile(`access denied`),
	regexp.MustCompile(`forbidden`),
	regexp.MustCompile(`too many requests`),
	regexp.MustCompile(`rate limit exceeded`),
	regexp.MustCompile(`temporarily blocked`),
}

// DOM markers for CAPTCHA walls that plain substring scanning can miss.
var captchaSelectors = []string{
	"iframe[src*='recaptcha']",
	"iframe[src*='hcaptcha']",
	"div[class*='captcha']",
	"div[id*='captcha']",
	"form[action*='captcha']",
	"div#cf-wrapper",
}

// Result carries the classification of one response. Multiple positive
// flags may coexist; BlockType holds the winning label.
type Result struct {
	Blocked bool `json:"blocked"`

	// BlockType is the HTTP reason label, "CAPTCHA" or "IP_BAN"; empty
	// when not blocked.
	BlockType string `json:"block_type,omitempty"`

	HTTPBlock       bool `json:"http_block"`
	CAPTCHADetected bool `json:"captcha_detected"`
	IPBanDetected   bool `json:"ip_ban_detected"`

	StatusCode int `json:"status_code"`
}

// Detect classifies a response body and status. Precedence for BlockType:
// HTTP status block first, then CAPTCHA, then IP-ban.
func Detect(body []byte, statusCode int) Result {
	res := Result{StatusCode: statusCode}

	httpReason, isHTTPBlock := httpBlockReasons[statusCode]
	res.HTTPBlock = isHTTPBlock

	lower := strings.ToLower(string(body))

	for _, pat := range captchaPatterns {
		if strings.Contains(lower, pat) {
			res.CAPTCHADetected = true
			break
		}
	}
	if !res.CAPTCHADetected {
		res.CAPTCHADetected = hasCAPTCHAMarkup(body)
	}

	if statusCode == 429 {
		res.IPBanDetected = true
	} else {
		for _, re := range ipBanPatterns {
			if re.MatchString(lower) {
				res.IPBanDetected = true
				break
			}
		}
	}

	res.Blocked = res.HTTPBlock || res.CAPTCHADetected || res.IPBanDetected
	switch {
	case res.HTTPBlock:
		res.BlockType = httpReason
	case res.CAPTCHADetected:
		res.BlockType = BlockTypeCAPTCHA
	case res.IPBanDetected:
		res.BlockType = BlockTypeIPBan
	}
	return res
}

// DetectResponse classifies a fetched response.
func DetectResponse(resp *types.Response) Result {
	return Detect(resp.Body, resp.StatusCode)
}

// Err converts a blocked result into its typed error; nil when clean.
func (r Result) Err() *types.BlockError {
	if !r.Blocked {
		return nil
	}
	kind := types.BlockKindHTTP
	switch r.BlockType {
	case BlockTypeCAPTCHA:
		kind = types.BlockKindCAPTCHA
	case BlockTypeIPBan:
		kind = types.BlockKindIPBan
	}
	return &types.BlockError{Kind: kind, Reason: r.BlockType, StatusCode: r.StatusCode}
}

// hasCAPTCHAMarkup probes the DOM for challenge containers.
func hasCAPTCHAMarkup(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	for _, sel := range captchaSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

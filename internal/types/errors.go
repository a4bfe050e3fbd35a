package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateURL     = errors.New("duplicate source URL")
	ErrCrawlActive      = errors.New("crawl already in progress")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrEmptyResponse    = errors.New("empty response body")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while turning raw bytes into documents.
type ParseError struct {
	URL         string
	ContentType ContentType
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (%s): %v", e.URL, e.ContentType, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors from the document store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Block kinds reported by the blocking detector.
const (
	BlockKindHTTP    = "http"
	BlockKindCAPTCHA = "captcha"
	BlockKindIPBan   = "ip_ban"
)

// BlockError signals that a response was classified as adversarial; the
// current run is aborted and the source quarantined.
type BlockError struct {
	// Kind is one of the BlockKind constants.
	Kind string

	// Reason is the detector's label, e.g. "HTTP_429_RATE_LIMIT".
	Reason string

	StatusCode int
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("blocked (%s): %s", e.Kind, e.Reason)
}

// ValidationError reports a field that violates its allowed range or format.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

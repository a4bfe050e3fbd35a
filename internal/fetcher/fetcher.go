// Package fetcher retrieves pages politely: robots.txt gating per origin,
// per-host pacing, and bounded retries with exponential backoff.
package fetcher

import (
	"context"

	"github.com/sourcewatch/sourcewatch/internal/types"
)

// Fetcher is the interface for request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL. Non-2xx
	// responses are returned as responses, not errors, so callers can
	// classify them.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// CanFetch reports whether robots.txt allows the configured
	// user agent to fetch rawURL.
	CanFetch(ctx context.Context, rawURL string) bool

	// Close releases any resources held by the fetcher.
	Close() error
}

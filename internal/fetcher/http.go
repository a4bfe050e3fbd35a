package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/sourcewatch/sourcewatch/internal/config"
	"github.com/sourcewatch/sourcewatch/internal/observability"
	"github.com/sourcewatch/sourcewatch/internal/types"
)

const (
	maxRedirects = 10
	maxBodyBytes = 10 << 20

	// defaultBackoffFactor scales retry waits when the request carries none.
	defaultBackoffFactor = 2.0
)

// retryStatuses are response codes worth another attempt. Everything else,
// 4xx included, is terminal.
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client    *http.Client
	cfg       *config.Config
	userAgent string
	robots    *robotsCache
	pacer     *pacer
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewHTTPFetcher creates an HTTP fetcher configured from cfg.
func NewHTTPFetcher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // We handle decompression ourselves (including brotli)
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}

	log := logger.With("component", "fetcher")
	return &HTTPFetcher{
		client:    client,
		cfg:       cfg,
		userAgent: cfg.CrawlerUserAgent,
		robots:    newRobotsCache(client, cfg.CrawlerUserAgent, log),
		pacer:     newPacer(cfg.Delay()),
		metrics:   metrics,
		logger:    log,
	}, nil
}

// Fetch executes the request with robots gating, pacing, and retries.
// When the retry budget runs out on a retryable status, the last response
// is returned anyway so the caller can classify it.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	urlStr := req.URLString()

	if !f.robots.Allowed(ctx, urlStr) {
		f.logger.Warn("robots.txt disallows fetching", "url", urlStr)
		return nil, &types.FetchError{URL: urlStr, Err: types.ErrRobotsDisallowed}
	}

	retries := f.cfg.MaxRetries
	if req.MaxRetries >= 0 {
		retries = req.MaxRetries
	}
	if !isIdempotent(req.Method) {
		retries = 0
	}
	backoff := defaultBackoffFactor
	if req.BackoffFactor > 0 {
		backoff = req.BackoffFactor
	}

	var (
		resp    *types.Response
		lastErr error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(backoff, attempt)
			if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
				if h := resp.Headers.Get("Retry-After"); h != "" {
					if ra := parseRetryAfter(h); ra > wait {
						wait = ra
					}
				}
			}
			f.metrics.FetchRetries.Add(1)
			f.logger.Debug("retrying fetch", "url", urlStr, "attempt", attempt, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, &types.FetchError{URL: urlStr, Err: ctx.Err()}
			}
		}

		if err := f.pacer.Wait(ctx, req.Domain()); err != nil {
			return nil, &types.FetchError{URL: urlStr, Err: err}
		}

		var err error
		resp, err = f.doAttempt(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &types.FetchError{URL: urlStr, Err: ctx.Err()}
			}
			lastErr = err
			if !isRetryableError(err) {
				return nil, &types.FetchError{URL: urlStr, Err: err}
			}
			resp = nil
			continue
		}
		lastErr = nil
		if !retryStatuses[resp.StatusCode] {
			return resp, nil
		}
	}

	if resp != nil {
		f.logger.Warn("retries exhausted, returning last response",
			"url", urlStr, "status", resp.StatusCode)
		return resp, nil
	}
	return nil, &types.FetchError{
		URL: urlStr,
		Err: fmt.Errorf("%w after %d attempts: %v", types.ErrMaxRetries, retries+1, lastErr),
	}
}

// doAttempt performs a single HTTP request with the per-attempt timeout.
func (f *HTTPFetcher) doAttempt(ctx context.Context, req *types.Request) (*types.Response, error) {
	timeout := f.cfg.Timeout()
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, req.URLString(), http.NoBody)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	reader, err := decompressReader(httpResp, io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	resp := types.NewResponse(req, httpResp, body, time.Since(start))

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", resp.FetchDuration,
	)

	return resp, nil
}

// CanFetch implements Fetcher.
func (f *HTTPFetcher) CanFetch(ctx context.Context, rawURL string) bool {
	return f.robots.Allowed(ctx, rawURL)
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// backoffDelay returns factor * 2^(attempt-1) seconds.
func backoffDelay(factor float64, attempt int) time.Duration {
	return time.Duration(factor * math.Pow(2, float64(attempt-1)) * float64(time.Second))
}

// isIdempotent reports whether the method is safe to retry.
func isIdempotent(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
// Covers timeouts, connection resets, unexpected EOF, and connection
// refused. Caller cancellation is handled before this is consulted, so a
// deadline here means the per-attempt timeout fired.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second // default back-off
	}
	// Try seconds integer
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120 // cap at 2 minutes
		}
		return time.Duration(secs) * time.Second
	}
	// Try HTTP-date
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}

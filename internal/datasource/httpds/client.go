// Package httpds reads extracts and code books over HTTP(S). Public data
// portals fail transiently often enough that a GET answered with 429 or a 5xx
// status, or not answered at all, is retried with exponential backoff. Any
// other status is final and returned to the caller.
package httpds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Defaults applied by NewClient to zero Config fields.
const (
	DefaultTimeout    = 60 * time.Second
	DefaultBackoff    = 250 * time.Millisecond
	DefaultMaxBackoff = 8 * time.Second
)

// Config configures a Client.
type Config struct {
	// Timeout bounds one attempt, body included.
	Timeout time.Duration
	// MaxRetries is the number of attempts after the first; 0 disables
	// retrying.
	MaxRetries int
	// Backoff is the delay before the first retry. It doubles per retry up
	// to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Header is sent with every request. Per-request headers win.
	Header http.Header
	// Transport replaces http.DefaultTransport, mostly for tests.
	Transport http.RoundTripper
	// Logger receives one warning per retry; nil disables it.
	Logger *zap.Logger
}

// Client issues GETs with retry. It is safe for concurrent use.
type Client struct {
	http       *http.Client
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	header     http.Header
	log        *zap.Logger

	// wait blocks between attempts; tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient returns a Client for cfg with defaults filled in.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.Backoff)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
		header:     cfg.Header.Clone(),
		log:        cfg.Logger,
		wait:       waitFor,
	}
}

// Get fetches url. The response of the last attempt is returned whenever its
// status is final, 4xx included; the caller closes its body. An error means
// no final response arrived before the retries ran out or ctx ended.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: empty url")
	}
	var lastErr error
	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := c.attempt(ctx, url, header)
		switch {
		case err != nil:
			lastErr = err
		case transient(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("httpds: GET %s: status %d", url, resp.StatusCode)
		default:
			return resp, nil
		}
		if retry >= c.maxRetries {
			return nil, fmt.Errorf("%w (after %d attempts)", lastErr, retry+1)
		}
		d := c.delay(retry)
		c.log.Warn("httpds: retrying",
			zap.String("url", url),
			zap.Int("retry", retry+1),
			zap.Duration("backoff", d),
			zap.Error(lastErr),
		)
		if err := c.wait(ctx, d); err != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	for k, vs := range c.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range header {
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	return c.http.Do(req)
}

// transient reports whether status is worth another attempt.
func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500 && status <= 599
}

// delay is the wait before retry number retry+1: backoff doubled per retry,
// capped at maxBackoff.
func (c *Client) delay(retry int) time.Duration {
	d := c.backoff
	for i := 0; i < retry && d < c.maxBackoff; i++ {
		d *= 2
	}
	return min(d, c.maxBackoff)
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

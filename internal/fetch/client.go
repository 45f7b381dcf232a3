package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultUserAgent looks like a desktop browser; several sports sites return
// empty feeds to obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123 Safari/537.36"

const maxBodyBytes = 8 << 20

// HTTPClient performs plain GETs for the feed and page fetchers.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// NewHTTPClient wraps client; a nil client means http.DefaultClient.
// Timeouts come from the caller's context.
func NewHTTPClient(client *http.Client, userAgent string, log *slog.Logger) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{client: client, userAgent: userAgent, log: log}
}

// Get fetches url and returns its body. Any non-2xx status is an error.
// The body is capped so a misbehaving upstream cannot exhaust memory.
func (c *HTTPClient) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	log := c.log.With(slog.String("url", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for url %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	log.Debug("Fetched URL", slog.Int("status_code", resp.StatusCode))
	return readCloser{Reader: io.LimitReader(resp.Body, maxBodyBytes), Closer: resp.Body}, nil
}

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for url %s", e.Code, e.URL)
}

type readCloser struct {
	io.Reader
	io.Closer
}

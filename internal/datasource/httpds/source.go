package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Source is a datasource.Source that downloads one URL with GET.
type Source struct {
	client  *Client
	url     string
	headers http.Header
}

// NewSource binds client to url. headers may be nil.
func NewSource(client *Client, url string, headers http.Header) *Source {
	return &Source{client: client, url: url, headers: headers}
}

// Name returns the URL.
func (s *Source) Name() string { return s.url }

// Open issues the GET (with retries) and returns the body on a 2xx status.
// Any other final status is an error carrying a short body excerpt.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: status %d: %q", s.url, resp.StatusCode, excerpt)
	}
	return resp.Body, nil
}

// Header returns the extract's header row, read with a ranged GET of at
// most DefaultHeaderLimit bytes.
func (s *Source) Header(ctx context.Context) (HeaderLine, error) {
	return s.client.FetchHeader(ctx, s.url, s.headers, DefaultHeaderLimit)
}

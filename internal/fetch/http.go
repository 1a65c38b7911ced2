package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/specialistvlad/babago/internal/ctxlog"
	"resty.dev/v3"
)

// URLConverter maps a resource to a URL path relative to the base URL.
type URLConverter func(r Resource) string

// HTTPFetcher downloads resources relative to a base URL.
type HTTPFetcher struct {
	client  *resty.Client
	convert URLConverter
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithURLConverter replaces the default name-to-path mapping.
func WithURLConverter(c URLConverter) HTTPOption {
	return func(f *HTTPFetcher) { f.convert = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) { f.client.SetTimeout(d) }
}

// NewHTTPFetcher returns a fetcher for baseURL. Template names get ext
// appended unless a URLConverter says otherwise.
func NewHTTPFetcher(baseURL, ext string, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
		convert: func(r Resource) string { return Location(r, ext) },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET for r.
func (f *HTTPFetcher) Fetch(ctx context.Context, r Resource) ([]byte, error) {
	path := f.convert(r)
	ctxlog.FromContext(ctx).Debug("Fetching over HTTP.", "kind", r.Kind.String(), "name", r.Name, "path", path)

	resp, err := f.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetching %s %q: %w", r.Kind, r.Name, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%s %q: %w", r.Kind, r.Name, ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching %s %q: unexpected status %d", r.Kind, r.Name, resp.StatusCode())
	}
	return []byte(resp.String()), nil
}

// Close releases the underlying client.
func (f *HTTPFetcher) Close() error {
	return f.client.Close()
}

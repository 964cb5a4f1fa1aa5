// Package httpclient builds the outbound HTTP clients used by the API wrappers.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nb4mna/nb4mna/internal/cache"
)

// maxBodySize bounds how much of an API response body is read.
const maxBodySize = 4 << 20

// NewCached returns a client whose requests go through a response cache
// wrapping next. The caller owns the returned cache and must Close it.
func NewCached(name string, next http.RoundTripper, duration, timeout time.Duration) (*http.Client, *cache.Transport, error) {
	if next == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.ForceAttemptHTTP2 = true
		next = base
	}

	transport, err := cache.New(next, duration, cache.WithName(name))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s cache: %w", name, err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, transport, nil
}

// ReadBody reads and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

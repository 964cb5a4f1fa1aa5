// Package urbandictionary is a client for the Urban Dictionary API.
package urbandictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nb4mna/nb4mna/internal/api/httpclient"
	"github.com/nb4mna/nb4mna/internal/cache"
	"github.com/nb4mna/nb4mna/internal/logging"

	"github.com/sirupsen/logrus"
)

// DefaultCacheDuration is how long dictionary responses are reused.
const DefaultCacheDuration = 10 * time.Minute

// TermDefinition is one user-submitted definition of a word.
type TermDefinition struct {
	Definition string `json:"definition"`
	Permalink  string `json:"permalink"`
	Word       string `json:"word"`
}

type termDefinitions struct {
	List []TermDefinition `json:"list"`
}

// APIError is an error reported by the API.
type APIError struct {
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Options configures a Client.
type Options struct {
	Endpoint      string
	CacheDuration time.Duration
	Timeout       time.Duration
	// Transport performs the uncached requests, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client looks up terms. It owns its response cache.
type Client struct {
	endpoint string
	http     *http.Client
	cache    *cache.Transport
	logger   *logrus.Entry
}

// New creates a client and starts its response cache.
func New(opts Options) (*Client, error) {
	duration := opts.CacheDuration
	if duration == 0 {
		duration = DefaultCacheDuration
	}

	client, transport, err := httpclient.NewCached("urbandictionary", opts.Transport, duration, opts.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		http:     client,
		cache:    transport,
		logger:   logrus.WithField("component", "urbandictionary"),
	}, nil
}

// Close stops the response cache.
func (c *Client) Close() error {
	return c.cache.Close()
}

// GetAutocomplete returns the terms suggested for term, best match not necessarily first.
func (c *Client) GetAutocomplete(ctx context.Context, term string) ([]string, error) {
	var suggestions []string
	if err := c.get(ctx, "autocomplete", term, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// GetTerm returns the definitions of term.
func (c *Client) GetTerm(ctx context.Context, term string) ([]TermDefinition, error) {
	var definitions termDefinitions
	if err := c.get(ctx, "define", term, &definitions); err != nil {
		return nil, err
	}
	return definitions.List, nil
}

func (c *Client) get(ctx context.Context, path, term string, out any) error {
	logger := logging.FromContext(ctx).WithFields(c.logger.Data)
	target := c.endpoint + "/" + path + "?" + url.Values{"term": {term}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", path, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		logger.Errorf("api_error=%+v", *apiErr)
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

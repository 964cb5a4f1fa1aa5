// Package tatsumaki is a client for the Tatsumaki (Tatsu) leaderboard API.
package tatsumaki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nb4mna/nb4mna/internal/api/httpclient"
	"github.com/nb4mna/nb4mna/internal/cache"
	"github.com/nb4mna/nb4mna/internal/logging"

	"github.com/sirupsen/logrus"
)

// DefaultCacheDuration is how long leaderboard responses are reused.
const DefaultCacheDuration = 60 * time.Second

// ID is a Discord snowflake. The API encodes it either as a JSON string or a number.
type ID uint64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ID(v)
	return nil
}

// MemberRanking is the all-time ranking of a guild member.
type MemberRanking struct {
	GuildID ID  `json:"guild_id"`
	Rank    int `json:"rank"`
	Score   int `json:"score"`
	UserID  ID  `json:"user_id"`
}

// APIError is an error reported by the API, or detected in one of its answers.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// Options configures a Client.
type Options struct {
	APIKey        string
	GuildID       uint64
	Endpoint      string
	CacheDuration time.Duration
	Timeout       time.Duration
	// Transport performs the uncached requests, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client queries the rankings of one guild. It owns its response cache.
type Client struct {
	apiKey   string
	guildID  uint64
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

	client, transport, err := httpclient.NewCached("tatsumaki", opts.Transport, duration, opts.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiKey:   opts.APIKey,
		guildID:  opts.GuildID,
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		http:     client,
		cache:    transport,
		logger: logrus.WithFields(logrus.Fields{
			"component": "tatsumaki",
			"guild_id":  opts.GuildID,
		}),
	}, nil
}

// GuildID returns the guild the client is bound to.
func (c *Client) GuildID() uint64 {
	return c.guildID
}

// Close stops the response cache.
func (c *Client) Close() error {
	return c.cache.Close()
}

// GetGuildMemberRanking returns the all-time ranking of userID in the guild.
func (c *Client) GetGuildMemberRanking(ctx context.Context, userID uint64) (*MemberRanking, error) {
	logger := logging.FromContext(ctx).WithFields(c.logger.Data)
	url := fmt.Sprintf("%s/guilds/%d/rankings/members/%d/all", c.endpoint, c.guildID, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ranking: %w", err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeError(resp.StatusCode, body)
		logger.Errorf("api_error=%+v", *apiErr)
		return nil, apiErr
	}

	var ranking MemberRanking
	if err := json.Unmarshal(body, &ranking); err != nil {
		return nil, fmt.Errorf("failed to decode member ranking: %w", err)
	}

	if uint64(ranking.GuildID) != c.guildID {
		apiErr := &APIError{Code: -1, Message: "Guild ID doesn't match between request and response"}
		logger.Errorf("api_error=%+v", *apiErr)
		return nil, apiErr
	}

	if uint64(ranking.UserID) != userID {
		apiErr := &APIError{Code: -1, Message: "User ID doesn't match between request and response"}
		logger.Errorf("api_error=%+v", *apiErr)
		return nil, apiErr
	}

	logger.Debugf("member ranking: %+v", ranking)
	return &ranking, nil
}

func decodeError(status int, body []byte) *APIError {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return &APIError{Code: status, Message: http.StatusText(status)}
	}
	return &apiErr
}

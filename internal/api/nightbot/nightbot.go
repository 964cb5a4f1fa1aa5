// Package nightbot decodes the headers Nightbot attaches to custom API calls.
package nightbot

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// MaxMessageLength is the longest response Nightbot posts to chat.
const MaxMessageLength = 400

const (
	HeaderResponseURL = "Nightbot-Response-Url"
	HeaderUser        = "Nightbot-User"
	HeaderChannel     = "Nightbot-Channel"
)

var (
	ErrMissingHeader = errors.New("missing nightbot header")
	ErrInvalidHeader = errors.New("invalid nightbot header")
)

// User is the chat user who triggered the command.
type User struct {
	Name        string
	DisplayName string
	Provider    string
	ProviderID  string
	UserLevel   string
}

// Channel is the chat channel the command was issued in.
type Channel struct {
	Name        string
	DisplayName string
	Provider    string
	ProviderID  string
}

// Data holds everything Nightbot tells about a command invocation.
type Data struct {
	ResponseURL *url.URL
	User        User
	Channel     Channel
}

// Parse decodes the Nightbot headers of a request.
func Parse(h http.Header) (*Data, error) {
	rawURL, err := header(h, HeaderResponseURL)
	if err != nil {
		return nil, err
	}
	responseURL, err := url.Parse(rawURL)
	if err != nil || !responseURL.IsAbs() || responseURL.Host == "" {
		return nil, fmt.Errorf("%w %s: not an absolute URL", ErrInvalidHeader, HeaderResponseURL)
	}

	user, err := decode(h, HeaderUser, "name", "displayName", "provider", "providerId", "userLevel")
	if err != nil {
		return nil, err
	}
	channel, err := decode(h, HeaderChannel, "name", "displayName", "provider", "providerId")
	if err != nil {
		return nil, err
	}

	return &Data{
		ResponseURL: responseURL,
		User: User{
			Name:        user["name"],
			DisplayName: user["displayName"],
			Provider:    user["provider"],
			ProviderID:  user["providerId"],
			UserLevel:   user["userLevel"],
		},
		Channel: Channel{
			Name:        channel["name"],
			DisplayName: channel["displayName"],
			Provider:    channel["provider"],
			ProviderID:  channel["providerId"],
		},
	}, nil
}

func header(h http.Header, name string) (string, error) {
	v := h.Get(name)
	if v == "" {
		return "", fmt.Errorf("%w %s", ErrMissingHeader, name)
	}
	return v, nil
}

// decode parses a URL-encoded header value. Every listed field must be
// present, empty values are allowed.
func decode(h http.Header, name string, fields ...string) (map[string]string, error) {
	raw, err := header(h, name)
	if err != nil {
		return nil, err
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidHeader, name, err)
	}

	decoded := make(map[string]string, len(fields))
	for _, field := range fields {
		v, ok := values[field]
		if !ok {
			return nil, fmt.Errorf("%w %s: missing field %q", ErrInvalidHeader, name, field)
		}
		decoded[field] = v[0]
	}
	return decoded, nil
}

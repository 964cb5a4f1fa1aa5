package tests

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/nb4mna/nb4mna/internal/api/nightbot"
	"github.com/nb4mna/nb4mna/internal/config"
	"github.com/nb4mna/nb4mna/internal/server"
)

const fixtureGuildID = 173184118492889089

// upstreamCalls counts the requests received by the fake APIs, per path.
type upstreamCalls struct {
	mu    sync.Mutex
	paths map[string]int
}

func (c *upstreamCalls) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[path]++
}

func (c *upstreamCalls) get(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func (c *upstreamCalls) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.paths {
		n += v
	}
	return n
}

// fixture_upstream creates a fake Tatsumaki API under /tatsu and a fake
// Urban Dictionary API under /urban. Discord user N has a score of N.
func fixture_upstream() (*httptest.Server, *upstreamCalls) {
	calls := &upstreamCalls{paths: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tatsu/guilds/{guild}/rankings/members/{user}/all", func(w http.ResponseWriter, requ *http.Request) {
		calls.add(requ.URL.Path)
		if requ.Header.Get("Authorization") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":50001,"message":"Invalid API key"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"guild_id":"%s","rank":1,"score":%s,"user_id":"%s"}`,
			requ.PathValue("guild"), requ.PathValue("user"), requ.PathValue("user"))
	})
	mux.HandleFunc("GET /urban/autocomplete", func(w http.ResponseWriter, requ *http.Request) {
		calls.add(requ.URL.Path + "?" + requ.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		if requ.URL.Query().Get("term") == "nothing" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`["Gopherine","gopher"]`))
	})
	mux.HandleFunc("GET /urban/define", func(w http.ResponseWriter, requ *http.Request) {
		calls.add(requ.URL.Path + "?" + requ.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"list":[{"word":"%s","definition":"A [burrowing]\r\nrodent.","permalink":"http://gopher.urbanup.com/1"}]}`,
			requ.URL.Query().Get("term"))
	})

	return httptest.NewServer(mux), calls
}

// fixture_config creates a test config pointing both APIs at the upstream
func fixture_config(upstreamURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0, HTTPTimeout: "5s"}, // Will be set by test server
		Log:    config.LogConfig{Level: "info"},
		Tatsumaki: config.TatsumakiConfig{
			APIKey:        "secret",
			GuildID:       fixtureGuildID,
			Endpoint:      upstreamURL + "/tatsu",
			CacheDuration: "1m",
		},
		UrbanDictionary: config.UrbanDictionaryConfig{
			Endpoint:      upstreamURL + "/urban",
			CacheDuration: "1m",
		},
	}
}

// fixture_server creates a server with the given config and returns the server, test server, and HTTP client
func fixture_server(cfg *config.Config) (*server.Server, *httptest.Server, *http.Client, error) {
	srv, err := server.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	testServer := httptest.NewServer(srv.Handler())
	client := &http.Client{Timeout: 10 * time.Second}

	return srv, testServer, client, nil
}

// fixture_command builds a chat command request as Nightbot sends it
func fixture_command(baseURL, path, query, provider, providerID, name string) (*http.Request, error) {
	requ, err := http.NewRequest(http.MethodGet, baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	requ.Header.Set(nightbot.HeaderResponseURL, "https://api.nightbot.tv/1/channel/send/token")
	requ.Header.Set(nightbot.HeaderUser, url.Values{
		"name":        {name},
		"displayName": {name},
		"provider":    {provider},
		"providerId":  {providerID},
		"userLevel":   {"everyone"},
	}.Encode())
	requ.Header.Set(nightbot.HeaderChannel, url.Values{
		"name":        {"dojo"},
		"displayName": {"Dojo"},
		"provider":    {provider},
		"providerId":  {"1"},
	}.Encode())
	return requ, nil
}

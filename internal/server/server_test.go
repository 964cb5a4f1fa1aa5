package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nb4mna/nb4mna/internal/config"
	"github.com/nb4mna/nb4mna/internal/logging"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureConfig(endpoint string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0, HTTPTimeout: "5s"},
		Log:    config.LogConfig{Level: "debug"},
		Tatsumaki: config.TatsumakiConfig{
			APIKey:        "secret",
			GuildID:       1,
			Endpoint:      endpoint,
			CacheDuration: "1m",
		},
		UrbanDictionary: config.UrbanDictionaryConfig{
			Endpoint:      endpoint,
			CacheDuration: "1m",
		},
	}
}

func fixtureServer(t *testing.T, endpoint string) *Server {
	t.Helper()
	s, err := New(fixtureConfig(endpoint))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(s *Server, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	s, err := New(fixtureConfig("http://127.0.0.1:1"))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "closing twice should be harmless")
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "timeout", mutate: func(c *config.Config) { c.Server.HTTPTimeout = "soon" }},
		{name: "tatsumaki duration", mutate: func(c *config.Config) { c.Tatsumaki.CacheDuration = "-1s" }},
		{name: "urbandictionary duration", mutate: func(c *config.Config) { c.UrbanDictionary.CacheDuration = "forever" }},
		{name: "phrases", mutate: func(c *config.Config) { c.Fight.Phrases = "/nonexistent/phrases.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fixtureConfig("http://127.0.0.1:1")
			tt.mutate(cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestHealthcheck(t *testing.T) {
	s := fixtureServer(t, "http://127.0.0.1:1")

	rec := get(s, "/healthcheck/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	s := fixtureServer(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/healthcheck/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	s := fixtureServer(t, "http://127.0.0.1:1")

	t.Run("generated", func(t *testing.T) {
		rec := get(s, "/healthcheck/", nil)
		id := rec.Header().Get(HeaderRequestID)
		assert.Len(t, id, 32)
		assert.NotContains(t, id, "-")
	})

	t.Run("reused", func(t *testing.T) {
		rec := get(s, "/healthcheck/", http.Header{HeaderRequestID: {"7c0e4b8e-63a8-4b5e-9d7c-1f3b2a6e5d40"}})
		assert.Equal(t, "7c0e4b8e63a84b5e9d7c1f3b2a6e5d40", rec.Header().Get(HeaderRequestID))
	})

	t.Run("invalid replaced", func(t *testing.T) {
		rec := get(s, "/healthcheck/", http.Header{HeaderRequestID: {"not-a-uuid"}})
		id := rec.Header().Get(HeaderRequestID)
		assert.Len(t, id, 32)
		assert.NotEqual(t, "not-a-uuid", id)
	})
}

func TestAccessLog(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	s := fixtureServer(t, "http://127.0.0.1:1")
	get(s, "/healthcheck/?probe=1", http.Header{HeaderRequestID: {"7c0e4b8e-63a8-4b5e-9d7c-1f3b2a6e5d40"}})

	var found *logrus.Entry
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, "GET /healthcheck/?probe=1") {
			found = e
		}
	}
	require.NotNil(t, found, "access log line not found")
	assert.Equal(t, logrus.InfoLevel, found.Level)
	assert.Equal(t, "7c0e4b8e", found.Data[logging.FieldCorrelationID])
	assert.Contains(t, found.Message, `HTTP/1.1" 200`)
}

func TestUrbanThroughCache(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/autocomplete":
			_, _ = w.Write([]byte(`["gopher"]`))
		case "/define":
			_, _ = w.Write([]byte(`{"list":[{"word":"gopher","definition":"a [rodent]","permalink":"http://gopher.urbanup.com/1"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	s := fixtureServer(t, upstream.URL)

	for i := 0; i < 3; i++ {
		rec := get(s, "/urban/?term=gopher", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "**gopher.** a rodent http://gopher.urbanup.com/1", rec.Body.String())
	}
	mu.Lock()
	assert.Equal(t, 1, calls["/autocomplete"])
	assert.Equal(t, 1, calls["/define"])
	mu.Unlock()

	rec := get(s, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nb4mna_cache_lookups_total{cache="urbandictionary",result="hit"}`)
	assert.Contains(t, rec.Body.String(), `nb4mna_cache_entries{cache="urbandictionary"} 2`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := fixtureServer(t, "http://127.0.0.1:1")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthcheck/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestRunClosesClientsWhenListenFails(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(level)

	cfg := fixtureConfig("http://127.0.0.1:1")
	cfg.Server.Port = -1
	s, err := New(cfg)
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)

	stopped := map[any]bool{}
	for _, e := range hook.AllEntries() {
		if e.Message == "Stopped periodic cache clearing" {
			stopped[e.Data["cache"]] = true
		}
	}
	assert.True(t, stopped["tatsumaki"], "tatsumaki sweeper still running")
	assert.True(t, stopped["urbandictionary"], "urbandictionary sweeper still running")
}

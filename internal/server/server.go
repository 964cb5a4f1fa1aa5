package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nb4mna/nb4mna/internal/api/tatsumaki"
	"github.com/nb4mna/nb4mna/internal/api/urbandictionary"
	"github.com/nb4mna/nb4mna/internal/config"
	"github.com/nb4mna/nb4mna/internal/fight"
	"github.com/nb4mna/nb4mna/internal/metrics"
	"github.com/nb4mna/nb4mna/internal/urban"
	"github.com/nb4mna/nb4mna/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// shutdownTimeout bounds how long in-flight requests may take once Run is cancelled.
const shutdownTimeout = 10 * time.Second

// Server represents the chat command server
type Server struct {
	config     *config.Config
	tatsumaki  *tatsumaki.Client
	dictionary *urbandictionary.Client
	registry   *prometheus.Registry
	handler    http.Handler
}

// New creates a new server and the API clients it depends on
func New(cfg *config.Config) (*Server, error) {
	timeout, err := cfg.GetHTTPTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid http timeout: %w", err)
	}

	tatsuDuration, err := cfg.GetTatsumakiCacheDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid tatsumaki cache duration: %w", err)
	}

	urbanDuration, err := cfg.GetUrbanDictionaryCacheDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid urbandictionary cache duration: %w", err)
	}

	phrases, err := fight.LoadPhrases(cfg.Fight.Phrases)
	if err != nil {
		return nil, fmt.Errorf("failed to load fight phrases: %w", err)
	}

	tatsu, err := tatsumaki.New(tatsumaki.Options{
		APIKey:        cfg.Tatsumaki.APIKey,
		GuildID:       cfg.Tatsumaki.GuildID,
		Endpoint:      cfg.Tatsumaki.Endpoint,
		CacheDuration: tatsuDuration,
		Timeout:       timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tatsumaki client: %w", err)
	}

	dictionary, err := urbandictionary.New(urbandictionary.Options{
		Endpoint:      cfg.UrbanDictionary.Endpoint,
		CacheDuration: urbanDuration,
		Timeout:       timeout,
	})
	if err != nil {
		_ = tatsu.Close()
		return nil, fmt.Errorf("failed to create urbandictionary client: %w", err)
	}

	registry := metrics.NewRegistry()
	metrics.RegisterCacheMetrics(registry)

	s := &Server{
		config:     cfg,
		tatsumaki:  tatsu,
		dictionary: dictionary,
		registry:   registry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthcheck/", handleHealthcheck)
	mux.Handle("GET /fight/", fight.NewHandler(tatsu, phrases, nil))
	mux.Handle("GET /urban/", urban.NewHandler(dictionary))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.handler = correlationID(accessLog(mux))

	return s, nil
}

// Handler returns the root HTTP handler (exported for testing)
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured port and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Server.Port))
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Server.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully and
// closes the API clients.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.Infof("Starting nb4mna on %s", ln.Addr())
	logrus.Infof("Tatsumaki guild: %d", s.config.Tatsumaki.GuildID)
	logrus.Infof("Tatsumaki cache duration: %s", s.config.Tatsumaki.CacheDuration)
	logrus.Infof("Urban Dictionary cache duration: %s", s.config.UrbanDictionary.CacheDuration)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close stops the API clients and their response caches.
func (s *Server) Close() error {
	return errors.Join(s.tatsumaki.Close(), s.dictionary.Close())
}

func handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

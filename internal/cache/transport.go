package cache

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nb4mna/nb4mna/internal/logging"
	"github.com/nb4mna/nb4mna/internal/metrics"

	"github.com/sirupsen/logrus"
)

const defaultName = "default"

// Option configures a Transport.
type Option func(*Transport)

// WithName sets the name used in log fields and metric labels.
func WithName(name string) Option {
	return func(t *Transport) {
		t.name = name
	}
}

// WithClock replaces time.Now for freshness checks and insertion timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		t.now = now
	}
}

// Transport is an http.RoundTripper that serves GET responses from memory
// for a fixed duration after they were fetched.
//
// Lookups never block: they read the current store snapshot without locking.
// Concurrent misses for the same key are not coalesced, each one reaches the
// underlying transport.
type Transport struct {
	next     http.RoundTripper
	duration time.Duration
	name     string
	now      func() time.Time
	store    *store

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New wraps next (http.DefaultTransport when nil) with a response cache and
// starts its sweeper. Call Close to stop the sweeper.
func New(next http.RoundTripper, duration time.Duration, opts ...Option) (*Transport, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("cache duration must be positive, got %s", duration)
	}
	if next == nil {
		next = http.DefaultTransport
	}

	t := &Transport{
		next:     next,
		duration: duration,
		name:     defaultName,
		now:      time.Now,
		store:    newStore(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.sweep(ctx)

	return t, nil
}

// Duration returns how long a stored response is served.
func (t *Transport) Duration() time.Duration {
	return t.duration
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := KeyOf(req)
	logger := logging.FromContext(req.Context()).WithFields(logrus.Fields{
		"component": "cache",
		"cache":     t.name,
	})

	if e, ok := t.store.get(key); ok && !e.expired(t.now(), t.duration) {
		resp, err := deserialize(e.payload, req)
		if err == nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			metrics.CacheLookups.WithLabelValues(t.name, metrics.ResultHit).Inc()
			logger.Debugf("%s: using cached response from %s", key, e.storedAt.Format(time.RFC3339))
			return resp, nil
		}
		logger.Errorf("%s: failed to read cached response: %v", key, err)
	}

	metrics.CacheLookups.WithLabelValues(t.name, metrics.ResultMiss).Inc()
	logger.Debugf("%s: cached response unavailable or expired", key)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if !isCacheable(req, resp) {
		metrics.CacheStores.WithLabelValues(t.name, metrics.OutcomeSkipped).Inc()
		logger.Debugf("%s: not caching, ineligible (%d)", key, resp.StatusCode)
		return resp, nil
	}

	payload, err := serialize(resp)
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	size := t.store.put(key, entry{payload: payload, storedAt: t.now()})
	metrics.CacheStores.WithLabelValues(t.name, metrics.OutcomeStored).Inc()
	metrics.CacheEntries.WithLabelValues(t.name).Set(float64(size))
	logger.Debugf("%s: saving response (%d)", key, resp.StatusCode)

	return resp, nil
}

// isCacheable reports whether a request/response pair may be stored.
// Redirects and client errors are cached, server errors are not.
func isCacheable(req *http.Request, resp *http.Response) bool {
	return requestMethod(req) == http.MethodGet && resp.StatusCode < http.StatusInternalServerError
}

// sweep removes expired entries once per cache duration until ctx is cancelled.
func (t *Transport) sweep(ctx context.Context) {
	defer close(t.done)

	logger := logrus.WithFields(logrus.Fields{
		"component": "cache",
		"cache":     t.name,
	})
	logger.Debugf("Started periodic cache clearing (every %s)", t.duration)

	ticker := time.NewTicker(t.duration)
	defer ticker.Stop()

	for {
		expired, size := t.store.removeExpired(t.now(), t.duration)
		for _, key := range expired {
			logger.Debugf("%s: expired, clearing from cache", key)
		}
		if len(expired) > 0 {
			metrics.CacheEvictions.WithLabelValues(t.name).Add(float64(len(expired)))
			metrics.CacheEntries.WithLabelValues(t.name).Set(float64(size))
		}

		select {
		case <-ctx.Done():
			logger.Debug("Stopped periodic cache clearing")
			return
		case <-ticker.C:
		}
	}
}

// Close stops the sweeper and waits for it to return. Stored entries stay
// readable, they are just no longer evicted.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done
	})
	return nil
}

// Keys returns a snapshot of the keys currently stored, fresh or not.
func (t *Transport) Keys() []Key {
	return t.store.keys()
}

// Len returns the number of entries currently stored, fresh or not.
func (t *Transport) Len() int {
	return t.store.len()
}

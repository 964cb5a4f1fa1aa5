// Handles caching of outbound HTTP responses
package cache

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Key identifies a cached response. Two requests share a key iff their
// method and full URL, query string included, are equal.
type Key struct {
	Method string
	URL    string
}

// KeyOf derives the cache key of a request.
func KeyOf(req *http.Request) Key {
	return Key{Method: requestMethod(req), URL: req.URL.String()}
}

// requestMethod follows net/http, where an empty method means GET.
func requestMethod(req *http.Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

func (k Key) String() string {
	return k.Method + " " + k.URL
}

// entry is never modified after creation, a newer response replaces it.
type entry struct {
	payload  []byte
	storedAt time.Time
}

func (e entry) expired(now time.Time, duration time.Duration) bool {
	return now.Sub(e.storedAt) > duration
}

// store publishes an immutable map through an atomic pointer: readers load it
// without locking, writers hold mu and swap in a modified copy.
type store struct {
	mu      sync.Mutex
	entries atomic.Pointer[map[Key]entry]
}

func newStore() *store {
	s := &store{}
	empty := make(map[Key]entry)
	s.entries.Store(&empty)
	return s
}

func (s *store) get(key Key) (entry, bool) {
	e, ok := (*s.entries.Load())[key]
	return e, ok
}

// put inserts or overwrites key and returns the new number of entries.
func (s *store) put(key Key, e entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.entries.Load()
	next := make(map[Key]entry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[key] = e
	s.entries.Store(&next)
	return len(next)
}

// removeExpired deletes every entry older than duration and returns the
// removed keys along with the number of entries left.
func (s *store) removeExpired(now time.Time, duration time.Duration) ([]Key, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.entries.Load()
	var expired []Key
	for k, v := range current {
		if v.expired(now, duration) {
			expired = append(expired, k)
		}
	}
	if len(expired) == 0 {
		return nil, len(current)
	}

	next := make(map[Key]entry, len(current)-len(expired))
	for k, v := range current {
		next[k] = v
	}
	for _, k := range expired {
		delete(next, k)
	}
	s.entries.Store(&next)
	return expired, len(next)
}

func (s *store) keys() []Key {
	current := *s.entries.Load()
	keys := make([]Key, 0, len(current))
	for k := range current {
		keys = append(keys, k)
	}
	return keys
}

func (s *store) len() int {
	return len(*s.entries.Load())
}

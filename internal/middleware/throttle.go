package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ThrottleStore hands out one token bucket per client key, with a janitor
// dropping buckets idle past the TTL.
type ThrottleStore struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewThrottleStore(rps float64, burst int) *ThrottleStore {
	return &ThrottleStore{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (s *ThrottleStore) get(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &throttleEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *ThrottleStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor prunes idle buckets until ctx is done.
func (s *ThrottleStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 2 * time.Minute
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// Throttle is a coarse per-client request rate limit across the whole API,
// separate from the domain cooldowns on purchases and free claims.
func Throttle(store *ThrottleStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetClientKey(c)

		if !store.get(key).Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

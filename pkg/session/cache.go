package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = 30 * time.Second

// CachedProvider keeps the last resolved session for a bounded time and
// collapses concurrent lookups into one call to the inner provider.
// Failures are never cached.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu        sync.Mutex
	cached    *Session
	fetchedAt time.Time
	valid     bool
	// generation guards against a lookup started before Invalidate
	// storing a stale result after it.
	generation uint64
}

var _ Provider = &CachedProvider{}

type CacheOption func(*CachedProvider)

func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedProvider) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCachedProvider(inner Provider, ttl time.Duration, opts ...CacheOption) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CachedProvider{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedProvider) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	now := c.now()
	if c.valid && now.Sub(c.fetchedAt) < c.ttl && (c.cached == nil || !c.cached.Expired(now)) {
		s := c.cached
		c.mu.Unlock()
		return s, nil
	}
	generation := c.generation
	c.mu.Unlock()

	v, err, _ := c.group.Do("session", func() (interface{}, error) {
		s, err := c.inner.GetSession(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == generation {
			c.cached = s
			c.fetchedAt = c.now()
			c.valid = true
		}
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(*Session)
	return s, nil
}

// Invalidate drops the cached session so the next lookup goes to the
// identity collaborator.
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.valid = false
	c.generation++
	c.group.Forget("session")
}

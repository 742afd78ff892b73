package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	mu      sync.Mutex
	calls   int32
	session *Session
	err     error
	block   chan struct{}
}

func (p *countingProvider) GetSession(ctx context.Context) (*Session, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, p.err
}

func (p *countingProvider) set(s *Session, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
	p.err = err
}

func ada() *Session {
	return &Session{User: User{
		ID:   "u1",
		Name: "Ada Lovelace",
		ProfileAttributes: map[string]string{
			AttributeSoftware: "ROS 2",
			AttributeHardware: " Jetson Orin ",
		},
	}}
}

func TestUserHelpers(t *testing.T) {
	u := ada().User
	assert.Equal(t, "Ada", u.FirstName())
	assert.Equal(t, "ROS 2", u.Software())
	assert.Equal(t, "Jetson Orin", u.Hardware())
	assert.Equal(t, "", u.Attribute("missing"))
	assert.Equal(t, "Me", User{}.FirstName())
	assert.Equal(t, "", User{}.Software())
}

func TestGateStartsPending(t *testing.T) {
	g := NewGate(&countingProvider{}, nil)
	state, s := g.State()
	assert.Equal(t, GatePending, state)
	assert.Nil(t, s)
	assert.False(t, g.Authorized())
}

func TestGateResolvesAuthenticatedAndAnonymous(t *testing.T) {
	p := &countingProvider{session: ada()}
	g := NewGate(p, nil)

	assert.Equal(t, GateAuthenticated, g.Resolve(context.Background()))
	assert.True(t, g.Authorized())
	assert.Equal(t, "u1", g.Session().User.ID)

	p.set(nil, nil)
	assert.Equal(t, GateAnonymous, g.Resolve(context.Background()))
	assert.False(t, g.Authorized())
	assert.Nil(t, g.Session())
}

func TestGateFailsClosed(t *testing.T) {
	p := &countingProvider{session: ada(), err: errors.New("identity server down")}
	g := NewGate(p, nil)

	assert.Equal(t, GateAnonymous, g.Resolve(context.Background()))
	assert.False(t, g.Authorized())
	assert.Nil(t, g.Session())
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls), "no retries")
}

func TestGateNotifiesOnResolve(t *testing.T) {
	g := NewGate(&countingProvider{session: ada()}, nil)
	g.Resolve(context.Background())
	select {
	case <-g.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestGateWatchReResolvesOnFeedMessage(t *testing.T) {
	feed := NewFeed()
	defer func() { _ = feed.Close() }()

	inner := &countingProvider{}
	cache := NewCachedProvider(inner, time.Hour)
	g := NewGate(cache, feed)
	require.Equal(t, GateAnonymous, g.Resolve(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Watch(ctx) }()

	inner.set(ada(), nil)
	// the subscription is registered asynchronously; keep publishing until
	// the gate has seen the change.
	require.Eventually(t, func() bool {
		_ = feed.Publish("sign-in")
		return g.Authorized()
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestCachedProviderReusesWithinTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	inner := &countingProvider{session: ada()}
	c := NewCachedProvider(inner, 30*time.Second, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		s, err := c.GetSession(context.Background())
		require.NoError(t, err)
		require.NotNil(t, s)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))

	now = now.Add(31 * time.Second)
	_, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestCachedProviderCachesAnonymousButNotErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("boom")}
	c := NewCachedProvider(inner, time.Hour)

	_, err := c.GetSession(context.Background())
	require.Error(t, err)
	_, err = c.GetSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))

	inner.set(nil, nil)
	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	_, _ = c.GetSession(context.Background())
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestCachedProviderInvalidate(t *testing.T) {
	inner := &countingProvider{session: ada()}
	c := NewCachedProvider(inner, time.Hour)

	_, err := c.GetSession(context.Background())
	require.NoError(t, err)
	c.Invalidate()
	inner.set(nil, nil)

	s, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}

func TestCachedProviderCollapsesConcurrentLookups(t *testing.T) {
	inner := &countingProvider{session: ada(), block: make(chan struct{})}
	c := NewCachedProvider(inner, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.GetSession(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, s)
		}()
	}
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&inner.calls) >= 1
	}, time.Second, 5*time.Millisecond)
	// give the other goroutines time to join the in-flight lookup
	time.Sleep(50 * time.Millisecond)
	close(inner.block)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.False(t, (&Session{}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
}

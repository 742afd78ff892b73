package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type GateState int

const (
	GatePending GateState = iota
	GateAnonymous
	GateAuthenticated
)

func (s GateState) String() string {
	switch s {
	case GatePending:
		return "pending"
	case GateAnonymous:
		return "anonymous"
	case GateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// invalidator is implemented by providers that cache, such as CachedProvider.
type invalidator interface {
	Invalidate()
}

// Gate resolves the session on behalf of one surface and exposes one of
// three states. It fails closed: any lookup error reads as anonymous.
type Gate struct {
	provider Provider
	feed     *Feed

	mu      sync.RWMutex
	state   GateState
	session *Session
	changes chan struct{}
}

func NewGate(provider Provider, feed *Feed) *Gate {
	return &Gate{
		provider: provider,
		feed:     feed,
		state:    GatePending,
		changes:  make(chan struct{}, 1),
	}
}

// Resolve reads the current session and updates the gate state.
func (g *Gate) Resolve(ctx context.Context) GateState {
	var s *Session
	var err error
	if g.provider != nil {
		s, err = g.provider.GetSession(ctx)
	}
	if err != nil {
		gerr := &GateError{Err: err}
		log.Warn().Err(gerr).Str("code", gerr.Code()).Msg("Session lookup failed, treating as anonymous")
		s = nil
	}

	g.mu.Lock()
	prev := g.state
	if s == nil {
		g.state = GateAnonymous
		g.session = nil
	} else {
		g.state = GateAuthenticated
		g.session = s
	}
	state := g.state
	g.mu.Unlock()

	if prev != state {
		log.Debug().Str("component", "gate").Stringer("from", prev).Stringer("to", state).Msg("Gate state changed")
	}
	g.notify()
	return state
}

// Watch re-resolves the session every time the feed reports a change. It
// blocks until ctx is done.
func (g *Gate) Watch(ctx context.Context) error {
	if g.feed == nil {
		<-ctx.Done()
		return nil
	}
	msgs, err := g.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			msg.Ack()
			log.Debug().Str("component", "gate").Str("reason", string(msg.Payload)).Msg("Session change reported")
			if inv, ok := g.provider.(invalidator); ok {
				inv.Invalidate()
			}
			g.Resolve(ctx)
		}
	}
}

func (g *Gate) State() (GateState, *Session) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.session
}

func (g *Gate) Session() *Session {
	_, s := g.State()
	return s
}

// Authorized is true only for a definite authenticated session.
func (g *Gate) Authorized() bool {
	state, _ := g.State()
	return state == GateAuthenticated
}

// Changes signals after every resolution. Notifications coalesce.
func (g *Gate) Changes() <-chan struct{} {
	return g.changes
}

func (g *Gate) notify() {
	select {
	case g.changes <- struct{}{}:
	default:
	}
}

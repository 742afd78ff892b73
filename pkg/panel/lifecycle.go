// Package panel implements the single-shot request lifecycle shared by the
// translation and personalized-insight panels.
//
// A Lifecycle moves idle → loading → success|error. Triggering while loading
// is dropped, every accepted trigger makes exactly one call, and failures
// surface as a fixed message while the raw error goes to the log.
package panel

import (
	"context"
	"sync"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/rs/zerolog/log"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of a panel. Result is only meaningful on success and
// Message only on error.
type State[R any] struct {
	Status   Status
	Result   R
	Message  string
	Expanded bool
}

// Operation performs the network call behind a panel.
type Operation[P any, R any] func(ctx context.Context, payload P) (R, error)

// Guard reports whether the panel may call the backend at all.
type Guard interface {
	Authorized() bool
}

type options struct {
	guard Guard
}

type Option func(*options)

// WithGuard drops triggers while the guard is not authorized.
func WithGuard(g Guard) Option {
	return func(o *options) {
		o.guard = g
	}
}

type Lifecycle[P any, R any] struct {
	name     string
	op       Operation[P, R]
	fallback string
	guard    Guard

	mu      sync.Mutex
	state   State[R]
	closed  bool
	changes chan struct{}
}

func New[P any, R any](name string, op Operation[P, R], fallback string, opts ...Option) *Lifecycle[P, R] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Lifecycle[P, R]{
		name:     name,
		op:       op,
		fallback: fallback,
		guard:    o.guard,
		changes:  make(chan struct{}, 1),
	}
}

func (l *Lifecycle[P, R]) Name() string { return l.name }

// Trigger runs the operation unless a call is already in flight. It blocks
// until the call completes and reports whether the trigger was accepted.
func (l *Lifecycle[P, R]) Trigger(ctx context.Context, payload P) bool {
	if l.guard != nil && !l.guard.Authorized() {
		log.Debug().Str("panel", l.name).Msg("Trigger dropped, no authenticated session")
		return false
	}

	l.mu.Lock()
	if l.closed || l.state.Status == StatusLoading {
		l.mu.Unlock()
		return false
	}
	var zero R
	l.state = State[R]{Status: StatusLoading, Result: zero, Expanded: true}
	l.notifyLocked()
	l.mu.Unlock()

	next := State[R]{Status: StatusError, Message: l.fallback}
	defer func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			log.Debug().Str("panel", l.name).Msg("Discarding result for closed panel")
			return
		}
		next.Expanded = l.state.Expanded
		l.state = next
		l.notifyLocked()
	}()

	result, err := l.op(ctx, payload)
	if err != nil {
		log.Warn().Err(err).
			Str("panel", l.name).
			Str("code", assistant.ErrorCode(err)).
			Msg("Panel request failed")
		return true
	}
	next = State[R]{Status: StatusSuccess, Result: result}
	return true
}

// Collapse hides the panel but keeps the last result.
func (l *Lifecycle[P, R]) Collapse() {
	l.setExpanded(false)
}

// Expand shows the panel again without fetching. It returns false when
// there is nothing to show yet and a Trigger is needed.
func (l *Lifecycle[P, R]) Expand() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.state.Status == StatusIdle {
		return false
	}
	if !l.state.Expanded {
		l.state.Expanded = true
		l.notifyLocked()
	}
	return true
}

func (l *Lifecycle[P, R]) setExpanded(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.state.Expanded == v {
		return
	}
	l.state.Expanded = v
	l.notifyLocked()
}

func (l *Lifecycle[P, R]) State() State[R] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Changes signals after every state change. Notifications coalesce and the
// channel is closed by Close.
func (l *Lifecycle[P, R]) Changes() <-chan struct{} {
	return l.changes
}

// Close tears the panel down. A call still in flight completes but its
// result is dropped.
func (l *Lifecycle[P, R]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.changes)
}

func (l *Lifecycle[P, R]) notifyLocked() {
	if l.closed {
		return
	}
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

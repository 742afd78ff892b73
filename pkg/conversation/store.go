// Package conversation keeps the ordered message history of one chat surface.
//
// The user's message is appended before the backend answers, the reply (or a
// fixed apology) is appended after, and a single pending flag keeps sends from
// interleaving. Closing the store releases the backend history.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	FallbackReply = "Sorry, I encountered an error. Please try again."

	DefaultTeardownTimeout = 10 * time.Second
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Sources   []assistant.SourceReference
}

// TimestampISO renders the timestamp as RFC 3339 in UTC.
func (m Message) TimestampISO() string {
	return m.Timestamp.UTC().Format(time.RFC3339)
}

// ChatClient is the part of the assistant backend a conversation needs.
type ChatClient interface {
	Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.ChatResponse, error)
	ClearHistory(ctx context.Context) error
}

type Guard interface {
	Authorized() bool
}

type Option func(*Store)

// WithGuard drops sends while the guard is not authorized.
func WithGuard(g Guard) Option {
	return func(s *Store) { s.guard = g }
}

// WithProfile attaches the returned profile to every chat request.
func WithProfile(f func() assistant.Profile) Option {
	return func(s *Store) { s.profile = f }
}

func WithTeardownTimeout(d time.Duration) Option {
	return func(s *Store) { s.teardownTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	client          ChatClient
	guard           Guard
	profile         func() assistant.Profile
	teardownTimeout time.Duration
	now             func() time.Time

	mu       sync.Mutex
	messages []Message
	input    string
	pending  bool
	closed   bool
	changes  chan struct{}
	released chan struct{}
}

func NewStore(client ChatClient, opts ...Option) *Store {
	s := &Store{
		client:          client,
		teardownTimeout: DefaultTeardownTimeout,
		now:             time.Now,
		changes:         make(chan struct{}, 1),
		released:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetInput replaces the input buffer.
func (s *Store) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

func (s *Store) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Submit sends the current input buffer.
func (s *Store) Submit(ctx context.Context) bool {
	return s.Send(ctx, s.Input())
}

// Send appends text as a user message and asks the backend for a reply. It
// blocks until the reply (or the fallback) is appended and reports whether
// the send was accepted. Blank text, a pending send, a closed store or an
// unauthorized guard all drop the call.
func (s *Store) Send(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if s.guard != nil && !s.guard.Authorized() {
		log.Debug().Msg("Chat send dropped, no authenticated session")
		return false
	}

	s.mu.Lock()
	if s.closed || s.pending {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages, s.newMessage(RoleUser, text, nil))
	s.input = ""
	s.pending = true
	s.notifyLocked()
	s.mu.Unlock()

	reply := s.newMessage(RoleAssistant, FallbackReply, nil)
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending = false
		if s.closed {
			log.Debug().Msg("Discarding chat reply for closed conversation")
			return
		}
		s.messages = append(s.messages, reply)
		s.notifyLocked()
	}()

	req := assistant.ChatRequest{Query: text}
	if s.profile != nil {
		p := s.profile().WithDefaults()
		req.Software, req.Hardware = p.Software, p.Hardware
	}

	resp, err := s.client.Chat(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("code", assistant.ErrorCode(err)).Msg("Chat request failed")
		return true
	}
	reply = s.newMessage(RoleAssistant, resp.Answer, resp.Sources)
	return true
}

func (s *Store) newMessage(role Role, content string, sources []assistant.SourceReference) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Sources:   sources,
	}
}

// Messages returns a copy of the history in conversation order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastReply returns the newest assistant message, if any.
func (s *Store) LastReply() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleAssistant {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Changes signals after every state change. Notifications coalesce and the
// channel is closed by Close.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Close tears the conversation down. The first call on a non-empty
// conversation clears the backend history in the background; failures are
// logged and never returned.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.changes)
	hasHistory := len(s.messages) > 0
	s.messages = nil
	s.input = ""
	s.mu.Unlock()

	if !hasHistory {
		close(s.released)
		return
	}
	go s.release()
}

func (s *Store) release() {
	defer close(s.released)
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("Clearing chat history panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.teardownTimeout)
	defer cancel()
	if err := s.client.ClearHistory(ctx); err != nil {
		log.Warn().Err(err).Str("code", assistant.ErrorCode(err)).Msg("Could not clear chat history")
		return
	}
	log.Debug().Msg("Chat history cleared")
}

// Wait blocks until the teardown started by Close has finished or ctx is
// done. Only processes about to exit need it.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.released:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for chat history teardown")
	}
}

func (s *Store) notifyLocked() {
	if s.closed {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

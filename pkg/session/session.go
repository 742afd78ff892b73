// Package session holds the read-only view of the signed-in learner and the
// gate every assistant surface sits behind.
//
// The identity collaborator owns sessions. This package only reads them:
//   - Provider resolves the current session (nil means anonymous).
//   - CachedProvider keeps a time-bounded reference shared by all surfaces.
//   - Feed announces that the session may have changed.
//   - Gate turns the above into pending/anonymous/authenticated.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Well-known profile attributes collected at sign-up.
const (
	AttributeSoftware = "software"
	AttributeHardware = "hardware"
)

type User struct {
	ID                string
	Name              string
	Email             string
	ProfileAttributes map[string]string
}

// Attribute returns a profile attribute or "" when it is unset.
func (u User) Attribute(name string) string {
	if u.ProfileAttributes == nil {
		return ""
	}
	return strings.TrimSpace(u.ProfileAttributes[name])
}

func (u User) Software() string { return u.Attribute(AttributeSoftware) }

func (u User) Hardware() string { return u.Attribute(AttributeHardware) }

// FirstName is the first word of the display name, or "Me".
func (u User) FirstName() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return "Me"
	}
	return fields[0]
}

type Session struct {
	User      User
	ExpiresAt time.Time
}

// Expired reports whether the session carries an expiry that has passed.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Provider resolves the current session. A nil session with a nil error
// means nobody is signed in.
type Provider interface {
	GetSession(ctx context.Context) (*Session, error)
}

type ProviderFunc func(ctx context.Context) (*Session, error)

func (f ProviderFunc) GetSession(ctx context.Context) (*Session, error) {
	return f(ctx)
}

// CodeGateUnresolved is logged when a session lookup fails.
const CodeGateUnresolved = "gate.unresolved"

// GateError wraps a failed session lookup. The gate treats it as anonymous.
type GateError struct {
	Err error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("session could not be resolved: %v", e.Err)
}

func (e *GateError) Unwrap() error { return e.Err }

func (e *GateError) Code() string { return CodeGateUnresolved }

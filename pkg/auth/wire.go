package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/lectern/pkg/session"
	"github.com/pkg/errors"
)

type sessionWire struct {
	Session *struct {
		ExpiresAt string `json:"expiresAt"`
	} `json:"session"`
	User map[string]json.RawMessage `json:"user"`
}

type authResponseWire struct {
	Token string                     `json:"token"`
	User  map[string]json.RawMessage `json:"user"`
}

func (w *sessionWire) toSession() (*session.Session, error) {
	user, err := parseUser(w.User)
	if err != nil {
		return nil, &ProtocolError{Op: "get-session", Err: err}
	}
	s := &session.Session{User: user}
	if w.Session != nil && w.Session.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, w.Session.ExpiresAt)
		if err != nil {
			return nil, &ProtocolError{Op: "get-session", Err: errors.Wrap(err, "parse expiresAt")}
		}
		s.ExpiresAt = t
	}
	return s, nil
}

// identity fields that are not profile attributes.
var reservedUserFields = map[string]bool{
	"id": true, "name": true, "email": true, "emailVerified": true,
	"image": true, "createdAt": true, "updatedAt": true,
}

// parseUser keeps id, name and email and turns every other scalar field the
// server added to the user into a profile attribute.
func parseUser(raw map[string]json.RawMessage) (session.User, error) {
	var u session.User
	id, ok := stringField(raw, "id")
	if !ok || id == "" {
		return u, errors.New("user without id")
	}
	u.ID = id
	u.Name, _ = stringField(raw, "name")
	u.Email, _ = stringField(raw, "email")

	for k, v := range raw {
		if reservedUserFields[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		switch x := val.(type) {
		case string:
			if u.ProfileAttributes == nil {
				u.ProfileAttributes = map[string]string{}
			}
			u.ProfileAttributes[k] = x
		case float64, bool:
			if u.ProfileAttributes == nil {
				u.ProfileAttributes = map[string]string{}
			}
			u.ProfileAttributes[k] = fmt.Sprint(x)
		}
	}
	return u, nil
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

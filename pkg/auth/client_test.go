package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/go-go-golems/lectern/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cookieName = "better-auth.session_token"

// identityServer is a tiny in-memory stand-in for a better-auth server.
type identityServer struct {
	*httptest.Server
	requests int32
	signUp   map[string]interface{}
}

func newIdentityServer(t *testing.T) *identityServer {
	s := &identityServer{}
	user := map[string]interface{}{
		"id": "u1", "name": "Ada Lovelace", "email": "ada@example.com",
		"emailVerified": false, "software": "ROS 2", "hardware": "Jetson Orin",
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pathSignIn, func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.NotEmpty(t, r.Header.Get("Origin"))
		if creds.Password != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"INVALID_EMAIL_OR_PASSWORD","message":"Invalid email or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "tok", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": "tok", "user": user})
	})
	mux.HandleFunc(pathSignUp, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&s.signUp))
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "tok", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": "tok", "user": user})
	})
	mux.HandleFunc(pathGetSession, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(cookieName); err != nil || c.Value == "" {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"session": map[string]interface{}{"expiresAt": "2099-01-01T00:00:00.000Z"},
			"user":    user,
		})
	})
	mux.HandleFunc(pathSignOut, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.requests, 1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func TestSignInSessionSignOut(t *testing.T) {
	srv := newIdentityServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	u, err := c.SignIn(ctx, Credentials{Email: " ada@example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)

	s, err = c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, "ROS 2", s.User.Software())
	assert.Equal(t, "Jetson Orin", s.User.Hardware())
	assert.Empty(t, s.User.Attribute("emailVerified"), "reserved fields are not attributes")
	assert.Equal(t, 2099, s.ExpiresAt.Year())

	require.NoError(t, c.SignOut(ctx))
	s, err = c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSignInRejected(t *testing.T) {
	srv := newIdentityServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SignIn(context.Background(), Credentials{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, CodeRejected, assistant.ErrorCode(err))
	assert.Equal(t, "Invalid email or password", UserMessage(err))
}

func TestSignUpMismatchMakesNoRequest(t *testing.T) {
	srv := newIdentityServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SignUp(context.Background(), SignUpForm{
		Name: "Ada", Email: "ada@example.com",
		Password: "correct-horse", ConfirmPassword: "correct-house",
	})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Passwords do not match", verr.Message)
	assert.Equal(t, CodeValidation, assistant.ErrorCode(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&srv.requests))
}

func TestSignUpSendsProfileAttributes(t *testing.T) {
	srv := newIdentityServer(t)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SignUp(context.Background(), SignUpForm{
		Name: " Ada Lovelace ", Email: "ada@example.com",
		Password: "correct-horse", ConfirmPassword: "correct-horse",
		Software: "ROS 2", Hardware: "Jetson Orin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", srv.signUp["name"])
	assert.Equal(t, "ROS 2", srv.signUp["software"])
	assert.Equal(t, "Jetson Orin", srv.signUp["hardware"])
	assert.NotContains(t, srv.signUp, "confirmPassword")
	assert.NotContains(t, srv.signUp, "ConfirmPassword")
}

func TestSignInPublishesOnFeed(t *testing.T) {
	srv := newIdentityServer(t)
	feed := session.NewFeed()
	defer func() { _ = feed.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	c, err := NewClient(srv.URL, WithFeed(feed))
	require.NoError(t, err)
	_, err = c.SignIn(ctx, Credentials{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	select {
	case m := <-msgs:
		assert.Equal(t, "sign-in", string(m.Payload))
		m.Ack()
	case <-time.After(time.Second):
		t.Fatal("no session change published")
	}
}

func TestGateFollowsSignIn(t *testing.T) {
	srv := newIdentityServer(t)
	feed := session.NewFeed()
	defer func() { _ = feed.Close() }()

	c, err := NewClient(srv.URL, WithFeed(feed))
	require.NoError(t, err)
	gate := session.NewGate(session.NewCachedProvider(c, time.Minute), feed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Equal(t, session.GateAnonymous, gate.Resolve(ctx))
	go func() { _ = gate.Watch(ctx) }()

	require.Eventually(t, func() bool {
		if gate.Authorized() {
			return true
		}
		_, _ = c.SignIn(ctx, Credentials{Email: "ada@example.com", Password: "correct-horse"})
		return false
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Ada", gate.Session().User.FirstName())
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	require.NoError(t, err)
	_, err = c.GetSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, CodeTransport, assistant.ErrorCode(err))
	assert.Equal(t, "Could not reach the sign-in service. Please try again.", UserMessage(err))
}

func TestMalformedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"name":"no id"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = c.GetSession(context.Background())
	assert.Equal(t, CodeProtocol, assistant.ErrorCode(err))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)
}

// Package auth talks to a better-auth compatible identity server.
//
// The client keeps its session cookie in memory only, announces every
// sign-in, sign-up and sign-out on a session.Feed, and implements
// session.Provider so gates can read the current learner.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/lectern/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 15 * time.Second

	pathGetSession = "/api/auth/get-session"
	pathSignIn     = "/api/auth/sign-in/email"
	pathSignUp     = "/api/auth/sign-up/email"
	pathSignOut    = "/api/auth/sign-out"

	maxBodyBytes = 1 << 20
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	feed       *session.Feed
}

var _ session.Provider = (*Client)(nil)

type Option func(*Client)

// WithFeed publishes session changes on feed.
func WithFeed(feed *session.Feed) Option {
	return func(c *Client) { c.feed = feed }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTransport replaces the round tripper, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return nil, errors.Errorf("auth: invalid identity server URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("auth: unsupported identity server URL scheme %q", u.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "auth: create cookie jar")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// GetSession returns the current session or nil when nobody is signed in.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	var out *sessionWire
	if err := c.do(ctx, "get-session", http.MethodGet, pathGetSession, nil, &out); err != nil {
		var terr *TransportError
		if errors.As(err, &terr) && terr.StatusCode == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	if out == nil || out.User == nil {
		return nil, nil
	}
	return out.toSession()
}

// SignIn validates the credentials locally and then signs in.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*session.User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	creds.Email = strings.TrimSpace(creds.Email)

	var out authResponseWire
	if err := c.do(ctx, "sign-in", http.MethodPost, pathSignIn, creds, &out); err != nil {
		return nil, err
	}
	return c.signedIn("sign-in", out)
}

// SignUp validates the form locally and then creates the account. The
// password confirmation never leaves the process.
func (c *Client) SignUp(ctx context.Context, form SignUpForm) (*session.User, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	var out authResponseWire
	if err := c.do(ctx, "sign-up", http.MethodPost, pathSignUp, form.wire(), &out); err != nil {
		return nil, err
	}
	return c.signedIn("sign-up", out)
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, "sign-out", http.MethodPost, pathSignOut, struct{}{}, nil); err != nil {
		return err
	}
	c.publish("sign-out")
	return nil
}

func (c *Client) signedIn(op string, out authResponseWire) (*session.User, error) {
	if out.User == nil {
		return nil, &ProtocolError{Op: op, Err: errors.New("missing user")}
	}
	user, err := parseUser(out.User)
	if err != nil {
		return nil, &ProtocolError{Op: op, Err: err}
	}
	c.publish(op)
	return &user, nil
}

func (c *Client) publish(reason string) {
	if err := c.feed.Publish(reason); err != nil {
		log.Warn().Err(err).Str("component", "auth").Msg("Could not publish session change")
	}
}

func (c *Client) do(ctx context.Context, op string, method string, path string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "%s: could not encode request", op)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// better-auth rejects state-changing requests without a trusted origin.
	req.Header.Set("Origin", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: errors.Wrap(err, "read response body")}
	}
	log.Debug().
		Str("component", "auth").
		Str("op", op).
		Int("status", resp.StatusCode).
		Msg("identity server responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(data),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}

func serverMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return ""
	}
	return strings.TrimSpace(e.Message)
}

// Package assistant is the RPC layer in front of the course assistant backend.
//
// Every operation is a single JSON request/response round trip. There is no
// retry and no backoff: a failed call returns a *TransportError or a
// *ProtocolError and the caller decides what to show.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout      = 60 * time.Second
	defaultMaxBodyBytes = 8 << 20
)

// Client talks to the chat/translate/personalize/history endpoints.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxBodyBytes int64
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBodyBytes = n
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("assistant: backend URL is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "assistant: invalid backend URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("assistant: unsupported backend URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Chat asks a question about the course material.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out chatWire
	if err := c.do(ctx, "chat", http.MethodPost, "/chat", req, &out); err != nil {
		return nil, err
	}
	if out.Answer == nil {
		return nil, &ProtocolError{Op: "chat", Err: errors.New("missing answer")}
	}
	return &ChatResponse{
		Answer:  *out.Answer,
		Sources: out.Sources,
		History: out.History,
	}, nil
}

// Translate translates page content into targetLanguage.
func (c *Client) Translate(ctx context.Context, content string, targetLanguage string) (*TranslateResponse, error) {
	in := translateRequestWire{Content: content, TargetLanguage: targetLanguage}
	var out translateWire
	if err := c.do(ctx, "translate", http.MethodPost, "/translate", in, &out); err != nil {
		return nil, err
	}
	if out.TranslatedContent == nil {
		return nil, &ProtocolError{Op: "translate", Err: errors.New("missing translated_content")}
	}
	return &TranslateResponse{TranslatedContent: *out.TranslatedContent}, nil
}

// Personalize asks for an insight relating a chapter to the learner's setup.
func (c *Client) Personalize(ctx context.Context, title string, content string, profile Profile) (*PersonalizeResponse, error) {
	profile = profile.WithDefaults()
	in := personalizeRequestWire{
		ChapterTitle:   title,
		ChapterContent: content,
		Software:       profile.Software,
		Hardware:       profile.Hardware,
	}
	var out personalizeWire
	if err := c.do(ctx, "personalize", http.MethodPost, "/personalize", in, &out); err != nil {
		return nil, err
	}
	if out.Insight == nil {
		return nil, &ProtocolError{Op: "personalize", Err: errors.New("missing insight")}
	}
	return &PersonalizeResponse{Insight: *out.Insight}, nil
}

// ClearHistory drops the backend-side conversation history. Only the status
// code matters.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, "clear-history", http.MethodDelete, "/history", nil, nil)
}

// History returns the backend-side conversation history.
func (c *Client) History(ctx context.Context) (*HistoryResponse, error) {
	var out historyWire
	if err := c.do(ctx, "history", http.MethodGet, "/history", nil, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		return nil, &ProtocolError{Op: "history", Err: errors.New("missing conversation_history")}
	}
	return &HistoryResponse{History: *out.History}, nil
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
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	logger := log.With().
		Str("component", "assistant").
		Str("op", op).
		Str("request_id", requestID).
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: errors.Wrap(err, "read response body")}
	}
	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(data)).
		Msg("backend responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("%s", snippet(data)),
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

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "empty body"
	}
	const limit = 256
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/go-go-golems/lectern/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionCookie = "better-auth.session_token"

func newIdentityServer(t *testing.T) *httptest.Server {
	user := map[string]interface{}{"id": "u1", "name": "Ada Lovelace", "email": "ada@example.com", "software": "ROS 2"}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/sign-in/email", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "tok", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"token": "tok", "user": user})
	})
	mux.HandleFunc("/api/auth/get-session", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(sessionCookie); err != nil {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"user": user})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type backend struct {
	*httptest.Server
	mu       sync.Mutex
	queries  []string
	software []string
	cleared  int
}

func newBackend(t *testing.T) *backend {
	b := &backend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req assistant.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.queries = append(b.queries, req.Query)
		b.software = append(b.software, req.Software)
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"answer":"ROS 2 is middleware.","sources":[{"source":"docs/ros2.md","filename":"ros2.md"}]}`))
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			b.mu.Lock()
			b.cleared++
			b.mu.Unlock()
			_, _ = w.Write([]byte(`{"message":"cleared"}`))
			return
		}
		_, _ = w.Write([]byte(`{"conversation_history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`))
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *backend) snapshot() ([]string, []string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...), append([]string(nil), b.software...), b.cleared
}

// run executes the root command with an empty config file and no dotenv.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWith(t, &Runtime{}, args...)
}

func runWith(t *testing.T, rt *Runtime, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, nil, 0o600))

	root := newRootCommand(rt)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfg, "--env-file", filepath.Join(dir, ".env")}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	root := NewRootCommand()
	require.NoError(t, root.ParseFlags([]string{"--timeout=5s", "--email=ada@example.com", "--personalize-chat"}))

	s := config.Defaults()
	s.TargetLanguage = "French"
	require.NoError(t, applyFlags(root, &s))

	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.True(t, s.PersonalizeChat)
	assert.Equal(t, "French", s.TargetLanguage, "unset flags keep loaded values")
}

func TestAskSignsInWithEnvCredentials(t *testing.T) {
	idp := newIdentityServer(t)
	be := newBackend(t)
	t.Setenv("LECTERN_EMAIL", "ada@example.com")
	t.Setenv("LECTERN_PASSWORD", "correct-horse")

	out, err := run(t, "--auth-url", idp.URL, "--backend-url", be.URL, "--personalize-chat",
		"ask", "What", "is", "ROS", "2?")
	require.NoError(t, err)
	assert.Contains(t, out, "middleware")
	assert.Contains(t, out, "ros2.md")

	queries, software, cleared := be.snapshot()
	assert.Equal(t, []string{"What is ROS 2?"}, queries)
	assert.Equal(t, []string{"ROS 2"}, software)
	assert.Equal(t, 1, cleared, "the conversation is cleared on exit")
}

func TestAskRejectedCredentialsMakeNoBackendCall(t *testing.T) {
	idp := newIdentityServer(t)
	be := newBackend(t)
	t.Setenv("LECTERN_EMAIL", "ada@example.com")
	t.Setenv("LECTERN_PASSWORD", "wrong")

	_, err := run(t, "--auth-url", idp.URL, "--backend-url", be.URL, "ask", "hello")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())

	queries, _, cleared := be.snapshot()
	assert.Empty(t, queries)
	assert.Zero(t, cleared)
}

func TestFailedCommandReleasesRuntime(t *testing.T) {
	idp := newIdentityServer(t)
	be := newBackend(t)
	t.Setenv("LECTERN_EMAIL", "ada@example.com")
	t.Setenv("LECTERN_PASSWORD", "wrong")

	rt := &Runtime{}
	_, err := runWith(t, rt, "--auth-url", idp.URL, "--backend-url", be.URL, "ask", "hello")
	require.Error(t, err)

	require.NotNil(t, rt.Feed)
	assert.Error(t, rt.Feed.Publish("after-exit"), "the feed is closed even though the command failed")
	assert.Nil(t, rt.logCloser)
}

func TestAskWithoutSessionOffTerminal(t *testing.T) {
	if stdinIsTerminal() {
		t.Skip("stdin is a terminal")
	}
	idp := newIdentityServer(t)
	be := newBackend(t)
	t.Setenv("LECTERN_EMAIL", "")
	t.Setenv("LECTERN_PASSWORD", "")

	_, err := run(t, "--auth-url", idp.URL, "--backend-url", be.URL, "ask", "hello")
	assert.ErrorIs(t, err, errNotSignedIn)
	queries, _, _ := be.snapshot()
	assert.Empty(t, queries)
}

func TestHistoryShow(t *testing.T) {
	be := newBackend(t)
	out, err := run(t, "--backend-url", be.URL, "history", "show")
	require.NoError(t, err)
	assert.Equal(t, "user: hi\nassistant: hello\n", out)

	out, err = run(t, "--backend-url", be.URL, "history", "show", "-o", "json")
	require.NoError(t, err)
	var entries []assistant.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 2)

	_, err = run(t, "--backend-url", be.URL, "history", "show", "-o", "csv")
	assert.Error(t, err)
}

func TestHistoryClear(t *testing.T) {
	be := newBackend(t)
	out, err := run(t, "--backend-url", be.URL, "history", "clear")
	require.NoError(t, err)
	assert.Equal(t, "History cleared.\n", out)
	_, _, cleared := be.snapshot()
	assert.Equal(t, 1, cleared)
}

func TestConfigShowHidesPassword(t *testing.T) {
	t.Setenv("LECTERN_PASSWORD", "correct-horse")
	out, err := run(t, "--target-language", "Arabic", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "target-language: Arabic")
	assert.NotContains(t, out, "correct-horse")
}

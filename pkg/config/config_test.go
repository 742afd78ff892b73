package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/lectern/pkg/pagecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.Equal(t, "http://localhost:8000", s.BackendURL)
	assert.Equal(t, "Urdu", s.TargetLanguage)
	assert.Equal(t, pagecontext.DefaultTitle, s.PageDefaults().Title)
	assert.NoError(t, s.Validate())
}

func TestLoadLayering(t *testing.T) {
	cfg := writeFile(t, "config.yaml", `
backend-url: https://assistant.example.com
target-language: French
timeout: 5s
personalize-chat: true
`)
	dotenv := writeFile(t, ".env", "LECTERN_TARGET_LANGUAGE=Spanish\nLECTERN_AUTH_URL=https://auth.example.com\n")

	s, err := Load(LoadOptions{
		ConfigFile: cfg,
		EnvFile:    dotenv,
		LookupEnv:  envMap(map[string]string{"LECTERN_TARGET_LANGUAGE": "German", "LECTERN_SESSION_TTL": "1m"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://assistant.example.com", s.BackendURL, "from file")
	assert.Equal(t, "https://auth.example.com", s.AuthURL, "from dotenv")
	assert.Equal(t, "German", s.TargetLanguage, "process env beats dotenv and file")
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, time.Minute, s.SessionTTL)
	assert.True(t, s.PersonalizeChat)
	assert.Equal(t, "warn", s.LogLevel, "untouched default")
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(LoadOptions{ConfigFile: filepath.Join(dir, "nope.yaml"), LookupEnv: noEnv})
	assert.Error(t, err, "an explicit config file must exist")

	s, err := Load(LoadOptions{EnvFile: filepath.Join(dir, ".env"), LookupEnv: noEnv})
	require.NoError(t, err, "a missing dotenv file is ignored")
	assert.Equal(t, Defaults().BackendURL, s.BackendURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFile: writeFile(t, "bad.yaml", "timeout: [1, 2]"), LookupEnv: noEnv})
	assert.Error(t, err)

	_, err = Load(LoadOptions{LookupEnv: envMap(map[string]string{"LECTERN_TIMEOUT": "soon"})})
	assert.Error(t, err)

	_, err = Load(LoadOptions{LookupEnv: envMap(map[string]string{"LECTERN_PERSONALIZE_CHAT": "maybe"})})
	assert.Error(t, err)
}

func TestPasswordNeverSerialized(t *testing.T) {
	s, err := Load(LoadOptions{LookupEnv: envMap(map[string]string{
		"LECTERN_EMAIL":    "ada@example.com",
		"LECTERN_PASSWORD": "correct-horse",
	})})
	require.NoError(t, err)
	assert.Equal(t, "correct-horse", s.Password)

	out, err := s.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "email: ada@example.com")
	assert.NotContains(t, out, "correct-horse")
}

func TestValidate(t *testing.T) {
	s := Defaults()
	s.LogFormat = "xml"
	assert.Error(t, s.Validate())

	s = Defaults()
	s.Timeout = 0
	assert.Error(t, s.Validate())

	s = Defaults()
	s.BackendURL = " "
	assert.Error(t, s.Validate())
}

func TestYAMLRoundTrip(t *testing.T) {
	s := Defaults()
	s.TargetLanguage = "Arabic"
	out, err := s.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "target-language: Arabic")
	assert.Contains(t, out, "timeout: 1m0s")

	loaded, err := Load(LoadOptions{ConfigFile: writeFile(t, "config.yaml", out), LookupEnv: noEnv})
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

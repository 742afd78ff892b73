// Package config loads lectern settings.
//
// Sources are applied in order, later ones winning: built-in defaults, the
// YAML config file, a .env file, LECTERN_* environment variables and finally
// command line flags (applied by the caller).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/lectern/pkg/pagecontext"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "~/.lectern/config.yaml"
	DefaultEnvFile    = ".env"
	EnvPrefix         = "LECTERN_"
)

type Settings struct {
	BackendURL      string        `yaml:"backend-url"`
	AuthURL         string        `yaml:"auth-url"`
	TargetLanguage  string        `yaml:"target-language"`
	Timeout         time.Duration `yaml:"timeout"`
	SessionTTL      time.Duration `yaml:"session-ttl"`
	DefaultTitle    string        `yaml:"default-title"`
	DefaultContent  string        `yaml:"default-content"`
	PersonalizeChat bool          `yaml:"personalize-chat"`

	// Email pre-fills sign-in prompts. Password is only ever read from the
	// environment and is never written back out.
	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"-"`

	LogLevel  string `yaml:"log-level"`
	LogFormat string `yaml:"log-format"`
	LogFile   string `yaml:"log-file,omitempty"`
}

func Defaults() Settings {
	return Settings{
		BackendURL:     "http://localhost:8000",
		AuthURL:        "http://localhost:3000",
		TargetLanguage: "Urdu",
		Timeout:        60 * time.Second,
		SessionTTL:     30 * time.Second,
		DefaultTitle:   pagecontext.DefaultTitle,
		DefaultContent: pagecontext.DefaultOverview,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// PageDefaults is what page extraction falls back to.
func (s Settings) PageDefaults() pagecontext.Defaults {
	return pagecontext.Defaults{Title: s.DefaultTitle, Content: s.DefaultContent}
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.BackendURL) == "" {
		return errors.New("backend-url must not be empty")
	}
	if strings.TrimSpace(s.AuthURL) == "" {
		return errors.New("auth-url must not be empty")
	}
	if s.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.SessionTTL < 0 {
		return errors.Errorf("session-ttl must not be negative, got %s", s.SessionTTL)
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("log-format must be text or json, got %q", s.LogFormat)
	}
	return nil
}

// YAML renders the settings the way the config file stores them.
func (s Settings) YAML() (string, error) {
	b, err := yaml.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "encode settings")
	}
	return string(b), nil
}

type LoadOptions struct {
	// ConfigFile is read when set; a missing file is an error. When empty,
	// DefaultConfigPath is read if it exists.
	ConfigFile string
	// EnvFile is an optional dotenv file; a missing file is ignored.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func Load(opts LoadOptions) (Settings, error) {
	s := Defaults()

	path, explicit := opts.ConfigFile, opts.ConfigFile != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if err := s.mergeFile(path, explicit); err != nil {
		return s, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		m, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, os.ErrNotExist):
		default:
			return s, errors.Wrapf(err, "read %s", opts.EnvFile)
		}
	}
	// the process environment wins over the dotenv file
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := s.mergeEnv(env); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) mergeFile(path string, required bool) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return errors.Wrapf(err, "expand config path %s", path)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "read config file %s", expanded)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return errors.Wrapf(err, "parse config file %s", expanded)
	}
	return nil
}

func (s *Settings) mergeEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"BACKEND_URL":     &s.BackendURL,
		"AUTH_URL":        &s.AuthURL,
		"TARGET_LANGUAGE": &s.TargetLanguage,
		"DEFAULT_TITLE":   &s.DefaultTitle,
		"DEFAULT_CONTENT": &s.DefaultContent,
		"LOG_LEVEL":       &s.LogLevel,
		"LOG_FORMAT":      &s.LogFormat,
		"LOG_FILE":        &s.LogFile,
		"EMAIL":           &s.Email,
		"PASSWORD":        &s.Password,
	}
	for key, dst := range strs {
		if v, ok := env(EnvPrefix + key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":     &s.Timeout,
		"SESSION_TTL": &s.SessionTTL,
	}
	for key, dst := range durations {
		v, ok := env(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s%s", EnvPrefix, key)
		}
		*dst = d
	}

	if v, ok := env(EnvPrefix + "PERSONALIZE_CHAT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "parse %sPERSONALIZE_CHAT", EnvPrefix)
		}
		s.PersonalizeChat = b
	}
	return nil
}

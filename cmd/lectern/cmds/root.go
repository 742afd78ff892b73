package cmds

import (
	"io"
	"os"
	"time"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/go-go-golems/lectern/pkg/config"
	"github.com/go-go-golems/lectern/pkg/logging"
	"github.com/go-go-golems/lectern/pkg/session"
	"github.com/go-go-golems/lectern/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// annotationTUI marks commands that take over the terminal.
const annotationTUI = "lectern/tui"

// Runtime is what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type Runtime struct {
	Settings  config.Settings
	Feed      *session.Feed
	Auth      *auth.Client
	Assistant *assistant.Client
	Sessions  *session.CachedProvider

	logCloser io.Closer
}

// NewGate returns a gate for one surface. Gates share the session cache.
func (rt *Runtime) NewGate() *session.Gate {
	return session.NewGate(rt.Sessions, rt.Feed)
}

// Markdown returns a renderer sized to the terminal.
func (rt *Runtime) Markdown() *ui.Markdown {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	return ui.NewMarkdown(width)
}

// close releases the feed and the log file. It is safe to call more than
// once.
func (rt *Runtime) close() {
	if rt.Feed != nil {
		_ = rt.Feed.Close()
	}
	if rt.logCloser != nil {
		_ = rt.logCloser.Close()
		rt.logCloser = nil
	}
}

type rootFlags struct {
	configFile string
	envFile    string
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&Runtime{})
}

func newRootCommand(rt *Runtime) *cobra.Command {
	flags := &rootFlags{}
	defaults := config.Defaults()

	root := &cobra.Command{
		Use:           "lectern",
		Short:         "lectern is a terminal companion for the Physical AI course",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.setup(cmd, flags); err != nil {
				rt.close()
				return err
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Config file (default "+config.DefaultConfigPath+")")
	pf.StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "dotenv file with LECTERN_* variables")
	pf.String("backend-url", defaults.BackendURL, "Assistant backend URL")
	pf.String("auth-url", defaults.AuthURL, "Identity server URL")
	pf.String("target-language", defaults.TargetLanguage, "Language for translations")
	pf.Duration("timeout", defaults.Timeout, "Timeout for a single backend request")
	pf.Duration("session-ttl", defaults.SessionTTL, "How long a resolved session is reused")
	pf.Bool("personalize-chat", false, "Send your software and hardware profile with chat questions")
	pf.String("email", "", "Email used to sign in")
	pf.String("log-level", defaults.LogLevel, "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", defaults.LogFormat, "Log format (text or json)")
	pf.String("log-file", "", "Write logs to this file")

	root.AddCommand(
		newChatCommand(rt),
		newAskCommand(rt),
		newReadCommand(rt),
		newTranslateCommand(rt),
		newPersonalizeCommand(rt),
		newHistoryCommand(rt),
		newLoginCommand(rt),
		newSignupCommand(rt),
		newConfigCommand(rt),
	)
	closeAfterRun(root, rt)
	return root
}

// closeAfterRun wraps every RunE so the runtime is released on all exit
// paths. PersistentPostRun is skipped when RunE fails.
func closeAfterRun(cmd *cobra.Command, rt *Runtime) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			defer rt.close()
			return run(cmd, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, rt)
	}
}

func (rt *Runtime) setup(cmd *cobra.Command, flags *rootFlags) error {
	settings, err := config.Load(config.LoadOptions{
		ConfigFile: flags.configFile,
		EnvFile:    flags.envFile,
	})
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &settings); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}
	rt.Settings = settings

	quiet := cmd.Annotations[annotationTUI] == "true" && isatty.IsTerminal(os.Stdout.Fd())
	rt.logCloser, err = logging.InitLogger(logging.Settings{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		File:   settings.LogFile,
		Quiet:  quiet,
	})
	if err != nil {
		return err
	}

	rt.Feed = session.NewFeed()
	rt.Auth, err = auth.NewClient(settings.AuthURL,
		auth.WithFeed(rt.Feed),
		auth.WithTimeout(settings.Timeout),
	)
	if err != nil {
		return err
	}
	rt.Assistant, err = assistant.NewClient(settings.BackendURL, assistant.WithTimeout(settings.Timeout))
	if err != nil {
		return err
	}
	rt.Sessions = session.NewCachedProvider(rt.Auth, settings.SessionTTL)
	return nil
}

// applyFlags overrides settings with the flags the user actually passed.
func applyFlags(cmd *cobra.Command, s *config.Settings) error {
	fs := cmd.Flags()
	strs := map[string]*string{
		"backend-url":     &s.BackendURL,
		"auth-url":        &s.AuthURL,
		"target-language": &s.TargetLanguage,
		"email":           &s.Email,
		"log-level":       &s.LogLevel,
		"log-format":      &s.LogFormat,
		"log-file":        &s.LogFile,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	for name, dst := range map[string]*time.Duration{
		"timeout":     &s.Timeout,
		"session-ttl": &s.SessionTTL,
	} {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if fs.Changed("personalize-chat") {
		v, err := fs.GetBool("personalize-chat")
		if err != nil {
			return err
		}
		s.PersonalizeChat = v
	}
	return nil
}

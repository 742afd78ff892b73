package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/go-go-golems/lectern/pkg/session"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"
)

var errNotSignedIn = errors.New("please sign in to use the course assistant")

func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd())
}

// prompter asks for input on stdin, writing prompts to stderr so stdout
// stays clean for answers.
func prompter() *input.UI {
	return &input.UI{
		Writer: os.Stderr,
		Reader: os.Stdin,
	}
}

func askCredentials(ui *input.UI, email string) (auth.Credentials, error) {
	email, err := ui.Ask("Email", &input.Options{
		Default:   email,
		Required:  true,
		Loop:      true,
		HideOrder: true,
	})
	if err != nil {
		return auth.Credentials{}, errors.Wrap(err, "read email")
	}
	password, err := ui.Ask("Password", &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      true,
		HideOrder: true,
	})
	if err != nil {
		return auth.Credentials{}, errors.Wrap(err, "read password")
	}
	return auth.Credentials{Email: strings.TrimSpace(email), Password: password}, nil
}

// signIn signs in and makes the shared session cache forget the anonymous
// answer it may hold.
func (rt *Runtime) signIn(ctx context.Context, creds auth.Credentials) error {
	if _, err := rt.Auth.SignIn(ctx, creds); err != nil {
		log.Debug().Err(err).Str("code", assistant.ErrorCode(err)).Msg("Sign-in failed")
		return err
	}
	rt.Sessions.Invalidate()
	return nil
}

// requireSession resolves the gate and, when anonymous, signs in with
// configured credentials or by prompting. Without a terminal to prompt on
// it gives up with errNotSignedIn and no backend call is made.
func (rt *Runtime) requireSession(ctx context.Context, gate *session.Gate, w io.Writer) error {
	if gate.Resolve(ctx) == session.GateAuthenticated {
		return nil
	}

	if rt.Settings.Email != "" && rt.Settings.Password != "" {
		err := rt.signIn(ctx, auth.Credentials{Email: rt.Settings.Email, Password: rt.Settings.Password})
		if err != nil {
			return errors.New(auth.UserMessage(err))
		}
		if gate.Resolve(ctx) == session.GateAuthenticated {
			return nil
		}
		return errNotSignedIn
	}

	if !stdinIsTerminal() {
		return errNotSignedIn
	}

	_, _ = fmt.Fprintln(w, "Please sign in to use the course assistant.")
	ui := prompter()
	for attempt := 0; attempt < 3; attempt++ {
		creds, err := askCredentials(ui, rt.Settings.Email)
		if err != nil {
			return err
		}
		if err := rt.signIn(ctx, creds); err != nil {
			_, _ = fmt.Fprintln(w, auth.UserMessage(err))
			continue
		}
		if gate.Resolve(ctx) == session.GateAuthenticated {
			return nil
		}
	}
	return errNotSignedIn
}

package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/pkg/errors"
)

// SignInFunc signs the learner in. Success is observed through the gate.
type SignInFunc func(ctx context.Context, creds auth.Credentials) error

// signInValues lives on the heap so the form's bound pointers survive model
// copies.
type signInValues struct {
	Email    string
	Password string
}

func newSignInForm(v *signInValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&v.Email).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("email is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&v.Password),
		),
	).WithShowHelp(true)
}

func signInCmd(ctx context.Context, signIn SignInFunc, v signInValues) tea.Cmd {
	return func() tea.Msg {
		err := signIn(ctx, auth.Credentials{Email: v.Email, Password: v.Password})
		return signInDoneMsg{err: err}
	}
}

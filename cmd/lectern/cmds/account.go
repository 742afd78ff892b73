package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
)

func newLoginCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check your credentials and show the signed-in profile",
		Long: "Signs in with LECTERN_EMAIL/LECTERN_PASSWORD or by prompting, then " +
			"prints the profile the assistant will personalize for. Sessions live " +
			"only as long as one lectern process.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gate := rt.NewGate()
			if err := rt.requireSession(ctx, gate, cmd.ErrOrStderr()); err != nil {
				return err
			}
			s := gate.Session()
			if s == nil {
				return errNotSignedIn
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Signed in as %s <%s>\n", s.User.Name, s.User.Email)
			_, _ = fmt.Fprintf(w, "Software: %s\n", orNone(s.User.Software()))
			_, _ = fmt.Fprintf(w, "Hardware: %s\n", orNone(s.User.Hardware()))
			if !s.ExpiresAt.IsZero() {
				_, _ = fmt.Fprintf(w, "Session expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newSignupCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account with your software and hardware background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdinIsTerminal() {
				return errors.New("signup needs an interactive terminal")
			}
			form, err := askSignUp(prompter(), rt.Settings.Email)
			if err != nil {
				return err
			}
			user, err := rt.Auth.SignUp(cmd.Context(), form)
			if err != nil {
				return errors.New(auth.UserMessage(err))
			}
			rt.Sessions.Invalidate()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! Your account is ready.\n", user.FirstName())
			return nil
		},
	}
}

func askSignUp(ui *input.UI, email string) (auth.SignUpForm, error) {
	var form auth.SignUpForm
	ask := func(dst *string, query string, opts *input.Options) error {
		v, err := ui.Ask(query, opts)
		if err != nil {
			return errors.Wrapf(err, "read %s", strings.ToLower(query))
		}
		*dst = v
		return nil
	}

	steps := []struct {
		dst   *string
		query string
		opts  *input.Options
	}{
		{&form.Name, "Name", &input.Options{Required: true, Loop: true, HideOrder: true}},
		{&form.Email, "Email", &input.Options{Default: email, Required: true, Loop: true, HideOrder: true,
			ValidateFunc: func(s string) error { return auth.Credentials{Email: s, Password: "-"}.Validate() }}},
		{&form.Password, "Password", &input.Options{Required: true, Loop: true, Mask: true, HideOrder: true}},
		{&form.ConfirmPassword, "Confirm password", &input.Options{Required: true, Loop: true, Mask: true, HideOrder: true}},
		{&form.Software, "Software background (e.g. Python, ROS 2)", &input.Options{HideOrder: true}},
		{&form.Hardware, "Hardware (e.g. Jetson Orin, RTX 4090)", &input.Options{HideOrder: true}},
	}
	for _, step := range steps {
		if err := ask(step.dst, step.query, step.opts); err != nil {
			return form, err
		}
	}
	return form, form.Validate()
}

func orNone(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

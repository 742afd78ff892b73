package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/lectern/pkg/panel"
	"github.com/go-go-golems/lectern/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTranslateCommand(rt *Runtime) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "translate [FILE]",
		Short: "Translate a course page",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if lang == "" {
				lang = rt.Settings.TargetLanguage
			}
			gate := rt.NewGate()
			if err := rt.requireSession(ctx, gate, cmd.ErrOrStderr()); err != nil {
				return err
			}

			p := panel.NewTranslationPanel(rt.Assistant, panel.WithGuard(gate))
			defer p.Close()
			req := panel.TranslationRequest{Page: rt.extractor(args).Extract(), TargetLanguage: lang}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), panel.TranslateLabel(lang))
			return printPanel(ctx, cmd.OutOrStdout(), rt.Markdown(), p, req)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Target language (defaults to target-language)")
	return cmd
}

func newPersonalizeCommand(rt *Runtime) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "personalize [FILE]",
		Short: "Get insights on a course page tailored to your setup",
		Long: "Asks the assistant how a page applies to the software and hardware " +
			"in your profile. Without FILE the whole course is personalized.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gate := rt.NewGate()
			if err := rt.requireSession(ctx, gate, cmd.ErrOrStderr()); err != nil {
				return err
			}

			page := rt.extractor(args).Extract()
			if title != "" {
				page.Title = title
			}
			profile := panel.ProfileOf(gate.Session())

			p := panel.NewInsightPanel(rt.Assistant, panel.WithGuard(gate))
			defer p.Close()
			w := cmd.ErrOrStderr()
			_, _ = fmt.Fprintln(w, panel.PersonalizeLabel(page.Title, gate.Session()))
			_, _ = fmt.Fprintln(w, panel.InsightMeta(profile))
			return printPanel(ctx, cmd.OutOrStdout(), rt.Markdown(), p, panel.InsightRequest{Page: page, Profile: profile})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Override the page title")
	return cmd
}

// printPanel triggers a panel once and prints its result. A failed call
// prints the panel's fixed message and exits non-zero.
func printPanel[P any](ctx context.Context, w io.Writer, md *ui.Markdown, p *panel.Lifecycle[P, string], payload P) error {
	if !p.Trigger(ctx, payload) {
		return errNotSignedIn
	}
	st := p.State()
	if st.Status != panel.StatusSuccess {
		return errors.New(st.Message)
	}
	_, _ = fmt.Fprintln(w, md.Render(st.Result))
	return nil
}

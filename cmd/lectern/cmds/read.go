package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/go-go-golems/lectern/pkg/pagecontext"
	"github.com/go-go-golems/lectern/pkg/panel"
	"github.com/go-go-golems/lectern/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newReadCommand(rt *Runtime) *cobra.Command {
	var (
		lang   string
		noChat bool
	)
	cmd := &cobra.Command{
		Use:   "read [FILE]",
		Short: "Read a course page with translation, insights and chat",
		Long: "Opens a course page (Markdown, MDX or HTML) with the translate and " +
			"personalize panels. Without FILE the course overview is shown.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) || !stdinIsTerminal() {
				return errors.New("read needs an interactive terminal; use translate or personalize instead")
			}
			if lang == "" {
				lang = rt.Settings.TargetLanguage
			}
			return rt.runReader(cmd.Context(), rt.extractor(args), lang, !noChat)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Target language (defaults to target-language)")
	cmd.Flags().BoolVar(&noChat, "no-chat", false, "Hide the chat drawer")
	return cmd
}

// extractor reads FILE when given and falls back to the configured course
// overview otherwise.
func (rt *Runtime) extractor(args []string) pagecontext.Extractor {
	defaults := rt.Settings.PageDefaults()
	if len(args) == 0 {
		return pagecontext.Static(defaults)
	}
	return pagecontext.NewFileExtractor(args[0], defaults)
}

func (rt *Runtime) runReader(ctx context.Context, page pagecontext.Extractor, lang string, withChat bool) error {
	gate := rt.NewGate()
	if rt.Settings.Email != "" && rt.Settings.Password != "" {
		creds := auth.Credentials{Email: rt.Settings.Email, Password: rt.Settings.Password}
		if err := rt.signIn(ctx, creds); err != nil {
			log.Warn().Err(err).Msg("Sign-in with configured credentials failed")
		}
	}

	translation := panel.NewTranslationPanel(rt.Assistant, panel.WithGuard(gate))
	insight := panel.NewInsightPanel(rt.Assistant, panel.WithGuard(gate))
	defer translation.Close()
	defer insight.Close()

	cfg := ui.ReaderConfig{
		Gate:           gate,
		Page:           page,
		Translation:    translation,
		Insight:        insight,
		TargetLanguage: lang,
		SignIn:         rt.signIn,
		Markdown:       rt.Markdown(),
	}
	if withChat {
		cfg.Store = rt.newStore(gate)
	}

	model := ui.NewReaderModel(ctx, cfg)
	return rt.runProgram(ctx, gate, model, cfg.Store)
}

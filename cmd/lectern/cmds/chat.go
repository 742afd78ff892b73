package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/go-go-golems/lectern/pkg/conversation"
	"github.com/go-go-golems/lectern/pkg/panel"
	"github.com/go-go-golems/lectern/pkg/session"
	"github.com/go-go-golems/lectern/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const teardownWait = 5 * time.Second

func newChatCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the course assistant",
		Long: "Opens the chat widget. On a terminal this is a full-screen UI; " +
			"otherwise questions are read line by line from stdin (:q to quit).",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if isatty.IsTerminal(os.Stdout.Fd()) && stdinIsTerminal() {
				return rt.runChatTUI(cmd.Context())
			}
			return rt.runChatREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newAskCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask the course assistant a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" {
				return errors.New("nothing to ask")
			}

			gate := rt.NewGate()
			if err := rt.requireSession(ctx, gate, cmd.ErrOrStderr()); err != nil {
				return err
			}
			store := rt.newStore(gate)
			defer closeStore(store)

			if !store.Send(ctx, question) {
				return errors.New("the question was not sent")
			}
			if reply, ok := store.LastReply(); ok {
				printReply(cmd.OutOrStdout(), rt.Markdown(), reply)
			}
			return nil
		},
	}
}

func (rt *Runtime) newStore(gate *session.Gate) *conversation.Store {
	opts := []conversation.Option{conversation.WithGuard(gate)}
	if rt.Settings.PersonalizeChat {
		opts = append(opts, conversation.WithProfile(func() assistant.Profile {
			return panel.ProfileOf(gate.Session())
		}))
	}
	return conversation.NewStore(rt.Assistant, opts...)
}

// closeStore tears the conversation down and gives the history clear a
// moment to reach the backend before the process exits.
func closeStore(store *conversation.Store) {
	store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), teardownWait)
	defer cancel()
	if err := store.Wait(ctx); err != nil {
		log.Debug().Err(err).Msg("Exiting before chat history was cleared")
	}
}

func (rt *Runtime) runChatTUI(ctx context.Context) error {
	gate := rt.NewGate()
	if rt.Settings.Email != "" && rt.Settings.Password != "" {
		creds := auth.Credentials{Email: rt.Settings.Email, Password: rt.Settings.Password}
		if err := rt.signIn(ctx, creds); err != nil {
			log.Warn().Err(err).Msg("Sign-in with configured credentials failed")
		}
	}
	store := rt.newStore(gate)
	model := ui.NewChatModel(ctx, gate, store,
		ui.WithSignIn(rt.signIn),
		ui.WithMarkdown(rt.Markdown()),
	)
	return rt.runProgram(ctx, gate, model, store)
}

// runProgram runs a full-screen model next to the gate watcher and tears
// down the conversation once the UI exits.
func (rt *Runtime) runProgram(ctx context.Context, gate *session.Gate, model tea.Model, store *conversation.Store) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return gate.Watch(groupCtx)
	})
	eg.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})

	err := eg.Wait()
	if store != nil {
		closeStore(store)
	}
	return err
}

func (rt *Runtime) runChatREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	gate := rt.NewGate()
	if err := rt.requireSession(ctx, gate, os.Stderr); err != nil {
		return err
	}
	store := rt.newStore(gate)
	defer closeStore(store)

	md := rt.Markdown()
	name := "Learner"
	if s := gate.Session(); s != nil && s.User.Name != "" {
		name = s.User.Name
	}
	_, _ = fmt.Fprintf(out, "Welcome, %s! Type :q to quit.\n", name)

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":q", ":quit", ":exit", "/quit":
			_, _ = fmt.Fprintln(out, "Bye.")
			return nil
		}
		if !store.Send(ctx, line) {
			continue
		}
		if reply, ok := store.LastReply(); ok {
			printReply(out, md, reply)
		}
	}
}

func printReply(w io.Writer, md *ui.Markdown, msg conversation.Message) {
	_, _ = fmt.Fprintln(w, md.Render(msg.Content))
	if len(msg.Sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "\nSources:")
	for _, src := range msg.Sources {
		_, _ = fmt.Fprintf(w, "  • %s (%s)\n", src.Filename, src.Source)
	}
}

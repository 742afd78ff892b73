package cmds

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newHistoryCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the assistant's conversation history",
	}

	var output string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the backend conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := rt.Assistant.History(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "fetch history")
			}
			return writeHistory(cmd.OutOrStdout(), output, resp.History)
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Clear the backend conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.Assistant.ClearHistory(cmd.Context()); err != nil {
				return errors.Wrap(err, "clear history")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}

	cmd.AddCommand(show, clear)
	return cmd
}

func writeHistory(w io.Writer, format string, entries []assistant.HistoryEntry) error {
	if entries == nil {
		entries = []assistant.HistoryEntry{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(entries)
	case "text", "":
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(w, "No history.")
			return nil
		}
		for _, e := range entries {
			if e.Timestamp != "" {
				_, _ = fmt.Fprintf(w, "[%s] ", e.Timestamp)
			}
			_, _ = fmt.Fprintf(w, "%s: %s\n", e.Role, e.Content)
		}
		return nil
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}

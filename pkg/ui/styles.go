package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	welcomeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("62"))
	focusedButtonStyle = buttonStyle.
				Background(lipgloss.Color("205"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	focusedPanelStyle = panelStyle.
				BorderForeground(lipgloss.Color("205"))
)

// Markdown renders assistant output for the terminal. A nil Markdown
// passes text through unchanged.
type Markdown struct {
	r *glamour.TermRenderer
}

func NewMarkdown(width int) *Markdown {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Could not create markdown renderer, using plain text")
		return nil
	}
	return &Markdown{r: r}
}

func (m *Markdown) Render(text string) string {
	if m == nil || m.r == nil {
		return text
	}
	out, err := m.r.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("Markdown render failed")
		return text
	}
	return strings.Trim(out, "\n")
}

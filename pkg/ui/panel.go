package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/lectern/pkg/panel"
)

// PanelConfig describes one collapsible panel. Payload is called at trigger
// time so the request always reflects the current page.
type PanelConfig[P any] struct {
	Title     string
	Label     func() string
	Meta      func() string
	Payload   func() P
	Lifecycle *panel.Lifecycle[P, string]
	Markdown  *Markdown
}

// PanelModel renders a panel.Lifecycle as a button that expands into the
// result. enter triggers or re-opens, r refreshes, c collapses.
type PanelModel[P any] struct {
	ctx     context.Context
	cfg     PanelConfig[P]
	spinner spinner.Model
	focused bool
	width   int
	notice  string
}

func NewPanelModel[P any](ctx context.Context, cfg PanelConfig[P]) PanelModel[P] {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	return PanelModel[P]{ctx: ctx, cfg: cfg, spinner: sp, width: 80}
}

func (m PanelModel[P]) Name() string { return m.cfg.Lifecycle.Name() }

func (m PanelModel[P]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForChange())
}

func (m PanelModel[P]) waitForChange() tea.Cmd {
	return waitForSignal(m.cfg.Lifecycle.Changes(), panelChangedMsg{name: m.Name()})
}

func (m PanelModel[P]) trigger() tea.Cmd {
	lc, ctx, payload, name := m.cfg.Lifecycle, m.ctx, m.cfg.Payload, m.Name()
	return func() tea.Msg {
		return panelDoneMsg{name: name, accepted: lc.Trigger(ctx, payload())}
	}
}

func (m PanelModel[P]) Update(msg tea.Msg) (PanelModel[P], tea.Cmd) {
	switch msg := msg.(type) {
	case panelChangedMsg:
		if msg.name != m.Name() {
			return m, nil
		}
		return m, m.waitForChange()

	case copiedMsg:
		if !m.focused {
			return m, nil
		}
		if msg.err != nil {
			m.notice = "Could not copy to clipboard"
		} else {
			m.notice = "Copied"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m PanelModel[P]) handleKey(msg tea.KeyMsg) (PanelModel[P], tea.Cmd) {
	lc := m.cfg.Lifecycle
	st := lc.State()
	switch msg.String() {
	case "enter", " ":
		if st.Expanded && st.Status != panel.StatusLoading {
			lc.Collapse()
			return m, nil
		}
		if lc.Expand() {
			return m, nil
		}
		m.notice = ""
		return m, m.trigger()
	case "r":
		m.notice = ""
		return m, m.trigger()
	case "c":
		lc.Collapse()
		return m, nil
	case "y":
		if st.Status == panel.StatusSuccess {
			return m, copyToClipboard(st.Result)
		}
	}
	return m, nil
}

func (m *PanelModel[P]) Focus() { m.focused = true }

func (m *PanelModel[P]) Blur() {
	m.focused = false
	m.notice = ""
}

func (m *PanelModel[P]) SetWidth(w int) {
	if w > 0 {
		m.width = w
	}
}

func (m PanelModel[P]) View() string {
	st := m.cfg.Lifecycle.State()

	bs := buttonStyle
	if m.focused {
		bs = focusedButtonStyle
	}
	button := bs.Render(m.cfg.Label())
	if !st.Expanded {
		return button
	}

	var b strings.Builder
	b.WriteString(subHeaderStyle.Render(m.cfg.Title))
	if m.cfg.Meta != nil {
		b.WriteString("  ")
		b.WriteString(helpStyle.Render(m.cfg.Meta()))
	}
	b.WriteString("\n")
	switch st.Status {
	case panel.StatusLoading:
		b.WriteString(m.spinner.View() + " Working on it…")
	case panel.StatusError:
		b.WriteString(errorStyle.Render(st.Message))
	case panel.StatusSuccess:
		b.WriteString(m.cfg.Markdown.Render(st.Result))
	}
	if m.focused {
		help := "enter collapse • r refresh • y copy"
		if m.notice != "" {
			help = m.notice + " • " + help
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(help))
	}

	ps := panelStyle
	if m.focused {
		ps = focusedPanelStyle
	}
	return ps.Width(m.width - 2).Render(b.String())
}

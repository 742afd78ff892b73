package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/lectern/pkg/conversation"
	"github.com/go-go-golems/lectern/pkg/pagecontext"
	"github.com/go-go-golems/lectern/pkg/panel"
	"github.com/go-go-golems/lectern/pkg/session"
)

type ReaderConfig struct {
	Gate           *session.Gate
	Page           pagecontext.Extractor
	Translation    *panel.TranslationPanel
	Insight        *panel.InsightPanel
	TargetLanguage string
	// Store enables the chat drawer when set.
	Store    *conversation.Store
	SignIn   SignInFunc
	Markdown *Markdown
}

type readerFocus int

const (
	focusPage readerFocus = iota
	focusTranslation
	focusInsight
	focusChat
)

// ReaderModel shows a course page with the translation and insight panels
// and an optional chat drawer toggled with ctrl+t.
type ReaderModel struct {
	ctx  context.Context
	cfg  ReaderConfig
	page *pagecontext.PageContext

	viewport    viewport.Model
	translation PanelModel[panel.TranslationRequest]
	insight     PanelModel[panel.InsightRequest]
	chat        *ChatModel
	showChat    bool
	focus       readerFocus

	width  int
	height int
}

func NewReaderModel(ctx context.Context, cfg ReaderConfig) ReaderModel {
	doc := cfg.Page.Extract()
	page := &doc
	lang := cfg.TargetLanguage
	gate := cfg.Gate

	translation := NewPanelModel(ctx, PanelConfig[panel.TranslationRequest]{
		Title: "Translation",
		Label: func() string { return panel.TranslateLabel(lang) },
		Payload: func() panel.TranslationRequest {
			return panel.TranslationRequest{Page: cfg.Page.Extract(), TargetLanguage: lang}
		},
		Lifecycle: cfg.Translation,
		Markdown:  cfg.Markdown,
	})
	insight := NewPanelModel(ctx, PanelConfig[panel.InsightRequest]{
		Title: "Personalized insight",
		Label: func() string { return panel.PersonalizeLabel(page.Title, gate.Session()) },
		Meta:  func() string { return panel.InsightMeta(panel.ProfileOf(gate.Session())) },
		Payload: func() panel.InsightRequest {
			return panel.InsightRequest{Page: cfg.Page.Extract(), Profile: panel.ProfileOf(gate.Session())}
		},
		Lifecycle: cfg.Insight,
		Markdown:  cfg.Markdown,
	})

	m := ReaderModel{
		ctx:         ctx,
		cfg:         cfg,
		page:        page,
		viewport:    viewport.New(80, 20),
		translation: translation,
		insight:     insight,
		width:       80,
		height:      30,
	}
	if cfg.Store != nil {
		chat := NewChatModel(ctx, gate, cfg.Store,
			Embedded(), WithSignIn(cfg.SignIn), WithMarkdown(cfg.Markdown))
		m.chat = &chat
	}
	m.renderPage()
	return m
}

func (m ReaderModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.resolveGate(),
		waitForSignal(m.cfg.Gate.Changes(), gateChangedMsg{}),
		m.translation.Init(),
		m.insight.Init(),
	}
	if m.chat != nil {
		cmds = append(cmds, m.chat.Init())
	}
	return tea.Batch(cmds...)
}

func (m ReaderModel) resolveGate() tea.Cmd {
	gate, ctx := m.cfg.Gate, m.ctx
	return func() tea.Msg {
		gate.Resolve(ctx)
		return nil
	}
}

func (m ReaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

	case gateChangedMsg:
		cmds = append(cmds, waitForSignal(m.cfg.Gate.Changes(), gateChangedMsg{}))
		if !m.cfg.Gate.Authorized() && m.focus != focusPage && m.focus != focusChat {
			m.setFocus(focusPage)
		}
	}

	var cmd tea.Cmd
	m.translation, cmd = m.translation.Update(msg)
	cmds = append(cmds, cmd)
	m.insight, cmd = m.insight.Update(msg)
	cmds = append(cmds, cmd)

	if m.chat != nil {
		if _, isKey := msg.(tea.KeyMsg); !isKey || m.focus == focusChat {
			var cm tea.Model
			cm, cmd = m.chat.Update(msg)
			chat := cm.(ChatModel)
			m.chat = &chat
			cmds = append(cmds, cmd)
		}
	}

	if k, ok := msg.(tea.KeyMsg); ok && m.focus == focusPage {
		m.viewport, cmd = m.viewport.Update(k)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// handleGlobalKey handles quitting and focus changes. Unhandled keys go to
// the focused child.
func (m *ReaderModel) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit(), true
	case "q":
		if m.focus != focusChat {
			return m.quit(), true
		}
	case "esc":
		if m.focus == focusChat {
			m.setFocus(focusPage)
			return nil, true
		}
		return m.quit(), true
	case "tab":
		m.setFocus(m.nextFocus())
		return nil, true
	case "ctrl+t":
		if m.chat == nil {
			return nil, true
		}
		m.showChat = !m.showChat
		if m.showChat {
			m.setFocus(focusChat)
		} else {
			m.setFocus(focusPage)
		}
		m.layout()
		return nil, true
	}
	return nil, false
}

func (m *ReaderModel) quit() tea.Cmd {
	m.cfg.Translation.Close()
	m.cfg.Insight.Close()
	if m.cfg.Store != nil {
		m.cfg.Store.Close()
	}
	return tea.Quit
}

func (m *ReaderModel) nextFocus() readerFocus {
	order := []readerFocus{focusPage}
	if m.cfg.Gate.Authorized() {
		order = append(order, focusTranslation, focusInsight)
	}
	if m.showChat {
		order = append(order, focusChat)
	}
	for i, f := range order {
		if f == m.focus {
			return order[(i+1)%len(order)]
		}
	}
	return focusPage
}

func (m *ReaderModel) setFocus(f readerFocus) {
	m.focus = f
	m.translation.Blur()
	m.insight.Blur()
	if m.chat != nil {
		m.chat.Blur()
	}
	switch f {
	case focusTranslation:
		m.translation.Focus()
	case focusInsight:
		m.insight.Focus()
	case focusChat:
		if m.chat != nil {
			m.chat.Focus()
		}
	}
}

func (m *ReaderModel) layout() {
	pageHeight := m.height - 8
	if m.showChat && m.chat != nil {
		chatHeight := m.height / 2
		m.chat.SetSize(m.width, chatHeight)
		pageHeight -= chatHeight
	}
	if pageHeight < 3 {
		pageHeight = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = pageHeight
	m.translation.SetWidth(m.width)
	m.insight.SetWidth(m.width)
	m.renderPage()
}

func (m *ReaderModel) renderPage() {
	m.viewport.SetContent(m.cfg.Markdown.Render(m.page.Content))
}

func (m ReaderModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.page.Title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	state, _ := m.cfg.Gate.State()
	switch state {
	case session.GatePending:
		b.WriteString(helpStyle.Render("Checking your session…"))
	case session.GateAnonymous:
		b.WriteString(helpStyle.Render(authPrompt))
	default:
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, m.translation.View(), m.insight.View()))
	}

	if m.showChat && m.chat != nil {
		b.WriteString("\n")
		b.WriteString(m.chat.View())
	}

	b.WriteString("\n")
	help := "tab focus • q quit"
	if m.chat != nil {
		help = "tab focus • ctrl+t chat • q quit"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/lectern/pkg/auth"
	"github.com/go-go-golems/lectern/pkg/conversation"
	"github.com/go-go-golems/lectern/pkg/session"
)

const (
	authPrompt   = "Please sign in to use the course assistant."
	typingText   = "Assistant is typing…"
	inputHeight  = 3
	chromeHeight = 6
)

type ChatOption func(*ChatModel)

// WithSignIn enables the in-terminal sign-in form for anonymous learners.
func WithSignIn(f SignInFunc) ChatOption {
	return func(m *ChatModel) { m.signIn = f }
}

func WithMarkdown(md *Markdown) ChatOption {
	return func(m *ChatModel) { m.markdown = md }
}

// Embedded marks a chat hosted by another model, which then owns gate
// resolution and forwards gate notifications.
func Embedded() ChatOption {
	return func(m *ChatModel) { m.embedded = true }
}

// ChatModel is the chat widget. It renders nothing but a sign-in prompt
// until the gate holds an authenticated session.
type ChatModel struct {
	ctx   context.Context
	gate  *session.Gate
	store *conversation.Store

	signIn   SignInFunc
	markdown *Markdown
	embedded bool

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	form       *huh.Form
	formValues *signInValues
	authStatus string
	notice     string

	width  int
	height int
}

func NewChatModel(ctx context.Context, gate *session.Gate, store *conversation.Store, opts ...ChatOption) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about the course…"
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	vp := viewport.New(80, 12)

	m := ChatModel{
		ctx:      ctx,
		gate:     gate,
		store:    store,
		input:    ta,
		viewport: vp,
		spinner:  sp,
		width:    80,
		height:   12 + chromeHeight + inputHeight,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m ChatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		m.spinner.Tick,
		waitForSignal(m.store.Changes(), storeChangedMsg{}),
	}
	if !m.embedded {
		cmds = append(cmds, m.resolveGate(), waitForSignal(m.gate.Changes(), gateChangedMsg{}))
	}
	return tea.Batch(cmds...)
}

func (m ChatModel) resolveGate() tea.Cmd {
	return func() tea.Msg {
		m.gate.Resolve(m.ctx)
		return nil
	}
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case gateChangedMsg:
		m.refresh()
		if m.embedded {
			return m, nil
		}
		return m, waitForSignal(m.gate.Changes(), gateChangedMsg{})

	case storeChangedMsg:
		m.refresh()
		return m, waitForSignal(m.store.Changes(), storeChangedMsg{})

	case sendDoneMsg:
		m.refresh()
		return m, nil

	case signInDoneMsg:
		if msg.err != nil {
			m.authStatus = auth.UserMessage(msg.err)
		} else {
			m.authStatus = ""
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Could not copy to clipboard"
		} else {
			m.notice = "Copied last answer"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInput(msg)
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if !m.embedded {
			m.store.Close()
			return m, tea.Quit
		}
		return m, nil
	}

	state, _ := m.gate.State()
	if state != session.GateAuthenticated {
		switch msg.String() {
		case "q":
			if !m.embedded {
				m.store.Close()
				return m, tea.Quit
			}
		case "l", "enter":
			if m.signIn != nil && state == session.GateAnonymous {
				m.formValues = &signInValues{}
				m.form = newSignInForm(m.formValues)
				m.authStatus = ""
				return m, m.form.Init()
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "enter":
		if strings.TrimSpace(m.store.Input()) == "" || m.store.Pending() {
			return m, nil
		}
		m.input.Reset()
		m.notice = ""
		return m, m.submit()
	case "ctrl+y":
		if last, ok := m.store.LastReply(); ok {
			return m, copyToClipboard(last.Content)
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m.updateInput(msg)
}

// updateInput feeds the textarea and mirrors its text into the store's
// input buffer, which Submit sends and clears.
func (m ChatModel) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.store.SetInput(m.input.Value())
	return m, cmd
}

func (m ChatModel) submit() tea.Cmd {
	store, ctx := m.store, m.ctx
	return func() tea.Msg {
		return sendDoneMsg{accepted: store.Submit(ctx)}
	}
}

func (m ChatModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+c" {
		m.form = nil
		return m, nil
	}

	fm, cmd := m.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		values := *m.formValues
		m.form, m.formValues = nil, nil
		m.authStatus = "Signing in…"
		return m, tea.Batch(cmd, signInCmd(m.ctx, m.signIn, values))
	case huh.StateAborted:
		m.form, m.formValues = nil, nil
		return m, cmd
	}
	return m, cmd
}

// SetSize lays the widget out in a width×height box.
func (m *ChatModel) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.input.SetWidth(width)
	m.viewport.Width = width
	vh := height - inputHeight - chromeHeight
	if vh < 3 {
		vh = 3
	}
	m.viewport.Height = vh
	m.refresh()
}

func (m *ChatModel) Focus() tea.Cmd { return m.input.Focus() }

func (m *ChatModel) Blur() { m.input.Blur() }

// refresh re-renders the history and keeps the newest message in view.
func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m ChatModel) renderHistory() string {
	msgs := m.store.Messages()
	var b strings.Builder
	if len(msgs) == 0 {
		name := "Learner"
		if s := m.gate.Session(); s != nil && strings.TrimSpace(s.User.Name) != "" {
			name = s.User.Name
		}
		b.WriteString(welcomeStyle.Render(fmt.Sprintf("Welcome, %s!", name)))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Ask anything about ROS 2, simulation or humanoid robotics."))
		return b.String()
	}

	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(userStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
		default:
			b.WriteString(assistantStyle.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.markdown.Render(msg.Content))
			if len(msg.Sources) > 0 {
				b.WriteString("\n")
				b.WriteString(sourceStyle.Render("Sources:"))
				for _, src := range msg.Sources {
					b.WriteString("\n")
					b.WriteString(sourceStyle.Render(fmt.Sprintf("  • %s (%s)", src.Filename, src.Source)))
				}
			}
		}
	}
	return b.String()
}

func (m ChatModel) View() string {
	header := headerStyle.Render("Course Assistant")

	state, _ := m.gate.State()
	switch state {
	case session.GatePending:
		return header + "\n\n" + m.spinner.View() + " Checking your session…"
	case session.GateAnonymous:
		return header + "\n\n" + m.anonymousView()
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.store.Pending() {
		b.WriteString(m.spinner.View() + " " + helpStyle.Render(typingText))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	help := "enter send • ctrl+y copy answer • pgup/pgdown scroll"
	if !m.embedded {
		help += " • esc quit"
	}
	if m.notice != "" {
		help = m.notice + " • " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m ChatModel) anonymousView() string {
	if m.form != nil {
		return subHeaderStyle.Render("Sign in") + "\n" + m.form.View()
	}
	var b strings.Builder
	b.WriteString(authPrompt)
	if m.authStatus != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.authStatus))
	}
	b.WriteString("\n\n")
	if m.signIn != nil {
		b.WriteString(helpStyle.Render("l sign in • q quit"))
	} else {
		b.WriteString(helpStyle.Render("set LECTERN_EMAIL and LECTERN_PASSWORD to sign in • q quit"))
	}
	return b.String()
}

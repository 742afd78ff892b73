package ui

import (
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

type gateChangedMsg struct{}

type storeChangedMsg struct{}

type sendDoneMsg struct {
	accepted bool
}

type panelChangedMsg struct {
	name string
}

type panelDoneMsg struct {
	name     string
	accepted bool
}

type signInDoneMsg struct {
	err error
}

type copiedMsg struct {
	err error
}

// waitForSignal turns one notification on ch into msg. A closed channel
// ends the loop.
func waitForSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		err := clipboard.WriteAll(text)
		if err != nil {
			log.Warn().Err(err).Msg("Could not copy to clipboard")
		}
		return copiedMsg{err: err}
	}
}

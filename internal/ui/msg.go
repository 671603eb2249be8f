package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bridgetx/internal/transaction"
)

// StageMsg carries a submitter stage transition into the view.
type StageMsg struct {
	Event transaction.Event
}

// DoneMsg is sent once SignAndSend has returned.
type DoneMsg struct {
	Signature solana.Signature
	Err       error
}

// logRefreshMsg re-reads the log buffer.
type logRefreshMsg time.Time

const logRefreshInterval = 500 * time.Millisecond

// ListenBus returns a tea.Cmd that waits for the next message on bus.
func ListenBus(bus <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-bus
		if !ok {
			return nil
		}
		return msg
	}
}

func refreshLogs() tea.Cmd {
	return tea.Tick(logRefreshInterval, func(t time.Time) tea.Msg {
		return logRefreshMsg(t)
	})
}

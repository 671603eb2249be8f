package ui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rovshanmuradov/bridgetx/internal/transaction"
)

// StageBus carries submitter stage events to the progress view.
type StageBus struct {
	ch      chan tea.Msg
	dropped atomic.Uint64
}

func NewStageBus(size int) *StageBus {
	if size <= 0 {
		size = 1
	}
	return &StageBus{ch: make(chan tea.Msg, size)}
}

// C is the channel Progress reads from.
func (b *StageBus) C() <-chan tea.Msg {
	return b.ch
}

// Observer never blocks the submitter. An event that does not fit is
// dropped; the outcome reaches the view as DoneMsg regardless.
func (b *StageBus) Observer() transaction.Observer {
	return func(ev transaction.Event) {
		select {
		case b.ch <- StageMsg{Event: ev}:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events the view never saw.
func (b *StageBus) Dropped() uint64 {
	return b.dropped.Load()
}

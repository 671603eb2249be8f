package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bridgetx/internal/logger"
	"github.com/rovshanmuradov/bridgetx/internal/transaction"
	"github.com/rovshanmuradov/bridgetx/internal/ui/component"
	"github.com/rovshanmuradov/bridgetx/internal/ui/style"
)

// timeline is the happy path shown in the view. Resubmitting and Failed are
// drawn as annotations on it.
var timeline = []transaction.Stage{
	transaction.StageBuilding,
	transaction.StageSigned,
	transaction.StageSubmitted,
	transaction.StageConfirming,
	transaction.StageConfirmed,
}

// Progress renders one SignAndSend call.
type Progress struct {
	bus     <-chan tea.Msg
	header  *component.StatusHeader
	logs    *component.CompactLogViewer
	spinner spinner.Model
	help    help.Model
	keys    KeyMap
	palette style.Palette

	stage     transaction.Stage
	reached   map[transaction.Stage]bool
	budget    *transaction.Budget
	resends   int
	signature solana.Signature
	err       error
	done      bool
	width     int
}

// NewProgress creates the view. bus is fed by StageBus; logBuffer may be nil.
func NewProgress(bus <-chan tea.Msg, info component.HeaderInfo, logBuffer *logger.LogBuffer) *Progress {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	palette := style.DefaultPalette()
	sp.Style = lipgloss.NewStyle().Foreground(palette.Active)

	return &Progress{
		bus:     bus,
		header:  component.NewStatusHeader(info),
		logs:    component.NewCompactLogViewer(logBuffer),
		spinner: sp,
		help:    help.New(),
		keys:    DefaultKeyMap(),
		palette: palette,
		reached: make(map[transaction.Stage]bool),
	}
}

// Init implements tea.Model.
func (p *Progress) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, ListenBus(p.bus), refreshLogs())
}

// Update implements tea.Model.
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StageMsg:
		p.apply(msg.Event)
		return p, ListenBus(p.bus)

	case DoneMsg:
		p.done = true
		p.err = msg.Err
		if msg.Err == nil {
			p.signature = msg.Signature
			p.stage = transaction.StageConfirmed
			p.reached[transaction.StageConfirmed] = true
		} else {
			p.stage = transaction.StageFailed
		}
		p.logs.Refresh()
		return p, tea.Quit

	case logRefreshMsg:
		p.logs.Refresh()
		return p, refreshLogs()

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.header.SetWidth(msg.Width)
		p.help.Width = msg.Width
		p.logs.SetSize(msg.Width, msg.Height/3)
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Quit):
			// отправка продолжается, закрываем только экран
			return p, tea.Quit
		case key.Matches(msg, p.keys.Help):
			p.help.ShowAll = !p.help.ShowAll
		case key.Matches(msg, p.keys.ToggleLogs):
			p.logs.SetVisible(!p.logs.IsVisible())
		case key.Matches(msg, p.keys.ScrollUp):
			p.logs.ScrollUp()
		case key.Matches(msg, p.keys.ScrollDown):
			p.logs.ScrollDown()
		}
	}
	return p, nil
}

func (p *Progress) apply(ev transaction.Event) {
	p.stage = ev.Stage
	p.reached[ev.Stage] = true
	if ev.Budget != nil {
		p.budget = ev.Budget
	}
	if ev.Resends > p.resends {
		p.resends = ev.Resends
	}
	if !ev.Signature.IsZero() {
		p.signature = ev.Signature
	}
	if ev.Err != nil {
		p.err = ev.Err
	}
}

// Stage returns the last stage the view has seen.
func (p *Progress) Stage() transaction.Stage {
	return p.stage
}

// Done reports whether DoneMsg has been received.
func (p *Progress) Done() bool {
	return p.done
}

// View implements tea.Model.
func (p *Progress) View() string {
	sections := []string{
		p.header.View(),
		p.timelineView(),
		p.detailsView(),
	}
	if logs := p.logs.View(); logs != "" {
		sections = append(sections, logs)
	}
	sections = append(sections, p.help.View(p.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (p *Progress) timelineView() string {
	pending := lipgloss.NewStyle().Foreground(p.palette.Pending)
	active := lipgloss.NewStyle().Foreground(p.palette.Active).Bold(true)
	ok := lipgloss.NewStyle().Foreground(p.palette.Success)
	failed := lipgloss.NewStyle().Foreground(p.palette.Error).Bold(true)

	var parts []string
	for _, s := range timeline {
		current := s == p.stage || (p.stage == transaction.StageResubmitting && s == transaction.StageConfirming)
		switch {
		case p.stage == transaction.StageFailed && s == p.lastReached():
			parts = append(parts, failed.Render("✗ "+s.String()))
		case current && !p.done:
			parts = append(parts, active.Render(p.spinner.View()+s.String()))
		case p.reached[s]:
			parts = append(parts, ok.Render("✓ "+s.String()))
		default:
			parts = append(parts, pending.Render("· "+s.String()))
		}
	}
	return strings.Join(parts, pending.Render(" → "))
}

// lastReached is the furthest happy-path stage seen.
func (p *Progress) lastReached() transaction.Stage {
	last := transaction.StageBuilding
	for _, s := range timeline {
		if p.reached[s] {
			last = s
		}
	}
	return last
}

func (p *Progress) detailsView() string {
	label := lipgloss.NewStyle().Foreground(p.palette.TextMuted)
	value := lipgloss.NewStyle().Foreground(p.palette.Text)

	row := func(l, v string) string {
		return label.Render(fmt.Sprintf("%-10s", l)) + " " + value.Render(v)
	}

	var lines []string
	if p.budget != nil {
		lines = append(lines, row("budget", fmt.Sprintf("%d CU @ %d µlamports (simulated %d, %d attempts)",
			p.budget.UnitLimit, p.budget.UnitPrice, p.budget.UnitsConsumed, p.budget.Attempts)))
	}
	if p.resends > 0 {
		resend := lipgloss.NewStyle().Foreground(p.palette.Resend)
		lines = append(lines, label.Render(fmt.Sprintf("%-10s", "resends"))+" "+resend.Render(fmt.Sprint(p.resends)))
	}
	if !p.signature.IsZero() {
		lines = append(lines, row("signature", p.signature.String()))
	}
	if p.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(p.palette.Error)
		lines = append(lines, label.Render(fmt.Sprintf("%-10s", "error"))+" "+errStyle.Render(p.err.Error()))
	}
	if len(lines) == 0 {
		return label.Render("waiting for first stage...")
	}
	return strings.Join(lines, "\n")
}

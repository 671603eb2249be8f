package component

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/bridgetx/internal/logger"
	"github.com/rovshanmuradov/bridgetx/internal/ui/style"
)

// LogFilter defines what log levels to show
type LogFilter struct {
	ShowError   bool
	ShowWarning bool
	ShowInfo    bool
	ShowDebug   bool
}

// CompactLogViewer shows the tail of a LogBuffer
type CompactLogViewer struct {
	buffer   *logger.LogBuffer
	viewport viewport.Model
	filter   LogFilter
	style    CompactLogStyle
	limit    int
	visible  bool
	title    string
}

// CompactLogStyle contains all styling for the log viewer
type CompactLogStyle struct {
	container lipgloss.Style
	title     lipgloss.Style
	entry     lipgloss.Style
	timestamp lipgloss.Style
	error     lipgloss.Style
	warning   lipgloss.Style
	info      lipgloss.Style
	debug     lipgloss.Style
}

// NewCompactLogViewer creates a new compact log viewer
func NewCompactLogViewer(logBuffer *logger.LogBuffer) *CompactLogViewer {
	palette := style.DefaultPalette()

	clv := &CompactLogViewer{
		buffer:  logBuffer,
		visible: true,
		limit:   50,
		title:   "Recent Logs",
		filter: LogFilter{
			ShowError:   true,
			ShowWarning: true,
			ShowInfo:    true,
		},
		style: CompactLogStyle{
			container: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(palette.Info).
				Padding(0, 1).
				MarginTop(1),

			title: lipgloss.NewStyle().
				Foreground(palette.Info).
				Bold(true),

			entry: lipgloss.NewStyle().
				Foreground(palette.Text),

			timestamp: lipgloss.NewStyle().
				Foreground(palette.TextMuted),

			error: lipgloss.NewStyle().
				Foreground(palette.Error).
				Bold(true),

			warning: lipgloss.NewStyle().
				Foreground(palette.Warning),

			info: lipgloss.NewStyle().
				Foreground(palette.Text),

			debug: lipgloss.NewStyle().
				Foreground(palette.TextMuted),
		},
		viewport: viewport.New(70, 6),
	}
	clv.Refresh()
	return clv
}

// SetSize sets the component dimensions
func (clv *CompactLogViewer) SetSize(width, height int) {
	if width > 4 {
		clv.style.container = clv.style.container.Width(width - 4)
	}
	clv.viewport.Width = max(width-6, 20)
	clv.viewport.Height = max(height-3, 2)
	clv.Refresh()
}

// SetVisible toggles the visibility of the log viewer
func (clv *CompactLogViewer) SetVisible(visible bool) {
	clv.visible = visible
}

// IsVisible returns whether the log viewer is visible
func (clv *CompactLogViewer) IsVisible() bool {
	return clv.visible
}

// SetFilter updates the log filter
func (clv *CompactLogViewer) SetFilter(filter LogFilter) {
	clv.filter = filter
	clv.Refresh()
}

// Lines returns the filtered, unstyled messages currently shown.
func (clv *CompactLogViewer) Lines() []string {
	if clv.buffer == nil {
		return nil
	}
	var out []string
	for _, entry := range clv.buffer.Recent(clv.limit) {
		if clv.shouldShowEntry(entry) {
			out = append(out, entry.Message)
		}
	}
	return out
}

// Refresh re-reads the log buffer into the viewport.
func (clv *CompactLogViewer) Refresh() {
	if clv.buffer == nil {
		clv.viewport.SetContent("No log buffer available")
		return
	}

	var lines []string
	for _, entry := range clv.buffer.Recent(clv.limit) {
		if clv.shouldShowEntry(entry) {
			lines = append(lines, clv.formatLogEntry(entry))
		}
	}
	if len(lines) == 0 {
		clv.viewport.SetContent("No logs yet")
		return
	}

	atBottom := clv.viewport.AtBottom()
	clv.viewport.SetContent(strings.Join(lines, "\n"))
	if atBottom {
		clv.viewport.GotoBottom()
	}
}

// View renders the compact log viewer
func (clv *CompactLogViewer) View() string {
	if !clv.visible {
		return ""
	}
	content := lipgloss.JoinVertical(
		lipgloss.Left,
		clv.style.title.Render(fmt.Sprintf("%s [l]", clv.title)),
		clv.viewport.View(),
	)
	return clv.style.container.Render(content)
}

func (clv *CompactLogViewer) shouldShowEntry(entry logger.LogEntry) bool {
	switch strings.ToLower(entry.Level) {
	case "error", "fatal", "panic":
		return clv.filter.ShowError
	case "warning", "warn":
		return clv.filter.ShowWarning
	case "debug":
		return clv.filter.ShowDebug
	default:
		return clv.filter.ShowInfo
	}
}

func (clv *CompactLogViewer) formatLogEntry(entry logger.LogEntry) string {
	timestamp := clv.style.timestamp.Render(entry.Timestamp.Format("15:04:05"))

	var styled string
	switch strings.ToLower(entry.Level) {
	case "error", "fatal", "panic":
		styled = clv.style.error.Render(entry.Message)
	case "warning", "warn":
		styled = clv.style.warning.Render(entry.Message)
	case "debug":
		styled = clv.style.debug.Render(entry.Message)
	case "info":
		styled = clv.style.info.Render(entry.Message)
	default:
		styled = clv.style.entry.Render(entry.Message)
	}
	return fmt.Sprintf("%s %s", timestamp, styled)
}

// ScrollUp scrolls the log viewer up
func (clv *CompactLogViewer) ScrollUp() {
	clv.viewport.LineUp(1)
}

// ScrollDown scrolls the log viewer down
func (clv *CompactLogViewer) ScrollDown() {
	clv.viewport.LineDown(1)
}

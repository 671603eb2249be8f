package component

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/bridgetx/internal/ui/style"
)

// HeaderInfo is the static context of one submission.
type HeaderInfo struct {
	Wallet     string
	Network    string
	Commitment string
	Variant    string
}

// StatusHeader renders the wallet, network and commitment of the submission
type StatusHeader struct {
	info  HeaderInfo
	style StatusHeaderStyle
	width int
}

// StatusHeaderStyle contains all styling for the status header
type StatusHeaderStyle struct {
	container lipgloss.Style
	title     lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
}

// NewStatusHeader creates a new status header component
func NewStatusHeader(info HeaderInfo) *StatusHeader {
	palette := style.DefaultPalette()

	return &StatusHeader{
		info: info,
		style: StatusHeaderStyle{
			container: lipgloss.NewStyle().
				Foreground(palette.Text).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(palette.Primary).
				Padding(0, 2).
				MarginBottom(1),

			title: lipgloss.NewStyle().
				Foreground(palette.Primary).
				Bold(true),

			label: lipgloss.NewStyle().
				Foreground(palette.TextMuted),

			value: lipgloss.NewStyle().
				Foreground(palette.TextSecondary),
		},
	}
}

// SetWidth sets the component width for responsive layout
func (sh *StatusHeader) SetWidth(width int) {
	sh.width = width
	if width > 4 {
		sh.style.container = sh.style.container.Width(width - 4)
	}
}

// ShortenAddress keeps the head and tail of a base58 string.
func ShortenAddress(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// View renders the header
func (sh *StatusHeader) View() string {
	var parts []string
	add := func(label, value string) {
		if value == "" {
			return
		}
		parts = append(parts, fmt.Sprintf("%s %s",
			sh.style.label.Render(label),
			sh.style.value.Render(value)))
	}
	add("wallet", ShortenAddress(sh.info.Wallet))
	add("network", sh.info.Network)
	add("commitment", sh.info.Commitment)
	add("tx", sh.info.Variant)

	content := lipgloss.JoinVertical(lipgloss.Left,
		sh.style.title.Render("Bridge transaction"),
		strings.Join(parts, "  "),
	)
	return sh.style.container.Render(content)
}

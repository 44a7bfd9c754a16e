package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette matches the web dashboard.
var (
	colorBg     = lipgloss.Color("#0b1220")
	colorAccent = lipgloss.Color("#3b82f6")
	colorPos    = lipgloss.Color("#22c55e")
	colorNeg    = lipgloss.Color("#ef4444")
	colorWarn   = lipgloss.Color("#f59e0b")
	colorText   = lipgloss.Color("#e5e7eb")
	colorMuted  = lipgloss.Color("#64748b")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorText).PaddingLeft(1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Underline(true).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	labelStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle  = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	buyStyle    = lipgloss.NewStyle().Foreground(colorAccent)
	sellStyle   = lipgloss.NewStyle().Foreground(colorNeg)
	posStyle    = lipgloss.NewStyle().Foreground(colorPos)
	footerStyle = lipgloss.NewStyle().Background(colorBg).Foreground(colorMuted).PaddingLeft(1)
)

// brailleRamp maps normalized 0..7 buckets to bar characters.
var brailleRamp = []rune{'⡀', '⡄', '⡆', '⡇', '⣇', '⣧', '⣷', '⣿'}

// sparkline resamples values to width columns.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	for i := range width {
		v := values[i*len(values)/width]
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(brailleRamp)-1))
		}
		b.WriteRune(brailleRamp[idx])
	}
	return b.String()
}

// Package tui is a terminal view of the backtest results.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/chart"
)

// Acquirer produces outcomes for the model to display.
type Acquirer interface {
	Acquire(ctx context.Context) backtest.Outcome
}

// acquiredMsg carries a finished acquisition back to Update.
type acquiredMsg struct {
	out backtest.Outcome
}

// Model is the Bubble Tea model of the results view.
type Model struct {
	ctx      context.Context
	acquirer Acquirer

	outcome *backtest.Outcome
	running bool
	runs    int

	modeIdx int
	offset  int // first visible event row

	spin spinner.Model

	width  int
	height int
}

// New creates a model that acquires results from a on start and on "r".
func New(ctx context.Context, a Acquirer) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return Model{
		ctx:      ctx,
		acquirer: a,
		spin:     s,
		running:  true,
		width:    80,
		height:   30,
	}
}

// Mode returns the selected trade filter.
func (m Model) Mode() backtest.Mode {
	return backtest.Modes[m.modeIdx]
}

// Outcome returns the outcome on display, or nil while the first
// acquisition runs.
func (m Model) Outcome() *backtest.Outcome {
	return m.outcome
}

// Init starts the first acquisition.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.acquire())
}

func (m Model) acquire() tea.Cmd {
	ctx, a := m.ctx, m.acquirer
	return func() tea.Msg {
		return acquiredMsg{out: a.Acquire(ctx)}
	}
}

// Update handles keypresses and messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case acquiredMsg:
		out := msg.out
		m.outcome = &out
		m.running = false
		m.runs++
		m.offset = 0
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		if m.running {
			return m, nil
		}
		m.running = true
		return m, tea.Batch(m.spin.Tick, m.acquire())

	case "tab", "right", "l":
		m.modeIdx = (m.modeIdx + 1) % len(backtest.Modes)
		m.offset = 0

	case "shift+tab", "left", "h":
		m.modeIdx = (m.modeIdx + len(backtest.Modes) - 1) % len(backtest.Modes)
		m.offset = 0

	case "1", "2", "3":
		m.modeIdx = int(msg.String()[0] - '1')
		m.offset = 0

	case "down", "j":
		if m.offset < len(m.events())-1 {
			m.offset++
		}

	case "up", "k":
		if m.offset > 0 {
			m.offset--
		}
	}
	return m, nil
}

func (m Model) events() []backtest.TradeEvent {
	if m.outcome == nil {
		return nil
	}
	return backtest.Project(m.outcome.Record.ChartData, m.Mode())
}

// View renders the full TUI.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("InvesteAI backtest"))

	if m.outcome == nil {
		sections = append(sections, "", "  "+m.spin.View()+" Running backtest...")
		sections = append(sections, "", m.renderFooter())
		return strings.Join(sections, "\n")
	}

	out := m.outcome
	if out.IsFallback() {
		sections = append(sections, warnStyle.Render(fmt.Sprintf(
			"  Showing example values for demonstration (%s).", out.ReasonCode())))
	}
	if m.running {
		sections = append(sections, "  "+m.spin.View()+" Running backtest...")
	}

	sections = append(sections, m.renderMetrics(out.Record))
	sections = append(sections, "  "+posStyle.Render(sparkline(out.Record.ChartData.Equity, max(m.width-4, 10))))
	sections = append(sections, m.renderTabs())
	sections = append(sections, m.renderEvents())
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderMetrics(rec *backtest.ResultsRecord) string {
	cell := func(label, value string, style lipgloss.Style) string {
		return lipgloss.JoinVertical(lipgloss.Left,
			labelStyle.Render(label), style.Render(value))
	}

	profitStyle := valueStyle
	switch {
	case rec.TotalProfit > 0:
		profitStyle = posStyle.Bold(true)
	case rec.TotalProfit < 0:
		profitStyle = sellStyle.Bold(true)
	}

	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		cell("Initial value", chart.Money(rec.InitialValue), valueStyle), "   ",
		cell("Final value", chart.Money(rec.FinalValue), valueStyle), "   ",
		cell("Total profit", chart.Money(rec.TotalProfit), profitStyle),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		cell("Trades", fmt.Sprintf("%d (%d W / %d L)", rec.TotalTrades, rec.Wins, rec.Losses), valueStyle), "   ",
		cell("Win rate", chart.Percent(rec.WinRate), valueStyle), "   ",
		cell("Sharpe", chart.Ratio(rec.SharpeRatio), valueStyle),
	)
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, row1, "", row2))
}

func (m Model) renderTabs() string {
	var tabs []string
	for i, mode := range backtest.Modes {
		if i == m.modeIdx {
			tabs = append(tabs, activeTabStyle.Render(mode.Label()))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(mode.Label()))
		}
	}
	return " " + strings.Join(tabs, mutedStyle.Render("|"))
}

func (m Model) renderEvents() string {
	events := m.events()
	if len(events) == 0 {
		return "  " + mutedStyle.Render(m.Mode().EmptyNotice())
	}

	// Header, tabs, metrics panel, sparkline and footer take about 14 lines
	visible := max(m.height-14, 5)
	end := min(m.offset+visible, len(events))

	lines := []string{mutedStyle.Render(fmt.Sprintf("  %-8s %-6s %16s", "STEP", "SIDE", "EQUITY"))}
	for _, ev := range events[m.offset:end] {
		side := mutedStyle.Render(fmt.Sprintf("%-6s", "-"))
		switch ev.Side {
		case backtest.SideBuy:
			side = buyStyle.Render(fmt.Sprintf("%-6s", "buy"))
		case backtest.SideSell:
			side = sellStyle.Render(fmt.Sprintf("%-6s", "sell"))
		}
		lines = append(lines, fmt.Sprintf("  %-8d %s %16s", ev.Step, side, chart.Money(ev.Equity)))
	}
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", m.offset+1, end, len(events))))
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	hints := "q quit • r run again • tab/←→ filter • ↑↓ scroll"
	return footerStyle.Width(m.width).Render(hints)
}

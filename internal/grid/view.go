package grid

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	healthyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	unhealthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// Messages

type tickMsg time.Time

type snapshotMsg struct {
	cells   [][]int
	healthy int
	err     error
}

type actionMsg struct {
	text string
	err  error
}

// Model is a bubbletea model that observes a Grid. It takes read
// snapshots on every tick; the w and m keys water or mutate a random cell.
type Model struct {
	ctx      context.Context
	grid     *Grid
	interval time.Duration

	cells    [][]int
	healthy  int
	last     string
	err      error
	quitting bool
}

// NewModel returns a Model that refreshes from g every interval. Lock
// waits are bound to ctx.
func NewModel(ctx context.Context, g *Grid, interval time.Duration) Model {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return Model{ctx: ctx, grid: g, interval: interval}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "w":
			return m, m.water()
		case "m":
			return m, m.mutate()
		}

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.cells = msg.cells
			m.healthy = msg.healthy
		}

	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.last = msg.text
		}
		return m, m.refresh()
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("keeper garden"))
	b.WriteString("\n\n")

	for _, row := range m.cells {
		for c, v := range row {
			if c > 0 {
				b.WriteByte(' ')
			}
			if v == Healthy {
				b.WriteString(healthyStyle.Render("1"))
			} else {
				b.WriteString(unhealthyStyle.Render("0"))
			}
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	total := m.grid.Rows() * m.grid.Cols()
	b.WriteString(fmt.Sprintf("healthy %d/%d\n", m.healthy, total))
	if m.last != "" {
		b.WriteString(mutedStyle.Render(m.last))
		b.WriteByte('\n')
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteByte('\n')
	}
	b.WriteString(mutedStyle.Render("w water · m mutate · q quit"))
	b.WriteByte('\n')
	return b.String()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		cells, err := m.grid.Snapshot(m.ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		healthy := 0
		for _, row := range cells {
			for _, v := range row {
				healthy += v
			}
		}
		return snapshotMsg{cells: cells, healthy: healthy}
	}
}

func (m Model) water() tea.Cmd {
	return func() tea.Msg {
		cell, watered, err := m.grid.WaterRandomUnhealthyCell(m.ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		if !watered {
			return actionMsg{text: fmt.Sprintf("(%d,%d) already healthy", cell.Row, cell.Col)}
		}
		return actionMsg{text: fmt.Sprintf("watered (%d,%d)", cell.Row, cell.Col)}
	}
}

func (m Model) mutate() tea.Cmd {
	return func() tea.Msg {
		cell, value, err := m.grid.MutateRandomCell(m.ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("nature set (%d,%d) to %d", cell.Row, cell.Col, value)}
	}
}

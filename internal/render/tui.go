package render

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/goth-coder/stream-bit/internal/domain"
)

// RangeSwitcher lets the TUI change the look-back horizon.
type RangeSwitcher interface {
	SetRange(hours int) error
}

// tuiSnapshot is everything one frame needs.
type tuiSnapshot struct {
	series domain.RenderSeries
	state  domain.ConnectionState
	at     time.Time
}

// TUI adapts the chart core to a bubbletea program. It implements both
// Renderer and the orchestrator's StatusSink; updates are coalesced so a
// burst of redraws costs one frame.
type TUI struct {
	title    string
	switcher RangeSwitcher
	updateCh chan tuiSnapshot

	// last pushed values, re-sent whole on every change
	mu   sync.Mutex
	last tuiSnapshot
}

// NewTUI creates the terminal renderer. switcher may be nil, which disables
// the range keys.
func NewTUI(title string, switcher RangeSwitcher) *TUI {
	return &TUI{
		title:    title,
		switcher: switcher,
		updateCh: make(chan tuiSnapshot, 1),
	}
}

// Render pushes a new series frame. Never blocks.
func (t *TUI) Render(s domain.RenderSeries) {
	t.mu.Lock()
	t.last.series = s
	t.last.at = time.Now()
	snap := t.last
	t.mu.Unlock()
	t.push(snap)
}

// StreamState pushes a connection-state frame.
func (t *TUI) StreamState(st domain.ConnectionState) {
	t.mu.Lock()
	t.last.state = st
	t.last.at = time.Now()
	snap := t.last
	t.mu.Unlock()
	t.push(snap)
}

func (t *TUI) push(snap tuiSnapshot) {
	// Coalesce: replace a pending frame instead of queueing behind it.
	select {
	case t.updateCh <- snap:
	default:
		select {
		case <-t.updateCh:
		default:
		}
		select {
		case t.updateCh <- snap:
		default:
		}
	}
}

// Program builds the bubbletea program for this renderer.
func (t *TUI) Program() *tea.Program {
	return tea.NewProgram(newTUIModel(t), tea.WithAltScreen())
}

type tuiUpdateMsg struct{ snap tuiSnapshot }
type tuiTickMsg time.Time

type tuiModel struct {
	t     *TUI
	snap  tuiSnapshot
	width int
	err   string
}

func newTUIModel(t *TUI) tuiModel {
	return tuiModel{t: t}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.tick())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "1", "2", "3":
			if m.t.switcher != nil {
				hours := map[string]int{"1": 6, "2": 24, "3": 72}[msg.String()]
				if err := m.t.switcher.SetRange(hours); err != nil {
					m.err = err.Error()
				} else {
					m.err = ""
				}
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tuiUpdateMsg:
		m.snap = msg.snap
		return m, m.waitForUpdate()
	case tuiTickMsg:
		return m, m.tick()
	}
	return m, nil
}

var (
	tuiTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	tuiLiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	tuiDegStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	tuiDeadStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	tuiLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tuiBorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 1)
)

func (m tuiModel) View() string {
	s := m.snap.series

	header := fmt.Sprintf("%s | %s | %s",
		tuiTitleStyle.Render(m.t.title),
		m.stateBadge(),
		time.Now().Format("15:04:05"))

	var body strings.Builder
	if latest, ok := s.Latest(); ok {
		body.WriteString(fmt.Sprintf("latest  %s  @ %s\n\n",
			tuiTitleStyle.Render(latest.Price.StringFixed(2)),
			latest.Timestamp.Format("15:04:05")))
	} else {
		body.WriteString("waiting for data...\n\n")
	}

	for i := range s.Points {
		if s.Labels[i] == "" {
			continue
		}
		body.WriteString(fmt.Sprintf("%s  %s\n",
			tuiLabelStyle.Render(fmt.Sprintf("%-16s", s.Labels[i])),
			s.Points[i].StringFixed(2)))
	}

	footer := tuiLabelStyle.Render("[1] 6h  [2] 24h  [3] 72h  [q] quit")
	if m.err != "" {
		footer = tuiDeadStyle.Render(m.err) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		tuiBorderStyle.Render(body.String()),
		footer,
	)
}

func (m tuiModel) stateBadge() string {
	st := m.snap.state
	switch {
	case st == domain.StatePolling:
		return tuiDegStyle.Render(st.String())
	case st.Live():
		return tuiLiveStyle.Render(st.String())
	default:
		return tuiDeadStyle.Render(st.String())
	}
}

func (m tuiModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return tuiUpdateMsg{snap: <-m.t.updateCh}
	}
}

func (m tuiModel) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

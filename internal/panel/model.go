package panel

import (
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lwectl/internal/keys"
	"lwectl/internal/logging"
	"lwectl/internal/modes"
)

const (
	refreshInterval = 500 * time.Millisecond
	logRows         = 8
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	favoriteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	logBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

type tickMsg time.Time

type actionDoneMsg struct {
	err error
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the bubbletea model for the control panel.
type Model struct {
	session    *Session
	dispatcher *keys.Dispatcher
	hub        *logging.StreamHub

	width, height int
	logs          []string
	err           error
	quitting      bool
}

// NewModel wires a session, the keybinding dispatcher and an optional log hub.
func NewModel(session *Session, dispatcher *keys.Dispatcher, hub *logging.StreamHub) *Model {
	return &Model{session: session, dispatcher: dispatcher, hub: hub}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.session.Refresh()}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		m.pullLogs()
		return m, tickCmd()

	case actionDoneMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	}

	key, mods, ok := Translate(msg)
	if !ok {
		return m, nil
	}
	if m.dispatcher != nil && m.dispatcher.Dispatch(key, mods) {
		return m, nil
	}
	if len(mods) > 0 {
		return m, nil
	}

	switch key {
	case "up", "k":
		m.session.Move(-1)
	case "down", "j":
		m.session.Move(1)
	case "enter":
		return m, m.action(m.session.ApplySelected)
	case "tab":
		return m, m.action(m.session.CycleView)
	case "f":
		return m, m.action(m.session.ToggleFavorite)
	case "x":
		return m, m.action(m.session.FlagNotWorking)
	case "s":
		return m, m.action(m.session.Stop)
	case "r":
		return m, m.refreshCmd()
	}
	return m, nil
}

func (m *Model) action(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn()}
	}
}

func (m *Model) pullLogs() {
	if m.hub == nil {
		return
	}
	events, _ := m.hub.Tail(logRows)
	lines := make([]string, 0, len(events))
	for _, evt := range events {
		lines = append(lines, evt.Line())
	}
	m.logs = lines
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.session.Snapshot()
	cfg := snap.Config

	var b strings.Builder
	b.WriteString(titleStyle.Render("lwectl"))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("engine "))
	b.WriteString(snap.Engine.String())
	b.WriteString("\n")

	dir := cfg.Dir()
	if dir == "" {
		dir = "(none)"
	}
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n",
		labelStyle.Render("dir"), dir,
		labelStyle.Render("mode"), modeLine(cfg.Delay.Timer, string(modes.Active(cfg))),
		labelStyle.Render("view"), snap.View.String(),
	)
	fmt.Fprintf(&b, "%s %s  %s %s (%s)\n\n",
		labelStyle.Render("above"), onOff(cfg.Above),
		labelStyle.Render("window"), onOff(cfg.Window.Active), cfg.Window.Resolution,
	)

	b.WriteString(m.renderItems(snap))

	if snap.Status != "" || m.err != nil {
		b.WriteString("\n")
		status := snap.Status
		if m.err != nil && status == "" {
			status = m.err.Error()
		}
		b.WriteString(statusStyle.Render(status))
		b.WriteString("\n")
	}

	if cfg.ShowLogs && len(m.logs) > 0 {
		b.WriteString(logBoxStyle.Render(strings.Join(m.logs, "\n")))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("↑/↓ move • enter apply • tab view • f favorite • x flag broken • s stop • r rescan • q quit"))
	return b.String()
}

func (m *Model) renderItems(snap Snapshot) string {
	if len(snap.Items) == 0 {
		return labelStyle.Render("no wallpapers in this view") + "\n"
	}
	rows := m.listRows()
	start := 0
	for i, id := range snap.Items {
		if id == snap.Selected {
			if i >= rows {
				start = i - rows + 1
			}
			break
		}
	}
	end := min(start+rows, len(snap.Items))

	var b strings.Builder
	for _, id := range snap.Items[start:end] {
		line := "  " + id
		if isFavorite(snap, id) {
			line += " " + favoriteStyle.Render("★")
		}
		if id == snap.Selected {
			line = selectedStyle.Render("> " + id)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(snap.Items) > rows {
		fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("%d-%d of %d", start+1, end, len(snap.Items))))
	}
	return b.String()
}

func (m *Model) listRows() int {
	if m.height <= 0 {
		return 15
	}
	// header, status, log box and help take roughly this much.
	return max(m.height-logRows-10, 3)
}

func isFavorite(snap Snapshot, id string) bool {
	return slices.Contains(snap.Config.Favorites, id)
}

func modeLine(timer, mode string) string {
	if mode == string(modes.ModeDelay) {
		return mode + " " + timer + "s"
	}
	return mode
}

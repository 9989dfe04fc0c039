package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	idleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// FinishedMsg is sent by the host once the request reaches a terminal
// outcome; the program quits on receipt.
type FinishedMsg struct{}

// Model is the root terminal model. It owns at most one screen at a
// time, swapped by the flow bridge's show and dismiss messages, and
// forwards everything else to whichever screen is up.
type Model struct {
	screen   screen
	width    int
	activity func()
}

// NewModel creates the root model. activity is invoked on every
// keystroke so the caller can feed an idle timer; it may be nil.
func NewModel(activity func()) Model {
	return Model{activity: activity}
}

func (m Model) Init() tea.Cmd { return nil }

// dropScreen detaches the current screen, aborting anything it still
// has in flight.
func (m *Model) dropScreen() {
	if s, ok := m.screen.(interface{ cancelPending() }); ok {
		s.cancelPending()
	}
	m.screen = nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case FinishedMsg:
		m.dropScreen()
		return m, tea.Quit

	case showGateMsg:
		m.screen = newGateScreen(msg)
		return m, gateWatch()
	case showPickerMsg:
		m.screen = newPickerScreen(msg)
		return m, nil
	case showUnlockerMsg:
		m.screen = newUnlockScreen(msg)
		return m, nil
	case showBrowserMsg:
		m.screen = newBrowserScreen(msg)
		return m, nil
	case dismissMsg:
		m.dropScreen()
		return m, nil

	case tea.KeyMsg:
		if m.activity != nil {
			m.activity()
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	if m.screen == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.screen, cmd = m.screen.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.screen == nil {
		return idleStyle.Render("waiting…") + "\n"
	}
	w := m.width
	if w <= 0 {
		w = 64
	}
	return m.screen.View(w) + "\n"
}

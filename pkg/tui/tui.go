// Package tui provides a live terminal monitor for MIDI input
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/input"
	"github.com/james-see/midiplug/pkg/plug"
)

// Acid-inspired color scheme
var (
	acidGreen  = lipgloss.Color("#39FF14")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(acidGreen).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	lineStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	sysexStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(acidGreen).
			Padding(1, 2)
)

// State represents the current monitor state
type State int

const (
	StateWaiting State = iota
	StateMonitoring
	StatePaused
)

// filters cycles through the kinds shown
var filters = append([]event.Kind{event.KindAny}, event.Kinds...)

// EventMsg delivers a dispatched event to the model
type EventMsg struct {
	Time  time.Time
	Event event.Event
}

type statsTickMsg time.Time

const maxLines = 500

// Model is the monitor model
type Model struct {
	state    State
	port     string
	lines    []EventMsg
	filter   int
	spinner  spinner.Model
	stats    func() input.Stats
	current  input.Stats
	received int
	width    int
	height   int
}

// New creates a monitor model. stats may be nil.
func New(port string, stats func() input.Stats) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(acidGreen)

	return Model{
		state:   StateWaiting,
		port:    port,
		spinner: s,
		stats:   stats,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, statsTick())
}

func statsTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statsTickMsg:
		if m.stats != nil {
			m.current = m.stats()
		}
		return m, statsTick()

	case EventMsg:
		m.received++
		if m.state == StatePaused {
			return m, nil
		}
		m.state = StateMonitoring
		m.lines = append(m.lines, msg)
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ", "p":
		switch m.state {
		case StatePaused:
			m.state = StateMonitoring
			if len(m.lines) == 0 {
				m.state = StateWaiting
			}
		default:
			m.state = StatePaused
		}
	case "c":
		m.lines = nil
		if m.state == StateMonitoring {
			m.state = StateWaiting
		}
	case "tab", "f":
		m.filter = (m.filter + 1) % len(filters)
	}
	return m, nil
}

// Filter returns the kind currently shown
func (m Model) Filter() event.Kind {
	return filters[m.filter]
}

// State returns the monitor state
func (m Model) State() State {
	return m.state
}

// Lines returns the events shown with the current filter, oldest first
func (m Model) Lines() []EventMsg {
	kind := m.Filter()
	if kind == event.KindAny {
		return m.lines
	}
	var out []EventMsg
	for _, l := range m.lines {
		if l.Event.Kind() == kind {
			out = append(out, l)
		}
	}
	return out
}

// View renders the monitor
func (m Model) View() string {
	var s strings.Builder

	title := fmt.Sprintf(" MIDIPLUG  %s ", m.port)
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	var body strings.Builder
	switch m.state {
	case StateWaiting:
		body.WriteString(fmt.Sprintf("%s Waiting for MIDI...", m.spinner.View()))
	default:
		lines := m.Lines()
		visible := m.visibleLines()
		if len(lines) > visible {
			lines = lines[len(lines)-visible:]
		}
		for i, l := range lines {
			text := fmt.Sprintf("%s  %-14s %v", l.Time.Format("15:04:05.000"), l.Event.Kind(), l.Event)
			if l.Event.Kind() == event.KindSysex {
				body.WriteString(sysexStyle.Render(text))
			} else {
				body.WriteString(lineStyle.Render(text))
			}
			if i < len(lines)-1 {
				body.WriteString("\n")
			}
		}
	}
	s.WriteString(boxStyle.Render(body.String()))

	// Footer
	status := fmt.Sprintf("filter: %s • events: %d", m.Filter(), m.received)
	if m.stats != nil {
		status += fmt.Sprintf(" • skipped: %d • sysex dropped: %d • faults: %d",
			m.current.Skipped, m.current.SysexDropped, m.current.Registry.Failed+m.current.Registry.Panicked)
	}
	if m.state == StatePaused {
		status += " • PAUSED"
	}
	s.WriteString(statusStyle.Render(status))

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("space: pause • tab: filter • c: clear • q: quit"))

	return s.String()
}

func (m Model) visibleLines() int {
	if m.height <= 12 {
		return 20
	}
	return m.height - 12
}

// Run starts the monitor on in until the user quits. Only events of kind
// reach it; channel filters channel-voice events, plug.AnyChannel for all.
func Run(in *input.Input, kind event.Kind, channel int) error {
	p := tea.NewProgram(New(in.Name(), in.Stats), tea.WithAltScreen())

	sub := in.Registry().Register(plug.EventFunc(func(ev event.Event) error {
		p.Send(EventMsg{Time: time.Now(), Event: ev})
		return nil
	}), kind, channel)
	if sub == nil {
		return fmt.Errorf("invalid filter: kind %v, channel %d", kind, channel)
	}
	defer in.Registry().Remove(sub)

	_, err := p.Run()
	return err
}

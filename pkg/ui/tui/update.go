package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"profilegrab/pkg/events"
)

// EventMsg carries one event of the session into the model
type EventMsg struct {
	Event events.Event
}

// StreamClosedMsg is sent once the session has emitted its last event
type StreamClosedMsg struct{}

// TickMsg is sent periodically to refresh elapsed times
type TickMsg time.Time

// Init starts the spinner, the refresh tick and the event pump
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), waitForEvent(m.stream))
}

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.bar.Update(msg)
		if bar, ok := pm.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case TickMsg:
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(msg.Event)
		return m, waitForEvent(m.stream)

	case StreamClosedMsg:
		m.finished = true
		if failed := m.Failures(); failed > 0 {
			m.AddLogMessage(LevelWarn, "Session finished with failures, press q to exit")
		} else {
			m.AddLogMessage(LevelSuccess, "Session finished, press q to exit")
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.finished && m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForEvent reads the next event off the stream
func waitForEvent(stream <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-stream
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

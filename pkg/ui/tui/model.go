package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
	"profilegrab/pkg/ui"
)

// Log levels
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarn    = "WARN"
	LevelError   = "ERROR"
)

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model of a scrape session over one or more users
// of a platform. It is fed by the event stream of the session.
type Model struct {
	spinner spinner.Model
	bar     progress.Model
	theme   theme

	platform models.Platform
	targets  []string
	trackers []*ui.Tracker
	current  int

	stream   <-chan events.Event
	cancel   context.CancelFunc
	finished bool

	sessionStartTime time.Time
	logMessages      []LogMessage
	maxLogMessages   int

	width    int
	height   int
	showHelp bool
}

// NewModel creates a model for the session scraping usernames on p. cancel
// aborts the session when the user quits early.
func NewModel(p models.Platform, usernames []string, stream <-chan events.Event, cancel context.CancelFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(cyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	trackers := make([]*ui.Tracker, len(usernames))
	for i := range trackers {
		trackers[i] = ui.NewTracker()
	}

	return &Model{
		spinner:          s,
		bar:              bar,
		theme:            newTheme(p),
		platform:         p,
		targets:          usernames,
		trackers:         trackers,
		stream:           stream,
		cancel:           cancel,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Current returns the index of the user being scraped
func (m *Model) Current() int {
	return m.current
}

// Tracker returns the run state of the i-th user
func (m *Model) Tracker(i int) *ui.Tracker {
	return m.trackers[i]
}

// Finished reports whether the event stream has ended
func (m *Model) Finished() bool {
	return m.finished
}

// Failures counts users whose run ended in an error
func (m *Model) Failures() int {
	n := 0
	for _, t := range m.trackers {
		if t.Failed {
			n++
		}
	}
	return n
}

// applyEvent routes an event to the run it belongs to. Runs are sequential,
// so a terminal event moves on to the next user.
func (m *Model) applyEvent(e events.Event) {
	if m.current >= len(m.trackers) {
		return
	}
	t := m.trackers[m.current]
	t.Apply(e)

	user := m.targets[m.current]
	switch e.Type {
	case events.TypeStatus:
		m.AddLogMessage(LevelInfo, user+": "+e.Message())
	case events.TypeProfile:
		if t.Profile != nil {
			m.AddLogMessage(LevelInfo, user+": profile "+t.Profile.URL)
		}
	case events.TypeError:
		m.AddLogMessage(LevelError, user+": "+e.Message())
	case events.TypeDone:
		m.AddLogMessage(LevelSuccess, e.Message())
	}

	if e.Terminal() {
		m.current++
		if m.current < len(m.trackers) {
			m.trackers[m.current].StartTime = time.Now()
		}
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
	"profilegrab/pkg/scraper"
)

func feed(m *Model, evs ...events.Event) {
	for _, e := range evs {
		m.Update(EventMsg{Event: e})
	}
}

func TestModelFollowsRuns(t *testing.T) {
	m := NewModel(models.Instagram, []string{"alice", "bob"}, nil, nil)

	feed(m,
		events.Status("Connecting to instagram"),
		events.Profile(models.Profile{Name: "Alice"}),
		events.Status("Found Alice, scrolling through posts"),
		events.Progress(4),
	)
	assert.Equal(t, 0, m.Current())
	assert.Equal(t, scraper.StateScrolling, m.Tracker(0).State)
	assert.Equal(t, 4, m.Tracker(0).Found)

	feed(m,
		events.Status("Collected 4 media, downloading"),
		events.Done("Finished alice: 4 downloaded, 0 skipped, 0 failed"),
		events.Error("Profile bob not found on instagram"),
	)
	assert.Equal(t, 2, m.Current())
	assert.True(t, m.Tracker(0).Finished())
	assert.False(t, m.Tracker(0).Failed)
	assert.True(t, m.Tracker(1).Failed)
	assert.Equal(t, 1, m.Failures())

	// stray events after the last run are ignored
	feed(m, events.Status("late"))
	assert.Equal(t, 2, m.Current())

	m.Update(StreamClosedMsg{})
	assert.True(t, m.Finished())
	require.NotEmpty(t, m.logMessages)
	last := m.logMessages[len(m.logMessages)-1]
	assert.Equal(t, LevelWarn, last.Level)
}

func TestModelLogIsBounded(t *testing.T) {
	m := NewModel(models.Threads, []string{"alice"}, nil, nil)
	for i := 0; i < 80; i++ {
		m.AddLogMessage(LevelInfo, "message")
	}
	assert.Len(t, m.logMessages, m.maxLogMessages)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)
}

func TestQuitCancelsRunningSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewModel(models.Facebook, []string{"alice"}, nil, cancel)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Error(t, ctx.Err())
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan events.Event, 1)
	ch <- events.Progress(2)
	close(ch)

	msg := waitForEvent(ch)()
	require.IsType(t, EventMsg{}, msg)
	assert.Equal(t, 2, msg.(EventMsg).Event.Found())
	assert.Equal(t, StreamClosedMsg{}, waitForEvent(ch)())
}

func TestView(t *testing.T) {
	m := NewModel(models.Instagram, []string{"alice"}, nil, nil)
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	feed(m, events.Status("Connecting to instagram"))
	view := m.View()
	assert.Contains(t, view, "instagram/alice")
	assert.Contains(t, view, "AUTHENTICATING")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{-time.Second, "00:00"},
		{65 * time.Second, "01:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}

	for _, test := range tests {
		if got := formatDuration(test.d); got != test.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", test.d, got, test.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
	"profilegrab/pkg/scraper"
)

func runEvents() []events.Event {
	return []events.Event{
		events.Status("Connecting to instagram"),
		events.Profile(models.Profile{URL: "https://www.instagram.com/alice/", Name: "Alice", ID: "42"}),
		events.Status("Found Alice, scrolling through posts"),
		events.Progress(3),
		events.Progress(7),
		events.Status("Collected 7 media, downloading"),
		events.Done("Finished alice: 7 downloaded, 0 skipped, 0 failed"),
	}
}

func TestTrackerStages(t *testing.T) {
	tr := NewTracker()
	want := []scraper.State{
		scraper.StateAuthenticating,
		scraper.StateProfileLoaded,
		scraper.StateScrolling,
		scraper.StateScrolling,
		scraper.StateScrolling,
		scraper.StateDownloading,
		scraper.StateDone,
	}
	for i, e := range runEvents() {
		tr.Apply(e)
		if tr.State != want[i] {
			t.Errorf("after event %d (%s): state = %s, want %s", i, e.Type, tr.State, want[i])
		}
	}

	assert.True(t, tr.Finished())
	assert.False(t, tr.Failed)
	assert.Equal(t, 7, tr.Found)
	require.NotNil(t, tr.Profile)
	assert.Equal(t, "Alice", tr.Profile.Name)
	assert.Equal(t, 1.0, tr.Percent())
	assert.True(t, strings.HasSuffix(tr.StageBar(10), "] DONE"))
}

func TestTrackerWithoutProgressEvents(t *testing.T) {
	tr := NewTracker()
	tr.Apply(events.Status("Connecting to threads"))
	tr.Apply(events.Profile(models.Profile{Name: "Bob"}))
	tr.Apply(events.Status("Found Bob, scrolling through posts"))
	tr.Apply(events.Status("Collected 0 media, downloading"))
	assert.Equal(t, scraper.StateDownloading, tr.State)
}

func TestTrackerError(t *testing.T) {
	tr := NewTracker()
	tr.Apply(events.Error("No saved session for instagram"))
	assert.True(t, tr.Failed)
	assert.True(t, tr.Finished())
	assert.Equal(t, scraper.StateInit, tr.State)
	assert.Equal(t, "No saved session for instagram", tr.Message)
}

func TestPrinter(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	for _, e := range runEvents() {
		require.NoError(t, p.Emit(e))
	}

	out := buf.String()
	assert.Contains(t, out, "[STATUS] Connecting to instagram\n")
	assert.Contains(t, out, "[PROFILE] Alice (42) https://www.instagram.com/alice/\n")
	assert.Contains(t, out, "\r[FOUND] 3 media")
	assert.Contains(t, out, "\r[FOUND] 7 media")
	// the progress line is closed before the next status
	assert.Contains(t, out, "\n[STATUS] Collected 7 media, downloading\n")
	assert.Contains(t, out, "[DONE] Finished alice: 7 downloaded, 0 skipped, 0 failed in ")
	assert.Equal(t, 0, p.Failures())
}

func TestPrinterStartsNewRunAfterTerminal(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	var buf bytes.Buffer
	p := NewPrinter(&buf)
	require.NoError(t, p.Emit(events.Error("Profile ghost not found on instagram")))
	require.NoError(t, p.Emit(events.Status("Connecting to instagram")))

	assert.Equal(t, 1, p.Failures())
	assert.Equal(t, scraper.StateAuthenticating, p.tracker.State)
	assert.Contains(t, buf.String(), "[ERROR] Profile ghost not found on instagram\n")
}

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func TestNotifierOnlyTerminalEvents(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier(s, "profilegrab alice")

	for _, e := range runEvents() {
		require.NoError(t, n.Emit(e))
	}
	require.NoError(t, n.Emit(events.Error("boom")))

	assert.Equal(t, []string{"profilegrab alice", "profilegrab alice failed"}, s.titles)
	assert.Equal(t, "boom", s.messages[1])
}

func TestNotifierWithoutSender(t *testing.T) {
	assert.NoError(t, NewNotifier(nil, "x").Emit(events.Done("ok")))
}

func TestPrintHelpers(t *testing.T) {
	SetColor(false)
	defer SetColor(true)

	var buf bytes.Buffer
	PrintInfo(&buf, "Output", "./downloads")
	PrintError(&buf, "Scrape failed", assert.AnError)
	assert.Equal(t, "Output: ./downloads\nScrape failed: "+assert.AnError.Error()+"\n", buf.String())
}

func TestXMLEscape(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", xmlEscape("a <b> & c"))
}

package ui

import (
	"fmt"
	"strings"
	"time"

	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
	"profilegrab/pkg/scraper"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// stages in display order; extracting is too short to be observed
var stages = []scraper.State{
	scraper.StateInit,
	scraper.StateAuthenticating,
	scraper.StateProfileLoaded,
	scraper.StateScrolling,
	scraper.StateDownloading,
	scraper.StateDone,
}

// Tracker folds the events of one run into a display state. The event stream
// does not name states, so the stage is inferred from the event order.
type Tracker struct {
	State     scraper.State
	Profile   *models.Profile
	Found     int
	Message   string
	Failed    bool
	StartTime time.Time
	EndTime   time.Time
}

// NewTracker starts tracking a run
func NewTracker() *Tracker {
	return &Tracker{State: scraper.StateInit, StartTime: time.Now()}
}

// Apply records an event
func (t *Tracker) Apply(e events.Event) {
	switch e.Type {
	case events.TypeStatus:
		t.Message = e.Message()
		switch t.State {
		case scraper.StateInit:
			t.State = scraper.StateAuthenticating
		case scraper.StateProfileLoaded:
			t.State = scraper.StateScrolling
		case scraper.StateScrolling:
			t.State = scraper.StateDownloading
		}
	case events.TypeProfile:
		if p, ok := e.Data.(models.Profile); ok {
			t.Profile = &p
		}
		t.State = scraper.StateProfileLoaded
	case events.TypeProgress:
		t.Found = e.Found()
		t.State = scraper.StateScrolling
	case events.TypeError:
		t.Message = e.Message()
		t.Failed = true
		t.EndTime = time.Now()
	case events.TypeDone:
		t.Message = e.Message()
		t.State = scraper.StateDone
		t.EndTime = time.Now()
	}
}

// Finished reports whether a terminal event was seen
func (t *Tracker) Finished() bool {
	return !t.EndTime.IsZero()
}

// Elapsed is the run time so far, or the total once finished
func (t *Tracker) Elapsed() time.Duration {
	if t.Finished() {
		return t.EndTime.Sub(t.StartTime)
	}
	return time.Since(t.StartTime)
}

// Rate returns media discovered per minute
func (t *Tracker) Rate() float64 {
	elapsed := t.Elapsed().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(t.Found) / elapsed
}

// Stage returns the position of the current state and the number of stages
func (t *Tracker) Stage() (int, int) {
	for i, s := range stages {
		if s == t.State {
			return i, len(stages) - 1
		}
	}
	return 0, len(stages) - 1
}

// Percent is the share of stages completed
func (t *Tracker) Percent() float64 {
	i, n := t.Stage()
	return float64(i) / float64(n)
}

// StageBar renders the stage progress as a text bar
func (t *Tracker) StageBar(width int) string {
	filled := int(t.Percent() * float64(width))
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %s", bar, t.State)
}

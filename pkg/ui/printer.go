package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"profilegrab/pkg/events"
)

// Printer renders run events as colored console lines. Progress events
// rewrite the same line until another event arrives.
type Printer struct {
	mu         sync.Mutex
	w          io.Writer
	tracker    *Tracker
	inProgress bool
	failures   int
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, tracker: NewTracker()}
}

// Emit implements events.Emitter
func (p *Printer) Emit(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tracker.Finished() {
		p.tracker = NewTracker()
	}
	p.tracker.Apply(e)

	if e.Type != events.TypeProgress && p.inProgress {
		fmt.Fprintln(p.w)
		p.inProgress = false
	}

	var err error
	switch e.Type {
	case events.TypeStatus:
		_, err = fmt.Fprintf(p.w, "%s %s\n", Magenta("[STATUS]"), Yellow(e.Message()))
	case events.TypeProfile:
		if pr := p.tracker.Profile; pr != nil {
			_, err = fmt.Fprintf(p.w, "%s %s %s\n", Cyan("[PROFILE]"), Yellow(displayName(pr.Name, pr.ID)), Dim(pr.URL))
		}
	case events.TypeProgress:
		p.inProgress = true
		_, err = fmt.Fprintf(p.w, "\r%s %d media | %.1f/min | %s",
			Green("[FOUND]"), p.tracker.Found, p.tracker.Rate(), formatElapsed(p.tracker.Elapsed()))
	case events.TypeError:
		p.failures++
		_, err = fmt.Fprintf(p.w, "%s %s\n", Red("[ERROR]"), Red(e.Message()))
	case events.TypeDone:
		_, err = fmt.Fprintf(p.w, "%s %s %s\n", Green("[DONE]"), Green(e.Message()), Dim("in "+formatElapsed(p.tracker.Elapsed())))
	}
	return err
}

// Failures counts the error events seen so far
func (p *Printer) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	if id == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func formatElapsed(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

package events

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"
)

// Emitter forwards events to a consumer as they happen
type Emitter interface {
	Emit(e Event) error
}

type flusher interface {
	Flush()
}

// LineEmitter writes one JSON object per line
type LineEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineEmitter(w io.Writer) *LineEmitter {
	return &LineEmitter{w: w}
}

func (l *LineEmitter) Emit(e Event) error {
	b, err := Encode(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if f, ok := l.w.(flusher); ok {
		f.Flush()
	}
	return nil
}

// SSEEmitter writes server-sent event frames ("data: <json>\n\n") and
// flushes after each one
type SSEEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSSEEmitter(w io.Writer) *SSEEmitter {
	return &SSEEmitter{w: w}
}

func (s *SSEEmitter) Emit(e Event) error {
	b, err := Encode(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	s.flush()
	return nil
}

// Heartbeat writes an SSE comment so idle proxies keep the stream open
func (s *SSEEmitter) Heartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	s.flush()
	return nil
}

func (s *SSEEmitter) flush() {
	if f, ok := s.w.(flusher); ok {
		f.Flush()
	}
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(Event) error

func (f EmitterFunc) Emit(e Event) error { return f(e) }

// Multi emits to every emitter in order, stopping at the first error
func Multi(emitters ...Emitter) Emitter {
	return EmitterFunc(func(e Event) error {
		for _, em := range emitters {
			if err := em.Emit(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Forward emits each event of seq. It returns the last event and stops early
// when emitting fails, which ends the sequence and so the run behind it.
func Forward(seq iter.Seq[Event], em Emitter) (Event, error) {
	var last Event
	for e := range seq {
		last = e
		if err := em.Emit(e); err != nil {
			return last, err
		}
	}
	return last, nil
}

// Channel runs seq on its own goroutine and delivers its events over a
// channel, closed after the last one. Cancelling ctx stops delivery.
func Channel(ctx context.Context, seq iter.Seq[Event]) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for e := range seq {
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

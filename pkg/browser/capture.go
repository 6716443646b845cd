package browser

import (
	"io"
	"sync"
)

// Capture keeps every exchange seen by the sessions it wraps so a scrape
// can be exported as HAR afterwards. Exchanges a run clears to bound memory
// are saved first.
type Capture struct {
	mu        sync.Mutex
	exchanges []Exchange
}

func NewCapture() *Capture {
	return &Capture{}
}

// Wrap returns s with its exchanges mirrored into the capture
func (c *Capture) Wrap(s Session) Session {
	return &capturedSession{Session: s, capture: c}
}

func (c *Capture) add(ex []Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, ex...)
}

// Exchanges returns what was captured so far
func (c *Capture) Exchanges() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Exchange(nil), c.exchanges...)
}

// WriteHAR exports the captured exchanges
func (c *Capture) WriteHAR(w io.Writer) error {
	return ExportHAR(w, c.Exchanges())
}

type capturedSession struct {
	Session
	capture *Capture
	once    sync.Once
}

func (s *capturedSession) ClearExchanges() {
	s.capture.add(s.Session.Exchanges())
	s.Session.ClearExchanges()
}

func (s *capturedSession) Close() error {
	s.once.Do(func() {
		s.capture.add(s.Session.Exchanges())
	})
	return s.Session.Close()
}

package browser

import (
	"sync"
	"time"
)

// bodyWait bounds how long a snapshot or teardown waits for body fetches
const bodyWait = 2 * time.Second

// inflight counts response body fetches still running
type inflight struct {
	mu     sync.Mutex
	n      int
	idle   chan struct{} // closed while n == 0
	closed bool
}

func newInflight() *inflight {
	idle := make(chan struct{})
	close(idle)
	return &inflight{idle: idle}
}

// start registers a fetch. It fails once the session is shutting down.
func (f *inflight) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
	return true
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
}

// wait blocks until the fetches running at the time of the call have all
// ended, or d has passed. It reports whether they ended.
func (f *inflight) wait(d time.Duration) bool {
	f.mu.Lock()
	idle := f.idle
	f.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-idle:
		return true
	case <-t.C:
		return false
	}
}

// shutdown refuses fetches from now on
func (f *inflight) shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

package browser

import (
	"strings"
	"sync"
)

// recorder accumulates exchanges fed to it by network events. Requests sit
// in pending until their body arrives.
type recorder struct {
	mu       sync.Mutex
	scopes   []string
	pending  map[string]*Exchange
	complete []Exchange
}

func newRecorder() *recorder {
	return &recorder{pending: map[string]*Exchange{}}
}

func (r *recorder) setScopes(patterns []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append([]string(nil), patterns...)
}

func (r *recorder) request(req Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !InScope(r.scopes, req.URL) {
		return
	}
	r.pending[req.ID] = &Exchange{Request: req}
}

func (r *recorder) response(id string, status int, headers map[string]string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.pending[id]
	if !ok {
		return false
	}
	ex.Response = &Response{Status: status, Headers: headers}
	return true
}

// tracked reports whether id is an in-scope request that got a response
func (r *recorder) tracked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.pending[id]
	return ok && ex.Response != nil
}

// finish attaches the body and moves the exchange to the complete list.
// Bodies fetched through the devtools protocol are already decoded, so the
// encoding header is dropped to keep decoders from running twice.
func (r *recorder) finish(id string, body []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, ok := r.pending[id]
	if !ok || ex.Response == nil {
		return
	}
	delete(r.pending, id)
	for k := range ex.Response.Headers {
		if strings.EqualFold(k, "Content-Encoding") {
			delete(ex.Response.Headers, k)
		}
	}
	ex.Response.Body = body
	r.complete = append(r.complete, *ex)
}

func (r *recorder) fail(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

func (r *recorder) snapshot() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Exchange, len(r.complete))
	copy(out, r.complete)
	return out
}

func (r *recorder) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = nil
	r.pending = map[string]*Exchange{}
}

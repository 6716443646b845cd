package browser

import (
	"context"
	"errors"
	"sync"

	"profilegrab/pkg/session"
)

// ErrClosed is returned by a MockSession used after Close
var ErrClosed = errors.New("browser session closed")

// MockSession is a scripted Session for tests. Page heights and ready
// states are consumed in order and the last value repeats. Exchanges in
// OnNavigate are recorded when that URL is visited; Batches[i] is recorded
// by the i-th scroll to the bottom.
type MockSession struct {
	mu sync.Mutex

	Heights     []int64
	ReadyStates []string
	Batches     [][]Exchange
	OnNavigate  map[string][]Exchange
	Pages       map[string]string
	Titles      map[string]string
	NavigateErr map[string]error
	EvalErr     error

	heightIdx int
	readyIdx  int
	scrolls   int

	exchanges   []Exchange
	scopes      []string
	url         string
	cookies     []session.Cookie
	navigations []string
	clears      int
	closed      int
}

// NewMockSession returns a mock whose page never grows and is always ready
func NewMockSession() *MockSession {
	return &MockSession{
		OnNavigate:  map[string][]Exchange{},
		Pages:       map[string]string{},
		Titles:      map[string]string{},
		NavigateErr: map[string]error{},
	}
}

func (m *MockSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed > 0 {
		return ErrClosed
	}
	m.navigations = append(m.navigations, url)
	if err := m.NavigateErr[url]; err != nil {
		return err
	}
	m.url = url
	m.record(m.OnNavigate[url])
	return nil
}

func (m *MockSession) record(batch []Exchange) {
	for _, ex := range batch {
		if InScope(m.scopes, ex.Request.URL) {
			m.exchanges = append(m.exchanges, ex)
		}
	}
}

func (m *MockSession) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed > 0 {
		return ErrClosed
	}
	if m.EvalErr != nil {
		return m.EvalErr
	}

	switch script {
	case ScriptPageHeight:
		var h int64 = 1000
		if len(m.Heights) > 0 {
			h = m.Heights[min(m.heightIdx, len(m.Heights)-1)]
			m.heightIdx++
		}
		return assign(out, h)
	case ScriptReadyState:
		state := "complete"
		if len(m.ReadyStates) > 0 {
			state = m.ReadyStates[min(m.readyIdx, len(m.ReadyStates)-1)]
			m.readyIdx++
		}
		return assign(out, state)
	case ScriptScrollToBottom:
		if m.scrolls < len(m.Batches) {
			m.record(m.Batches[m.scrolls])
		}
		m.scrolls++
		return nil
	default:
		return assign(out, nil)
	}
}

func (m *MockSession) Exchanges() []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Exchange(nil), m.exchanges...)
}

func (m *MockSession) ClearExchanges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = nil
	m.clears++
}

func (m *MockSession) SetScopes(patterns ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append([]string(nil), patterns...)
}

func (m *MockSession) Query(ctx context.Context, selector string) ([]Element, error) {
	m.mu.Lock()
	html, ok := m.Pages[m.url]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return QueryHTML(html, selector)
}

func (m *MockSession) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = append(m.cookies, cookies...)
	return nil
}

func (m *MockSession) Cookies(ctx context.Context) ([]session.Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Cookie(nil), m.cookies...), nil
}

func (m *MockSession) CurrentURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url, nil
}

func (m *MockSession) Title(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Titles[m.url], nil
}

func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Navigations returns every URL passed to Navigate, in order
func (m *MockSession) Navigations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.navigations...)
}

// Scrolls counts scroll-to-bottom commands
func (m *MockSession) Scrolls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrolls
}

// Clears counts ClearExchanges calls
func (m *MockSession) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Closed reports how many times Close was called
func (m *MockSession) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// InjectedCookies returns the cookies handed to SetCookies
func (m *MockSession) InjectedCookies() []session.Cookie {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Cookie(nil), m.cookies...)
}

// JSONExchange builds a completed exchange tagged with a friendly-name header
func JSONExchange(url, friendlyName, body string) Exchange {
	return Exchange{
		Request: Request{
			URL:     url,
			Method:  "POST",
			Headers: map[string]string{"X-FB-Friendly-Name": friendlyName},
		},
		Response: &Response{
			Status:  200,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    []byte(body),
		},
	}
}

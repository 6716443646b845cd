// Package browser defines the browser surface a scrape run drives and its
// chromedp implementation. Everything here blocks the caller until the
// browser answers; only one run may own a Session at a time.
package browser

import (
	"context"
	"strings"

	"profilegrab/pkg/session"
)

// Session is a scriptable browser tab that records network exchanges
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script in the page and decodes its result into out
	Evaluate(ctx context.Context, script string, out interface{}) error

	// Exchanges returns the completed exchanges recorded since the session
	// started or since the last ClearExchanges.
	Exchanges() []Exchange
	ClearExchanges()
	// SetScopes limits recording to URLs matching the patterns. A trailing
	// "*" matches any suffix. No patterns records everything.
	SetScopes(patterns ...string)

	// Query runs a CSS selector against the current document
	Query(ctx context.Context, selector string) ([]Element, error)

	SetCookies(ctx context.Context, cookies []session.Cookie) error
	Cookies(ctx context.Context) ([]session.Cookie, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Request is the recorded half of an exchange sent by the page
type Request struct {
	ID      string
	URL     string
	Method  string
	Headers map[string]string
}

// Response is the recorded reply. Body is as received on the wire unless
// the Content-Encoding header is absent.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Exchange is one intercepted request and, once complete, its response
type Exchange struct {
	Request  Request
	Response *Response
}

// RequestHeader looks up a request header case-insensitively
func (e Exchange) RequestHeader(name string) string {
	return lookup(e.Request.Headers, name)
}

// Header looks up a response header case-insensitively
func (r *Response) Header(name string) string {
	if r == nil {
		return ""
	}
	return lookup(r.Headers, name)
}

func lookup(h map[string]string, name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// InScope reports whether url matches any of the scope patterns
func InScope(patterns []string, url string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(url, prefix) {
				return true
			}
			continue
		}
		if url == p {
			return true
		}
	}
	return false
}

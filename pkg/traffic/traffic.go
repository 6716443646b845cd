// Package traffic filters intercepted exchanges by the GraphQL operation
// name a platform's frontend sends, and turns matching bodies into JSON.
package traffic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/logger"
)

// FriendlyNameHeader names the GraphQL operation on Meta platforms
const FriendlyNameHeader = "x-fb-friendly-name"

// Signature identifies the exchanges carrying one kind of data
type Signature struct {
	Header string
	Names  []string
}

// FriendlyName builds a signature on the x-fb-friendly-name header
func FriendlyName(names ...string) Signature {
	return Signature{Header: FriendlyNameHeader, Names: names}
}

// Match reports whether ex completed and carries one of the signature's names
func (s Signature) Match(ex browser.Exchange) bool {
	if ex.Response == nil {
		return false
	}
	return slices.Contains(s.Names, ex.RequestHeader(s.Header))
}

// Body decodes a matched exchange's response body
func Body(ex browser.Exchange) ([]byte, error) {
	if ex.Response == nil {
		return nil, fmt.Errorf("exchange %s has no response", ex.Request.URL)
	}
	return Decode(ex.Response.Body, ex.Response.Header("Content-Encoding"))
}

// Documents decodes and parses every exchange matching sig. Exchanges that
// fail to decode or parse are logged and skipped; they are never fatal.
// A body may hold several JSON documents back to back, as streamed
// GraphQL responses do; each is returned.
func Documents(exchanges []browser.Exchange, sig Signature, log logger.Logger) []json.RawMessage {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var docs []json.RawMessage
	for _, ex := range exchanges {
		if !sig.Match(ex) {
			continue
		}
		body, err := Body(ex)
		if err != nil {
			log.WithError(err).DebugWithFields("Skipping undecodable exchange", map[string]interface{}{"url": ex.Request.URL})
			continue
		}
		parsed, err := splitDocuments(body)
		if err != nil {
			log.WithError(err).DebugWithFields("Skipping malformed exchange", map[string]interface{}{"url": ex.Request.URL})
			continue
		}
		docs = append(docs, parsed...)
	}
	return docs
}

func splitDocuments(body []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(body)))
	var out []json.RawMessage
	for dec.More() {
		var doc json.RawMessage
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return out, nil
}

// DecodeAll unmarshals each document into T, skipping those that do not fit
func DecodeAll[T any](docs []json.RawMessage, log logger.Logger) []T {
	if log == nil {
		log = logger.NewNopLogger()
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d, &v); err != nil {
			log.WithError(err).Debug("Skipping document with unexpected shape")
			continue
		}
		out = append(out, v)
	}
	return out
}

// Package events is the typed progress stream of a scrape run. A run yields
// status, profile and progress events in order and ends with exactly one
// done or error event.
package events

import (
	"encoding/json"
	"fmt"

	"profilegrab/pkg/models"
)

// Type discriminates events
type Type string

const (
	TypeStatus   Type = "status"
	TypeProfile  Type = "profile"
	TypeProgress Type = "progress"
	TypeError    Type = "error"
	TypeDone     Type = "done"
)

// Event is one unit of the stream, serialized as {"type":...,"data":...}
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// MessageData is the payload of status, error and done events
type MessageData struct {
	Message string `json:"message"`
}

// ProgressData is the payload of progress events
type ProgressData struct {
	Found int `json:"found"`
}

func Status(format string, args ...any) Event {
	return Event{Type: TypeStatus, Data: MessageData{Message: fmt.Sprintf(format, args...)}}
}

func Profile(p models.Profile) Event {
	return Event{Type: TypeProfile, Data: p}
}

func Progress(found int) Event {
	return Event{Type: TypeProgress, Data: ProgressData{Found: found}}
}

func Error(message string) Event {
	return Event{Type: TypeError, Data: MessageData{Message: message}}
}

func Done(message string) Event {
	return Event{Type: TypeDone, Data: MessageData{Message: message}}
}

// Terminal reports whether nothing may follow e
func (e Event) Terminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}

// Message returns the message of status, error and done events
func (e Event) Message() string {
	if m, ok := e.Data.(MessageData); ok {
		return m.Message
	}
	return ""
}

// Found returns the count of a progress event
func (e Event) Found() int {
	if p, ok := e.Data.(ProgressData); ok {
		return p.Found
	}
	return 0
}

// Encode serializes e as a single JSON object
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

type wireEvent struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses a serialized event back into its typed payload
func Decode(b []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}

	e := Event{Type: w.Type}
	var err error
	switch w.Type {
	case TypeStatus, TypeError, TypeDone:
		var m MessageData
		err = json.Unmarshal(w.Data, &m)
		e.Data = m
	case TypeProgress:
		var p ProgressData
		err = json.Unmarshal(w.Data, &p)
		e.Data = p
	case TypeProfile:
		var p models.Profile
		err = json.Unmarshal(w.Data, &p)
		e.Data = p
	default:
		return Event{}, fmt.Errorf("unknown event type %q", w.Type)
	}
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode %s payload: %w", w.Type, err)
	}
	return e, nil
}

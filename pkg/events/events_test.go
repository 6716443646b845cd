package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/models"
)

func TestEncodeShapes(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Status("connecting to %s", "instagram"), `{"type":"status","data":{"message":"connecting to instagram"}}`},
		{Progress(12), `{"type":"progress","data":{"found":12}}`},
		{Error("profile not found"), `{"type":"error","data":{"message":"profile not found"}}`},
		{Done("finished"), `{"type":"done","data":{"message":"finished"}}`},
		{Profile(models.Profile{URL: "u", Name: "n", ID: "1", Timestamp: "2024-01-01 00:00:00"}),
			`{"type":"profile","data":{"url":"u","name":"n","id":"1","timestamp":"2024-01-01 00:00:00"}}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			b, err := Encode(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			back, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, tt.event, back)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"bogus","data":{}}`))
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Done("x").Terminal())
	assert.True(t, Error("x").Terminal())
	assert.False(t, Progress(1).Terminal())
	assert.False(t, Status("x").Terminal())
}

func TestSSEEmitterFraming(t *testing.T) {
	var buf bytes.Buffer
	em := NewSSEEmitter(&buf)
	require.NoError(t, em.Emit(Progress(3)))
	require.NoError(t, em.Emit(Done("ok")))

	assert.Equal(t,
		"data: {\"type\":\"progress\",\"data\":{\"found\":3}}\n\n"+
			"data: {\"type\":\"done\",\"data\":{\"message\":\"ok\"}}\n\n",
		buf.String())

	require.NoError(t, em.Heartbeat())
	assert.Contains(t, buf.String(), "\n\n: heartbeat ")
	assert.True(t, strings.HasSuffix(buf.String(), "\n\n"))
}

func TestLineEmitter(t *testing.T) {
	var buf bytes.Buffer
	em := NewLineEmitter(&buf)
	require.NoError(t, em.Emit(Status("a")))
	require.NoError(t, em.Emit(Progress(1)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	e, err := Decode([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, 1, e.Found())
}

func seqOf(evs ...Event) func(func(Event) bool) {
	return func(yield func(Event) bool) {
		for _, e := range evs {
			if !yield(e) {
				return
			}
		}
	}
}

func TestForwardStopsOnEmitError(t *testing.T) {
	var got []Event
	em := EmitterFunc(func(e Event) error {
		got = append(got, e)
		if len(got) == 2 {
			return errors.New("client gone")
		}
		return nil
	})

	last, err := Forward(seqOf(Status("a"), Progress(1), Progress(2), Done("d")), em)
	require.Error(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, last.Found())
}

func TestChannel(t *testing.T) {
	var got []Event
	for e := range Channel(context.Background(), seqOf(Status("a"), Done("b"))) {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Message())
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	em := Multi(NewLineEmitter(&a), NewLineEmitter(&b))
	require.NoError(t, em.Emit(Done("x")))
	assert.Equal(t, a.String(), b.String())
}

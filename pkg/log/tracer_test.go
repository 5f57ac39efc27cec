package log

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/panduza/panduza-go/pkg/wire"
)

type captureLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureLogger) Log(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func TestNilTracer(t *testing.T) {
	if NewTracer(nil) != nil {
		t.Error("NewTracer(nil) != nil")
	}
	if NewTracer(NoopLogger{}) != nil {
		t.Error("NewTracer(NoopLogger{}) != nil")
	}
	var tr *Tracer
	tr.Frame(DirectionIn, "t", []byte{1})
	tr.Message(DirectionOut, "t", wire.NewMessage(1, 2, &wire.BooleanPayload{Value: true}))
	tr.DecodeError("t", nil, errors.New("bad"))
	tr.State(StateEntityAttribute, "t", "", "open", "")
	tr.Error(LayerAttribute, DirectionOut, "t", "publish", errors.New("refused"))
	if tr.SessionID() != "" {
		t.Error("nil tracer has a session id")
	}
}

func TestTracerStampsEvents(t *testing.T) {
	capture := &captureLogger{}
	tr := NewTracer(capture)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	tr.Frame(DirectionIn, "pza/a/att", make([]byte, MaxFrameData+10))
	tr.Message(DirectionOut, "pza/a/cmd", wire.NewMessage(7, 9, &wire.BooleanPayload{Value: true}))
	tr.DecodeError("pza/a/att", []byte{0xff}, errors.New("bad frame"))

	if len(capture.events) != 3 {
		t.Fatalf("got %d events", len(capture.events))
	}
	for _, e := range capture.events {
		if e.SessionID != tr.SessionID() || e.SessionID == "" {
			t.Errorf("session id = %q", e.SessionID)
		}
		if !e.Timestamp.Equal(fixed) {
			t.Errorf("timestamp = %v", e.Timestamp)
		}
	}

	frame := capture.events[0].Frame
	if frame == nil || !frame.Truncated || len(frame.Data) != MaxFrameData || frame.Size != MaxFrameData+10 {
		t.Errorf("frame = %+v", frame)
	}

	msg := capture.events[1].Message
	if msg == nil || msg.Kind != wire.KindBoolean || msg.Source != 7 || msg.Sequence != 9 {
		t.Errorf("message = %+v", msg)
	}

	de := capture.events[2]
	if de.Category != CategoryDecodeError || de.Error == nil || de.Error.Message != "bad frame" {
		t.Errorf("decode error event = %+v", de)
	}
}

func TestParseNames(t *testing.T) {
	for c := CategoryFrame; c <= CategoryError; c++ {
		got, ok := ParseCategory(c.String())
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %v, %v", c.String(), got, ok)
		}
	}
	for l := LayerTransport; l <= LayerAttribute; l++ {
		got, ok := ParseLayer(l.String())
		if !ok || got != l {
			t.Errorf("ParseLayer(%q) = %v, %v", l.String(), got, ok)
		}
	}
	if _, ok := ParseCategory("NOPE"); ok {
		t.Error("ParseCategory accepted unknown name")
	}
}

package log

import (
	"time"

	"github.com/google/uuid"

	"github.com/panduza/panduza-go/pkg/wire"
)

// Tracer stamps events with the session id and current time before handing
// them to a Logger. A nil *Tracer discards everything.
type Tracer struct {
	logger    Logger
	sessionID string
	now       func() time.Time
}

// NewTracer returns a Tracer for a new session, or nil when logger is nil.
func NewTracer(logger Logger) *Tracer {
	if logger == nil {
		return nil
	}
	switch l := logger.(type) {
	case NoopLogger:
		return nil
	case *MultiLogger:
		if l.Len() == 0 {
			return nil
		}
	}
	return &Tracer{logger: logger, sessionID: uuid.NewString(), now: time.Now}
}

// SessionID returns the id stamped on every event.
func (t *Tracer) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

func (t *Tracer) emit(e Event) {
	e.Timestamp = t.now()
	e.SessionID = t.sessionID
	t.logger.Log(e)
}

// Frame records a raw frame.
func (t *Tracer) Frame(dir Direction, topic string, data []byte) {
	if t == nil {
		return
	}
	t.emit(Event{
		Direction: dir,
		Layer:     LayerTransport,
		Category:  CategoryFrame,
		Topic:     topic,
		Frame:     NewFrameEvent(data),
	})
}

// Message records a decoded or encoded message.
func (t *Tracer) Message(dir Direction, topic string, msg *wire.Message) {
	if t == nil || msg == nil || msg.Payload == nil {
		return
	}
	t.emit(Event{
		Direction: dir,
		Layer:     LayerWire,
		Category:  CategoryFrame,
		Topic:     topic,
		Message:   NewMessageEvent(msg),
	})
}

// DecodeError records an inbound frame that could not be decoded.
func (t *Tracer) DecodeError(topic string, data []byte, err error) {
	if t == nil {
		return
	}
	t.emit(Event{
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryDecodeError,
		Topic:     topic,
		Frame:     NewFrameEvent(data),
		Error:     &ErrorEventData{Layer: LayerWire, Message: err.Error(), Context: "decode"},
	})
}

// State records a lifecycle change.
func (t *Tracer) State(entity StateEntity, topic, oldState, newState, reason string) {
	if t == nil {
		return
	}
	t.emit(Event{
		Layer:    LayerAttribute,
		Category: CategoryState,
		Topic:    topic,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error records a failed operation.
func (t *Tracer) Error(layer Layer, dir Direction, topic, context string, err error) {
	if t == nil || err == nil {
		return
	}
	t.emit(Event{
		Direction: dir,
		Layer:     layer,
		Category:  CategoryError,
		Topic:     topic,
		Error:     &ErrorEventData{Layer: layer, Message: err.Error(), Context: context},
	})
}

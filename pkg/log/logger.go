package log

// Logger receives trace events from a reactor session. Log is called on the
// transport and attribute goroutines, so implementations must be safe for
// concurrent use and must not block.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger drops every event. NewTracer treats it like a nil Logger.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

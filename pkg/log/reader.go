package log

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects trace events. Zero-valued fields match everything.
type Filter struct {
	SessionID string

	// Topic is an exact topic or a path.Match pattern such as
	// "pza/psu/*/att".
	Topic string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive and TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Match reports whether event satisfies every criterion of f.
func (f Filter) Match(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return f.matchTopic(event.Topic)
}

func (f Filter) matchTopic(topic string) bool {
	if f.Topic == "" || f.Topic == topic {
		return true
	}
	ok, _ := path.Match(f.Topic, topic)
	return ok
}

// Reader streams events from a trace file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter

	// index counts decoded events, matched or not, for error messages.
	index int
}

// NewReader opens a trace file for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a trace file and yields only events matching
// filter. Files without the trace header fail with ErrNotTraceFile.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	if err := readHeader(br); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Reader{file: f, decoder: NewDecoder(br), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A record cut short by a crashed writer also ends the stream.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.decoder.Decode(&event)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return Event{}, io.EOF
		case err != nil:
			return Event{}, fmt.Errorf("event %d: %w", r.index, err)
		}
		r.index++
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close releases the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

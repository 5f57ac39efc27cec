package log

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends trace events to a .plog file. Safe for concurrent use.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewFileLogger opens path for appending, creating it with mode 0644 and
// writing the trace header when it is new or empty. A non-empty file that
// does not carry the header is refused.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := prepareTraceFile(f); err != nil {
		f.Close()
		return nil, err
	}
	return &FileLogger{path: path, file: f, encoder: NewEncoder(f)}, nil
}

func prepareTraceFile(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		_, err = f.Write(fileMagic)
		return err
	}
	head := make([]byte, len(fileMagic))
	if _, err := f.ReadAt(head, 0); err != nil || string(head) != string(fileMagic) {
		return ErrNotTraceFile
	}
	return nil
}

// Log appends event. Events logged after Close, or that fail to encode,
// are counted as dropped.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.dropped.Add(1)
		return
	}
	// A broken trace must never stall the bus.
	if err := l.encoder.Encode(event); err != nil {
		l.dropped.Add(1)
		return
	}
	l.written.Add(1)
}

// Path returns the file being written.
func (l *FileLogger) Path() string { return l.path }

// Written returns the number of events appended since open.
func (l *FileLogger) Written() uint64 { return l.written.Load() }

// Dropped returns the number of events that were not written.
func (l *FileLogger) Dropped() uint64 { return l.dropped.Load() }

// Close syncs and closes the file. Further calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return err
	}
	return syncErr
}

var _ Logger = (*FileLogger)(nil)

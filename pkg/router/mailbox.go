package router

import (
	"sync"

	"github.com/panduza/panduza-go/pkg/transport"
)

// DefaultCapacity is the default mailbox capacity.
const DefaultCapacity = 20

// Mailbox is a bounded FIFO of samples. When full, the oldest sample is
// evicted so the newest is always kept.
type Mailbox struct {
	mu      sync.Mutex
	buf     []transport.Sample
	head    int
	count   int
	closed  bool
	dropped uint64

	ready chan struct{}
	done  chan struct{}
}

// NewMailbox creates a mailbox holding at most capacity samples.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Mailbox{
		buf:   make([]transport.Sample, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push appends s. It returns false when the mailbox is closed, and
// evicted=true when an older sample was dropped to make room.
func (m *Mailbox) push(s transport.Sample) (ok, evicted bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, false
	}
	capacity := len(m.buf)
	if m.count == capacity {
		m.buf[m.head] = transport.Sample{}
		m.head = (m.head + 1) % capacity
		m.count--
		m.dropped++
		evicted = true
	}
	m.buf[(m.head+m.count)%capacity] = s
	m.count++
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true, evicted
}

// TryRecv removes and returns the oldest sample, if any.
func (m *Mailbox) TryRecv() (transport.Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return transport.Sample{}, false
	}
	s := m.buf[m.head]
	m.buf[m.head] = transport.Sample{}
	m.head = (m.head + 1) % len(m.buf)
	m.count--
	return s, true
}

// Ready is signalled after a sample is pushed. A single signal may cover
// several samples; drain with TryRecv until it reports false.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Done is closed when the mailbox is closed.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Len returns the number of queued samples.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Dropped returns the number of samples evicted so far.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Closed reports whether the mailbox has been closed.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox) close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.closed = true
	close(m.done)
	return true
}

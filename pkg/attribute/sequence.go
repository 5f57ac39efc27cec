package attribute

import (
	"math/rand/v2"
	"sync/atomic"
)

// Sequence hands out header sequence numbers. It starts at a random value
// so that two clients writing the same attribute rarely collide.
type Sequence struct {
	next atomic.Uint32
}

// NewSequence creates a sequence with a random start.
func NewSequence() *Sequence {
	s := &Sequence{}
	s.next.Store(rand.Uint32N(1 << 16))
	return s
}

// Next returns the next sequence number.
func (s *Sequence) Next() uint16 {
	return uint16(s.next.Add(1))
}

// RandomSource returns a non-zero producer id.
func RandomSource() uint16 {
	return uint16(rand.UintN(1<<16-1)) + 1
}

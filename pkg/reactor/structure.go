package reactor

import (
	"context"

	"github.com/panduza/panduza-go/pkg/structure"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Structure is a read-only view of the attribute directory.
type Structure struct {
	index *structure.Index
}

// Keys returns every attribute topic, sorted.
func (s *Structure) Keys() []string { return s.index.Keys() }

// Len returns the number of attributes.
func (s *Structure) Len() int { return s.index.Len() }

// Find returns the metadata of pattern: exact match first, then the
// lexicographically first glob match.
func (s *Structure) Find(pattern string) (structure.Metadata, bool) { return s.index.Find(pattern) }

// FindAll returns every metadata whose topic matches the glob pattern.
func (s *Structure) FindAll(pattern string) []structure.Metadata { return s.index.FindAll(pattern) }

// Version increases with every applied structure frame.
func (s *Structure) Version() uint64 { return s.index.Version() }

// Updated returns a channel closed by the next applied structure frame.
func (s *Structure) Updated() <-chan struct{} { return s.index.Updated() }

// Root returns the last received tree.
func (s *Structure) Root() *wire.Node { return s.index.Root() }

// WaitUpdate blocks until the structure changes or ctx is done.
func (s *Structure) WaitUpdate(ctx context.Context) error {
	select {
	case <-s.index.Updated():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package attribute

import (
	"github.com/panduza/panduza-go/pkg/structure"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Structure exposes the raw platform structure tree as an attribute.
type Structure struct {
	*Handle[wire.Node]
	prefix string
}

// NewStructure wraps a handle. prefix is the namespace prefix used to
// flatten the tree.
func NewStructure(h *Handle[wire.Node], prefix string) *Structure {
	return &Structure{Handle: h, prefix: prefix}
}

// Flatten returns the attribute directory of the last received tree.
func (s *Structure) Flatten() map[string]structure.Metadata {
	root, ok := s.Get()
	if !ok {
		return nil
	}
	return structure.Flatten(&root, s.prefix)
}

package wire

import (
	"fmt"
	"strings"
)

// NodeKind classifies a structure tree node.
type NodeKind uint8

const (
	NodeUndefined NodeKind = 0
	NodeInstance  NodeKind = 1
	NodeClass     NodeKind = 2
	NodeAttribute NodeKind = 3
)

// String returns the node kind name.
func (k NodeKind) String() string {
	switch k {
	case NodeInstance:
		return "Instance"
	case NodeClass:
		return "Class"
	case NodeAttribute:
		return "Attribute"
	default:
		return "Undefined"
	}
}

// IsValid returns true if the kind is known.
func (k NodeKind) IsValid() bool {
	return k <= NodeAttribute
}

// Mode is the access constraint of an attribute.
type Mode uint8

const (
	ModeUnknown   Mode = 0
	ModeReadOnly  Mode = 1
	ModeWriteOnly Mode = 2
	ModeReadWrite Mode = 3
)

// String returns the short mode name.
func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "RO"
	case ModeWriteOnly:
		return "WO"
	case ModeReadWrite:
		return "RW"
	default:
		return "unknown"
	}
}

// IsValid returns true for RO, WO and RW.
func (m Mode) IsValid() bool {
	return m >= ModeReadOnly && m <= ModeReadWrite
}

// Readable returns true if the attribute publishes on /att.
func (m Mode) Readable() bool {
	return m == ModeReadOnly || m == ModeReadWrite
}

// Writable returns true if the attribute accepts commands on /cmd.
func (m Mode) Writable() bool {
	return m == ModeWriteOnly || m == ModeReadWrite
}

// ParseMode parses the textual mode names used by device configurations.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "ro", "readonly", "read_only":
		return ModeReadOnly, nil
	case "wo", "writeonly", "write_only":
		return ModeWriteOnly, nil
	case "rw", "readwrite", "read_write":
		return ModeReadWrite, nil
	default:
		return ModeUnknown, fmt.Errorf("unknown mode: %q", s)
	}
}

// Node is one element of the structure tree. Only Attribute nodes that carry
// both a type and a mode bind to real data. Names may be empty for anonymous
// grouping nodes.
//
// CBOR encoding:
//
//	{
//	  1: name,      // text string (optional)
//	  2: kind,      // uint8
//	  3: tags,      // array of text strings (optional)
//	  4: children,  // array of nodes (optional)
//	  5: type,      // text string (optional)
//	  6: mode,      // uint8 (optional)
//	  7: info       // text string (optional)
//	}
type Node struct {
	Name     string   `cbor:"1,keyasint,omitempty"`
	Kind     NodeKind `cbor:"2,keyasint"`
	Tags     []string `cbor:"3,keyasint,omitempty"`
	Children []Node   `cbor:"4,keyasint,omitempty"`
	Type     string   `cbor:"5,keyasint,omitempty"`
	Mode     Mode     `cbor:"6,keyasint,omitempty"`
	Info     string   `cbor:"7,keyasint,omitempty"`
}

// IsBound reports whether the node binds to an attribute.
func (n *Node) IsBound() bool {
	return n.Kind == NodeAttribute && n.Type != "" && n.Mode != ModeUnknown
}

func (n *Node) validate(depth int) error {
	if depth > MaxStructureDepth {
		return fmt.Errorf("structure deeper than %d levels", MaxStructureDepth)
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("node %q has invalid kind %d", n.Name, n.Kind)
	}
	if strings.Contains(n.Name, "/") {
		return fmt.Errorf("node name %q contains a path separator", n.Name)
	}
	for i := range n.Children {
		if err := n.Children[i].validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

// MaxStructureDepth bounds the nesting accepted from the bus.
const MaxStructureDepth = 32

// StructurePayload carries the attribute tree advertised by the platform.
//
// CBOR encoding:
//
//	{1: root}
type StructurePayload struct {
	Root Node `cbor:"1,keyasint"`
}

// Kind implements Payload.
func (*StructurePayload) Kind() PayloadKind { return KindStructure }

// Validate implements Payload.
func (p *StructurePayload) Validate() error {
	return p.Root.validate(0)
}

package structure

import (
	"github.com/panduza/panduza-go/pkg/wire"
)

// Metadata describes one attribute advertised by the platform.
type Metadata struct {
	// Topic is the attribute base topic, without /att or /cmd.
	Topic string

	// Type is the type name advertised in the tree ("boolean", "number"...).
	Type string

	// Mode constrains the operations allowed on the attribute.
	Mode wire.Mode

	// Info is the optional free-form description of the node.
	Info string

	// Tags are copied from the node.
	Tags []string
}

// Kind returns the payload kind matching Type.
func (m Metadata) Kind() wire.PayloadKind {
	return wire.ParsePayloadKind(m.Type)
}

// AttTopic returns the device -> client topic.
func (m Metadata) AttTopic() string {
	return wire.AttTopic(m.Topic)
}

// CmdTopic returns the client -> device topic.
func (m Metadata) CmdTopic() string {
	return wire.CmdTopic(m.Topic)
}

// Flatten walks root in pre-order and records every node carrying both a
// type and a mode under prefix/<names>. Anonymous nodes add no segment.
func Flatten(root *wire.Node, prefix string) map[string]Metadata {
	out := make(map[string]Metadata)
	flatten(root, prefix, out)
	return out
}

func flatten(n *wire.Node, path string, out map[string]Metadata) {
	if n.Name != "" {
		path = wire.Join(path, n.Name)
	}
	if n.Type != "" && n.Mode != wire.ModeUnknown {
		out[path] = Metadata{
			Topic: path,
			Type:  n.Type,
			Mode:  n.Mode,
			Info:  n.Info,
			Tags:  n.Tags,
		}
	}
	for i := range n.Children {
		flatten(&n.Children[i], path, out)
	}
}

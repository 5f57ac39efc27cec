package testplatform

import "github.com/panduza/panduza-go/pkg/wire"

type testerAttribute struct {
	class     string
	name      string
	typ       wire.PayloadKind
	mode      wire.Mode
	initial   wire.Payload
	transform func(wire.Payload) wire.Payload
}

func jitter(p wire.Payload) wire.Payload {
	n, ok := p.(*wire.NumberPayload)
	if !ok {
		return p
	}
	return &wire.NumberPayload{Value: n.Value + NumberJitter, Unit: n.Unit, Decimals: 2}
}

var testerAttributes = []testerAttribute{
	{class: "boolean", name: "rw", typ: wire.KindBoolean, mode: wire.ModeReadWrite, initial: &wire.BooleanPayload{}},
	{class: "boolean", name: "ro", typ: wire.KindBoolean, mode: wire.ModeReadOnly, initial: &wire.BooleanPayload{}},
	{class: "boolean", name: "wo", typ: wire.KindBoolean, mode: wire.ModeWriteOnly},
	{class: "boolean", name: "error", typ: wire.KindBoolean, mode: wire.ModeReadWrite, initial: &wire.BooleanPayload{}},
	{class: "boolean", name: "wo_bool", typ: wire.KindBoolean, mode: wire.ModeWriteOnly},
	{class: "boolean", name: "wo_counter", typ: wire.KindNumber, mode: wire.ModeReadOnly, initial: &wire.NumberPayload{}},
	{class: "boolean", name: "wo_counter_reset", typ: wire.KindBoolean, mode: wire.ModeReadWrite, initial: &wire.BooleanPayload{}},
	{class: "number", name: "rw", typ: wire.KindNumber, mode: wire.ModeReadWrite, initial: &wire.NumberPayload{Decimals: 2}, transform: jitter},
	{class: "number", name: "ro", typ: wire.KindNumber, mode: wire.ModeReadOnly, initial: &wire.NumberPayload{Decimals: 2}},
	{class: "number", name: "wo", typ: wire.KindNumber, mode: wire.ModeWriteOnly},
	{class: "string", name: "rw", typ: wire.KindString, mode: wire.ModeReadWrite, initial: &wire.StringPayload{}},
	{class: "string", name: "ro", typ: wire.KindString, mode: wire.ModeReadOnly, initial: &wire.StringPayload{}},
	{class: "string", name: "wo", typ: wire.KindString, mode: wire.ModeWriteOnly},
	{class: "bytes", name: "rw", typ: wire.KindBytes, mode: wire.ModeReadWrite, initial: &wire.BytesPayload{}},
	{class: "bytes", name: "ro", typ: wire.KindBytes, mode: wire.ModeReadOnly, initial: &wire.BytesPayload{}},
	{class: "bytes", name: "wo", typ: wire.KindBytes, mode: wire.ModeWriteOnly},
}

// TesterTree returns the structure announced for instance: one class node
// per kind under an anonymous root.
func TesterTree(instance string) wire.Node {
	inst := wire.Node{Name: instance, Kind: wire.NodeInstance}
	classes := map[string]int{}
	for _, a := range testerAttributes {
		i, ok := classes[a.class]
		if !ok {
			inst.Children = append(inst.Children, wire.Node{Name: a.class, Kind: wire.NodeClass})
			i = len(inst.Children) - 1
			classes[a.class] = i
		}
		inst.Children[i].Children = append(inst.Children[i].Children, wire.Node{
			Name: a.name,
			Kind: wire.NodeAttribute,
			Type: a.typ.String(),
			Mode: a.mode,
		})
	}
	return wire.Node{Kind: wire.NodeUndefined, Children: []wire.Node{inst}}
}

package reactor

import (
	"context"

	"github.com/panduza/panduza-go/pkg/attribute"
	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/structure"
	"github.com/panduza/panduza-go/pkg/wire"
)

// AttributeBuilder carries the metadata found for a pattern and turns it
// into a typed handle.
type AttributeBuilder struct {
	reactor *Reactor
	pattern string
	meta    *structure.Metadata
}

// Pattern returns the pattern the builder was created with.
func (b AttributeBuilder) Pattern() string { return b.pattern }

// Metadata returns the matched metadata.
func (b AttributeBuilder) Metadata() (structure.Metadata, bool) {
	if b.meta == nil {
		return structure.Metadata{}, false
	}
	return *b.meta, true
}

// Found reports whether the pattern matched an attribute.
func (b AttributeBuilder) Found() bool { return b.meta != nil }

func build[T any](ctx context.Context, b AttributeBuilder, codec attribute.Codec[T]) (*attribute.Handle[T], error) {
	if b.meta == nil {
		return nil, pzaerrors.New(pzaerrors.ErrNotFound, "find", b.pattern, nil)
	}
	if got := b.meta.Kind(); got != codec.Kind() {
		return nil, pzaerrors.InvalidType(b.meta.Topic, codec.Kind().String(), b.meta.Type)
	}
	return openShared(ctx, b.reactor, codec, b.meta.Topic, b.meta.Mode)
}

// TryIntoBoolean builds a boolean handle.
func (b AttributeBuilder) TryIntoBoolean(ctx context.Context) (*attribute.Boolean, error) {
	h, err := build(ctx, b, attribute.Codec[bool](attribute.BooleanCodec{}))
	if err != nil {
		return nil, err
	}
	return attribute.NewBoolean(h), nil
}

// TryIntoNumber builds a number handle.
func (b AttributeBuilder) TryIntoNumber(ctx context.Context) (*attribute.Number, error) {
	h, err := build(ctx, b, attribute.Codec[wire.NumberPayload](attribute.NumberCodec{}))
	if err != nil {
		return nil, err
	}
	return attribute.NewNumber(h), nil
}

// TryIntoString builds a string handle.
func (b AttributeBuilder) TryIntoString(ctx context.Context) (*attribute.String, error) {
	h, err := build(ctx, b, attribute.Codec[string](attribute.StringCodec{}))
	if err != nil {
		return nil, err
	}
	return attribute.NewString(h), nil
}

// TryIntoBytes builds a bytes handle.
func (b AttributeBuilder) TryIntoBytes(ctx context.Context) (*attribute.Bytes, error) {
	h, err := build(ctx, b, attribute.Codec[[]byte](attribute.BytesCodec{}))
	if err != nil {
		return nil, err
	}
	return attribute.NewBytes(h), nil
}

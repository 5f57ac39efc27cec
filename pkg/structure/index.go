// Package structure keeps the directory of attributes advertised on the
// platform structure topic.
package structure

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"sync"

	pzaerrors "github.com/panduza/panduza-go/pkg/errors"
	"github.com/panduza/panduza-go/pkg/wire"
)

// Index maps attribute base topics to their metadata. Each structure frame
// replaces the whole map.
type Index struct {
	prefix string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]Metadata
	keys    []string
	root    *wire.Node
	version uint64
	updated chan struct{}
	ready   chan struct{}
	isReady bool
}

// NewIndex creates an empty index whose keys start with prefix (for example
// "pza").
func NewIndex(prefix string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		prefix:  prefix,
		logger:  logger,
		entries: make(map[string]Metadata),
		updated: make(chan struct{}),
		ready:   make(chan struct{}),
	}
}

// Prefix returns the key prefix.
func (x *Index) Prefix() string {
	return x.prefix
}

// Apply decodes a CBOR structure frame and replaces the index content.
func (x *Index) Apply(data []byte) error {
	return x.ApplyFrame(wire.CBORFrames, data)
}

// ApplyFrame is Apply with the frame decoded by fc.
func (x *Index) ApplyFrame(fc wire.FrameCodec, data []byte) error {
	msg, err := fc.Decode(data)
	if err != nil {
		return pzaerrors.New(pzaerrors.ErrDecode, "structure", "", err)
	}
	p, ok := msg.Payload.(*wire.StructurePayload)
	if !ok {
		return pzaerrors.New(pzaerrors.ErrDecode, "structure", "",
			&pzaerrors.InvalidTypeError{Expected: wire.KindStructure.String(), Found: msg.Kind().String()})
	}
	x.Replace(&p.Root)
	return nil
}

// Replace swaps in the flattened form of root and signals readiness.
func (x *Index) Replace(root *wire.Node) {
	entries := Flatten(root, x.prefix)
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	x.mu.Lock()
	x.entries = entries
	x.keys = keys
	x.root = root
	x.version++
	close(x.updated)
	x.updated = make(chan struct{})
	first := !x.isReady
	if first {
		x.isReady = true
		close(x.ready)
	}
	version := x.version
	x.mu.Unlock()

	x.logger.Debug("structure updated", "attributes", len(entries), "version", version)
	if first {
		x.logger.Info("structure ready", "attributes", len(entries))
	}
}

// Ready is closed once the first structure frame has been applied.
func (x *Index) Ready() <-chan struct{} {
	return x.ready
}

// IsReady reports whether a structure frame has been applied.
func (x *Index) IsReady() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.isReady
}

// WaitReady blocks until the index is ready or ctx is done.
func (x *Index) WaitReady(ctx context.Context) error {
	select {
	case <-x.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updated returns a channel closed by the next replacement.
func (x *Index) Updated() <-chan struct{} {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.updated
}

// Version counts the replacements applied so far.
func (x *Index) Version() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// Find returns the metadata registered under pattern, or, failing an exact
// match, the lexicographically first key matching pattern as a shell glob.
func (x *Index) Find(pattern string) (Metadata, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if m, ok := x.entries[pattern]; ok {
		return m, true
	}
	for _, k := range x.keys {
		if ok, _ := path.Match(pattern, k); ok {
			return x.entries[k], true
		}
	}
	return Metadata{}, false
}

// FindAll returns every entry whose key matches pattern, sorted by key.
func (x *Index) FindAll(pattern string) []Metadata {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Metadata
	for _, k := range x.keys {
		if k == pattern {
			out = append(out, x.entries[k])
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, x.entries[k])
		}
	}
	return out
}

// Keys returns every registered key in lexicographic order.
func (x *Index) Keys() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.keys...)
}

// Len returns the number of registered attributes.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Root returns the tree of the last applied frame, or nil.
func (x *Index) Root() *wire.Node {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.root
}

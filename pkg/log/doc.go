// Package log provides bus trace capture for Panduza client sessions.
//
// This package defines the Logger interface and Event types for capturing
// frame-level events at multiple layers (transport, wire, attribute).
// It is separate from operational logging (slog) - trace capture provides
// a complete machine-readable record of bus traffic for debugging.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.Trace = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to binary file
//	cfg.Trace, _ = log.NewFileLogger("/tmp/bench.plog")
//
//	// Both: use MultiLogger
//	cfg.Trace = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded messages (MessageEvent) and decode errors
//   - Attribute: lifecycle changes (StateChangeEvent)
//
// # File Format
//
// Trace files use the .plog extension: the three-byte CBOR self-describe
// tag followed by a stream of deterministically encoded events. Writers
// only append, so a file may hold several sessions; a record cut short by a
// crash ends the stream. The pza-log tool views, filters and exports them.
package log

// Package wire defines the binary message format shared by every Panduza
// attribute.
//
// A frame is a Message made of a fixed-shape Header (timestamp, producer id,
// sequence number) and a tagged Payload. Frames are encoded as CBOR (RFC 8949)
// with integer keys and deterministic ordering.
//
// # Envelope
//
//	{
//	  1: header,   // {1: {1: seconds, 2: nanos}, 2: source, 3: sequence}
//	  2: kind,     // uint8 payload discriminant
//	  3: body      // kind-specific map
//	}
//
// # Payload kinds
//
//   - Boolean: a single bit
//   - Number: value plus advisory unit, decimals, range and whitelist
//   - String: value plus advisory whitelist
//   - Bytes: opaque data
//   - Status: state of every instance on the platform
//   - Notification: alert or error raised by an instance
//   - Structure: the advertised attribute tree
//
// The same payload type travels on an attribute's /att and /cmd topics.
package wire

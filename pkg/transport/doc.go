// Package transport adapts an external publish/subscribe broker to the
// small capability set the attribute framework needs.
//
// A Session can:
//   - subscribe a handler to a topic
//   - declare a publisher on a topic
//   - run a one-shot query for the last retained value of a topic
//
// # Backends
//
//	┌──────────┬──────────────────────────────┬──────────────────────────────┐
//	│ backend  │ delivery                     │ one-shot query               │
//	├──────────┼──────────────────────────────┼──────────────────────────────┤
//	│ mqtt     │ paho client, QoS 1           │ retained message             │
//	│ nats     │ core subjects ("/" → ".")    │ JetStream last msg / request │
//	│ memory   │ in-process Bus               │ retained value               │
//	└──────────┴──────────────────────────────┴──────────────────────────────┘
//
// # Configuration
//
// Sessions are opened from a SessionConfig whose JSON form is:
//
//	{
//	  "mode": "client",
//	  "connect": {"endpoints": ["tcp/192.168.1.10:1883"]},
//	  "transport": {"link": {"tls": {
//	    "root_ca_certificate": "/path/root_ca_certificate.pem",
//	    "enable_mtls": true,
//	    "connect_private_key": "/path/client_private_key.pem",
//	    "connect_certificate": "/path/client_certificate.pem"
//	  }}}
//	}
//
// Endpoints are "tcp/<addr>:<port>" for plain links, "tls/<addr>:<port>"
// for mutually authenticated TLS 1.3 links and "mem/<name>" for a Bus
// registered with RegisterBus.
//
// # Ordering
//
// Handlers of one subscription are invoked sequentially in broker order.
// Nothing is promised across topics.
package transport

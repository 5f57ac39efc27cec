// Package discovery finds Panduza platforms on the local network over
// mDNS/DNS-SD.
//
// Platforms advertise the service type _panduza._tcp. The instance name is
// the platform name; the port is the broker port. TXT records carry:
//
//   - ns: topic namespace (optional)
//   - be: broker backend, "mqtt" or "nats" (optional, default mqtt)
//   - sec: "mtls" or "plain"
//   - ver: platform version (optional)
package discovery

// Package attribute implements typed attribute handles over the bus.
//
// Every attribute is backed by one generic Core parameterised by a Codec
// for its payload kind. The core owns the last-value cache, the callback
// table, transient waiters and the inbound task that consumes the
// attribute's /att mailbox one frame at a time. Writes go to /cmd; Set on a
// read-write attribute waits for a matching /att echo.
//
// Handles share a core by reference counting. Closing a handle removes its
// callbacks through the core's control queue and never blocks on the
// inbound task; the core is released with its last handle.
//
// Kind wrappers (Boolean, Number, String, Bytes, Status, Notification,
// Structure) add kind-specific helpers on top of Handle.
package attribute

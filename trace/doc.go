// Package trace captures the wire-level conversation of a console connection
// as a stream of typed events, separate from application logging.
//
// Every protocol step (commands sent, reply lines consumed, input flushes,
// lifecycle changes, protocol errors) can be recorded through a [Recorder]
// and replayed later with a [Reader]. Events
// are CBOR-encoded with integer keys, so capture files stay compact enough
// to leave enabled during long instrument sessions.
//
// # Recording
//
// [FileRecorder] appends events to a capture file. [MemoryRecorder] keeps a
// bounded in-memory window, useful in tests and interactive tools.
// [MultiRecorder] fans out to several recorders at once. Recording never
// disrupts the protocol: encode errors are dropped, not returned.
//
// # Replay
//
// [Reader] streams events back from a capture file, optionally narrowed by a
// [Filter] (connection, kind, direction, time window).
package trace

// Package lineport provides line-framed access to a serial device.
//
// A Port wraps an open serial device and exposes whole-line reads and
// writes: outbound lines are framed with the configured write termination,
// inbound bytes are accumulated until the read termination appears and
// returned with the termination stripped. An empty line is a valid read
// result.
//
// # Timeout Model
//
// Every device read is bounded by the configured read timeout. ReadLine
// fails with ErrReadTimeout once a read window passes without any bytes
// arriving; a device that trickles bytes keeps the read alive, so the
// timeout bounds silence, not total line duration.
//
// # Concurrency
//
// A Port is not goroutine-safe. The intended owner is a single
// conversation driver that serializes all I/O, which is how the console
// package uses it.
package lineport

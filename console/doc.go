// Package console implements the line-oriented request/acknowledge protocol
// spoken by laboratory instrument controllers with a text console, such as
// laser controllers reachable over a serial link.
//
// The package sits between a line-framed byte transport (see [LineTransport]
// and the lineport package) and instrument-control code that issues named
// commands and expects parsed values back. It owns the conversation state:
// command framing, echo suppression, value extraction from free-form textual
// replies, and acknowledgement verification with resynchronization on error.
//
// # Protocol Overview
//
// The console protocol is a strict half-duplex request/reply exchange over
// CR+LF-terminated ASCII lines:
//
//   - Every command provokes an echoed line-end response before any further
//     reply. With the instrument's echo mode disabled this line is empty; any
//     other content signals a desynchronized channel.
//   - Set-style commands additionally provoke exactly one acknowledgement
//     line equal to the literal token "[OK]".
//   - Query-style commands provoke one data line, typically of the form
//     "name = value [unit]", followed by one "[OK]" acknowledgement line.
//
// Opening an adapter negotiates this framing: it disables the instrument's
// command echo ("echo off") and prompt banner ("prom off"), waits a short
// settle interval, discards any boot banner residue, and finalizes the reply
// mode with a "talk usual" query.
//
// # Conversation Cycle
//
// [Adapter.Ask] is the primary query primitive: it sends the command, waits
// at least the transport's query delay, reads the data line plus its
// acknowledgement, and hands the data line to the installed reply
// preprocessor ([ExtractValue] unless overridden). [Adapter.Write] issues
// set-style commands, and [Adapter.Read] consumes a data/acknowledgement
// pair directly.
//
// # Error Handling and Resynchronization
//
// An acknowledgement mismatch flushes the transport's input buffer before
// the error is returned, so the next exchange starts on a clean channel. A
// non-empty echo line surfaces the error without flushing; pass
// [WithResyncOnEchoError] to flush on both paths. Transport failures are
// wrapped, never retried.
//
// An Adapter is NOT goroutine-safe: the protocol allows a single
// conversation at a time, and callers sharing an adapter across goroutines
// must serialize access themselves.
package console

package trace

import (
	"strings"
	"time"
)

// Event represents one protocol-level occurrence on a console connection.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the adapter connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Port is the transport name (e.g. the serial device path).
	Port string `cbor:"3,keyasint,omitempty"`

	// Direction indicates line flow relative to the local end.
	Direction Direction `cbor:"4,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"5,keyasint"`

	// Line is the text sent or received, terminators stripped.
	Line string `cbor:"6,keyasint,omitempty"`

	// Command is the command the event belongs to (populated for replies,
	// flushes and errors so a capture can be read without backtracking).
	Command string `cbor:"7,keyasint,omitempty"`

	// Message carries error or state-change detail.
	Message string `cbor:"8,keyasint,omitempty"`
}

// Direction indicates the direction of line flow.
type Direction uint8

const (
	// DirectionIn indicates a line received from the instrument.
	DirectionIn Direction = 0
	// DirectionOut indicates a line sent to the instrument.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies the event type.
type Kind uint8

const (
	// KindCommand indicates an outbound command line.
	KindCommand Kind = 0
	// KindEcho indicates the line-end echo consumed after a command.
	KindEcho Kind = 1
	// KindData indicates a data reply line.
	KindData Kind = 2
	// KindAck indicates an acknowledgement line.
	KindAck Kind = 3
	// KindFlush indicates the input buffer was discarded (resync).
	KindFlush Kind = 4
	// KindState indicates an adapter lifecycle change.
	KindState Kind = 5
	// KindError indicates a protocol error.
	KindError Kind = 6
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "COMMAND"
	case KindEcho:
		return "ECHO"
	case KindData:
		return "DATA"
	case KindAck:
		return "ACK"
	case KindFlush:
		return "FLUSH"
	case KindState:
		return "STATE"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseKind converts a kind name (as printed by Kind.String, any case) back
// to a Kind. It reports false for unknown names.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToUpper(name) {
	case "COMMAND":
		return KindCommand, true
	case "ECHO":
		return KindEcho, true
	case "DATA":
		return KindData, true
	case "ACK":
		return KindAck, true
	case "FLUSH":
		return KindFlush, true
	case "STATE":
		return KindState, true
	case "ERROR":
		return KindError, true
	default:
		return 0, false
	}
}

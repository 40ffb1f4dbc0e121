package console

import (
	"sync/atomic"
)

// ConvState represents the phase of the half-duplex conversation cycle.
//
// Transitions happen inline inside the sequential blocking calls; the state
// exists for diagnostics and tests, not for control flow.
type ConvState uint32

// IsIdle returns if no exchange is in flight.
func (cs ConvState) IsIdle() bool { return cs == IdleState }

// IsAwaitingEcho returns if a command was sent and its line-end echo has not
// been consumed yet.
func (cs ConvState) IsAwaitingEcho() bool { return cs == AwaitingEchoState }

// IsAwaitingData returns if a data reply line is expected next.
func (cs ConvState) IsAwaitingData() bool { return cs == AwaitingDataState }

// IsAwaitingAck returns if an acknowledgement line is expected next.
func (cs ConvState) IsAwaitingAck() bool { return cs == AwaitingAckState }

// String returns string representation of the current state.
func (cs ConvState) String() string {
	switch cs {
	case IdleState:
		return "idle"
	case AwaitingEchoState:
		return "awaiting-echo"
	case AwaitingDataState:
		return "awaiting-data"
	case AwaitingAckState:
		return "awaiting-ack"
	default:
		return "unknown"
	}
}

// Conversation states of the request/acknowledge cycle.
const (
	// IdleState indicates that no exchange is in flight.
	IdleState ConvState = iota
	// AwaitingEchoState indicates that a command was sent and the echoed
	// line-end response has not been consumed yet.
	AwaitingEchoState
	// AwaitingDataState indicates that a data reply line is expected.
	AwaitingDataState
	// AwaitingAckState indicates that an acknowledgement line is expected.
	AwaitingAckState
)

// AtomicConvState holds a ConvState with atomic access, so diagnostic
// readers may poll the conversation phase while an exchange is in flight.
type AtomicConvState struct {
	state atomic.Uint32
}

// Get returns the current conversation state.
func (st *AtomicConvState) Get() ConvState {
	return ConvState(st.state.Load())
}

// Set sets the conversation state.
func (st *AtomicConvState) Set(state ConvState) {
	st.state.Store(uint32(state))
}

func (st *AtomicConvState) String() string {
	return st.Get().String()
}

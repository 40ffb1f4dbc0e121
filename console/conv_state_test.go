package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    ConvState
		expected string
	}{
		{name: "IdleState", state: IdleState, expected: "idle"},
		{name: "AwaitingEchoState", state: AwaitingEchoState, expected: "awaiting-echo"},
		{name: "AwaitingDataState", state: AwaitingDataState, expected: "awaiting-data"},
		{name: "AwaitingAckState", state: AwaitingAckState, expected: "awaiting-ack"},
		{name: "UnknownState", state: ConvState(99), expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestConvState_Predicates(t *testing.T) {
	tests := []struct {
		name           string
		state          ConvState
		isIdle         bool
		isAwaitingEcho bool
		isAwaitingData bool
		isAwaitingAck  bool
	}{
		{name: "IdleState", state: IdleState, isIdle: true},
		{name: "AwaitingEchoState", state: AwaitingEchoState, isAwaitingEcho: true},
		{name: "AwaitingDataState", state: AwaitingDataState, isAwaitingData: true},
		{name: "AwaitingAckState", state: AwaitingAckState, isAwaitingAck: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isIdle, tt.state.IsIdle())
			assert.Equal(t, tt.isAwaitingEcho, tt.state.IsAwaitingEcho())
			assert.Equal(t, tt.isAwaitingData, tt.state.IsAwaitingData())
			assert.Equal(t, tt.isAwaitingAck, tt.state.IsAwaitingAck())
		})
	}
}

func TestAtomicConvState(t *testing.T) {
	st := &AtomicConvState{}
	assert.Equal(t, IdleState, st.Get(), "zero value starts idle")

	st.Set(AwaitingDataState)
	assert.Equal(t, AwaitingDataState, st.Get())
	assert.Equal(t, "awaiting-data", st.String())
}

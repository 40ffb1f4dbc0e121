package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicOpState_String(t *testing.T) {
	tests := []struct {
		name     string
		state    OpState
		expected string
	}{
		{name: "ClosedState", state: ClosedState, expected: "Closed"},
		{name: "ClosingState", state: ClosingState, expected: "Closing"},
		{name: "OpeningState", state: OpeningState, expected: "Opening"},
		{name: "OpenedState", state: OpenedState, expected: "Opened"},
		{name: "UnknownState", state: OpState(99), expected: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &AtomicOpState{}
			st.Set(tt.state)
			assert.Equal(t, tt.expected, st.String())
		})
	}
}

func TestAtomicOpState_IsStates(t *testing.T) {
	tests := []struct {
		name      string
		state     OpState
		isClosed  bool
		isClosing bool
		isOpening bool
		isOpened  bool
	}{
		{name: "ClosedState", state: ClosedState, isClosed: true},
		{name: "ClosingState", state: ClosingState, isClosing: true},
		{name: "OpeningState", state: OpeningState, isOpening: true},
		{name: "OpenedState", state: OpenedState, isOpened: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &AtomicOpState{}
			st.Set(tt.state)
			assert.Equal(t, tt.state, st.Get())
			assert.Equal(t, tt.isClosed, st.IsClosed())
			assert.Equal(t, tt.isClosing, st.IsClosing())
			assert.Equal(t, tt.isOpening, st.IsOpening())
			assert.Equal(t, tt.isOpened, st.IsOpened())
		})
	}
}

func TestAtomicOpState_ToOpening(t *testing.T) {
	t.Run("FromClosed", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(ClosedState)
		assert.True(t, st.ToOpening())
		assert.Equal(t, OpeningState, st.Get())
	})

	t.Run("FromOpened", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(OpenedState)
		assert.False(t, st.ToOpening())
		assert.Equal(t, OpenedState, st.Get())
	})
}

func TestAtomicOpState_ToOpened(t *testing.T) {
	t.Run("FromOpening", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(OpeningState)
		assert.True(t, st.ToOpened())
		assert.Equal(t, OpenedState, st.Get())
	})

	t.Run("FromOpened", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(OpenedState)
		assert.True(t, st.ToOpened())
	})

	t.Run("FromClosed", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(ClosedState)
		assert.False(t, st.ToOpened())
		assert.Equal(t, ClosedState, st.Get())
	})
}

func TestAtomicOpState_ToClosing(t *testing.T) {
	t.Run("FromOpened", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(OpenedState)
		assert.True(t, st.ToClosing())
		assert.Equal(t, ClosingState, st.Get())
	})

	t.Run("FromOpening", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(OpeningState)
		assert.True(t, st.ToClosing())
		assert.Equal(t, ClosingState, st.Get())
	})

	t.Run("FromClosed", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(ClosedState)
		assert.False(t, st.ToClosing())
		assert.Equal(t, ClosedState, st.Get())
	})
}

func TestAtomicOpState_ToClosed(t *testing.T) {
	t.Run("FromClosing", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(ClosingState)
		assert.True(t, st.ToClosed())
		assert.Equal(t, ClosedState, st.Get())
	})

	t.Run("FromClosed", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(ClosedState)
		assert.True(t, st.ToClosed())
	})

	t.Run("FromOpened", func(t *testing.T) {
		st := &AtomicOpState{}
		st.Set(OpenedState)
		assert.False(t, st.ToClosed())
		assert.Equal(t, OpenedState, st.Get())
	})
}

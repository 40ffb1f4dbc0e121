package consoleintegration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photonio/go-optocon/console"
	"github.com/photonio/go-optocon/lineport"
	"github.com/photonio/go-optocon/profile"
	"github.com/photonio/go-optocon/trace"
)

func TestConsoleSession_OpenNegotiation(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	// The instrument echoed "echo off" back; the pre-negotiation flush must
	// have cleared that residue or the "talk usual" cycle would have failed.
	assert.Equal(t, []string{"echo off", "prom off", "talk usual"}, s.ins.receivedCommands())
	assert.Equal(t, 1, s.ins.resetCount())
	assert.Equal(t, console.OpenedState, s.adapter.OpState())
	assert.Equal(t, console.IdleState, s.adapter.State())
	assert.Equal(t, "talk usual", s.adapter.LastCommand())
}

func TestConsoleSession_Query(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	s.ins.on("sh temp", "", "TEMP = 24.50 C", "[OK]")

	value, err := s.adapter.Ask("sh temp")
	require.NoError(t, err)
	assert.Equal(t, "24.50", value)

	commands := s.ins.receivedCommands()
	assert.Equal(t, "sh temp", commands[len(commands)-1])

	m := s.adapter.Metrics()
	assert.Equal(t, uint64(4), m.CommandSendCount.Load())
	assert.Equal(t, uint64(6), m.LineRecvCount.Load())
	assert.Equal(t, uint64(2), m.AskCount.Load())
	assert.Equal(t, uint64(1), m.ResyncCount.Load())
	assert.Equal(t, uint64(0), m.EchoErrCount.Load())
	assert.Equal(t, uint64(0), m.AckErrCount.Load())
}

func TestConsoleSession_SetAcknowledged(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	s.ins.on("ch 1 pow 5.0", "", "[OK]")

	require.NoError(t, s.adapter.Write("ch 1 pow 5.0", true))

	commands := s.ins.receivedCommands()
	assert.Equal(t, "ch 1 pow 5.0", commands[len(commands)-1])
}

func TestConsoleSession_AckRejectedThenRecovers(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	// The rejection comes with trailing lines that would desynchronize the
	// next exchange if they survived the flush.
	s.ins.on("ch 1 pow 99.9", "", "Error: value out of range", "stale line 1", "stale line 2")

	err := s.adapter.Write("ch 1 pow 99.9", true)
	require.Error(t, err)
	require.ErrorIs(t, err, console.ErrAcknowledgement)
	assert.Contains(t, err.Error(), `"ch 1 pow 99.9"`)
	assert.Contains(t, err.Error(), "Error: value out of range")
	assert.Equal(t, 2, s.ins.resetCount())

	s.ins.on("sh temp", "", "TEMP = 24.50 C", "[OK]")

	value, err := s.adapter.Ask("sh temp")
	require.NoError(t, err)
	assert.Equal(t, "24.50", value)
}

func TestConsoleSession_EchoRegressionDetected(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	// Echo coming back on mid-session means the negotiated mode was lost.
	s.ins.setEcho(true)
	s.ins.on("sh temp", "", "TEMP = 24.50 C", "[OK]")

	_, err := s.adapter.Ask("sh temp")
	require.Error(t, err)
	require.ErrorIs(t, err, console.ErrUnexpectedEcho)
	assert.Contains(t, err.Error(), `"sh temp"`)

	// Without the resync option the buffer is left alone.
	assert.Equal(t, 1, s.ins.resetCount())
	assert.Equal(t, uint64(1), s.adapter.Metrics().EchoErrCount.Load())
}

func TestConsoleSession_EchoRegressionResyncs(t *testing.T) {
	s := newSession(t, console.WithResyncOnEchoError())
	s.open(t)
	defer s.adapter.Close()

	s.ins.setEcho(true)
	s.ins.on("sh temp", "", "TEMP = 24.50 C", "[OK]")

	_, err := s.adapter.Ask("sh temp")
	require.ErrorIs(t, err, console.ErrUnexpectedEcho)
	assert.Equal(t, 2, s.ins.resetCount())

	// Once the instrument behaves again the flushed channel is clean.
	s.ins.setEcho(false)

	value, err := s.adapter.Ask("sh temp")
	require.NoError(t, err)
	assert.Equal(t, "24.50", value)
}

func TestConsoleSession_SplitDelivery(t *testing.T) {
	// Serve replies three bytes at a time so every line crosses multiple
	// device reads.
	s := newChunkedSession(t, 3)
	s.open(t)
	defer s.adapter.Close()

	s.ins.on("sh pow", "", "PIC = 1234.567 uW", "[OK]")

	value, err := s.adapter.Ask("sh pow")
	require.NoError(t, err)
	assert.Equal(t, "1234.567", value)
}

func TestConsoleSession_ReadTimeout(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	_, err := s.adapter.Ask("sh unknown")
	require.Error(t, err)
	require.ErrorIs(t, err, lineport.ErrReadTimeout)
	assert.Contains(t, err.Error(), `"sh unknown"`)
}

func TestConsoleSession_TraceCapture(t *testing.T) {
	s := newSession(t)
	s.open(t)
	defer s.adapter.Close()

	s.ins.on("sh temp", "", "TEMP = 24.50 C", "[OK]")

	_, err := s.adapter.Ask("sh temp")
	require.NoError(t, err)

	events := s.rec.Events()
	kinds := make([]trace.Kind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}

	expected := []trace.Kind{
		// Open: raw negotiation sends, flush, then the talk usual cycle.
		trace.KindCommand, trace.KindCommand, trace.KindFlush,
		trace.KindCommand, trace.KindEcho, trace.KindData, trace.KindAck,
		trace.KindState,
		// Ask: command, echo, data, ack.
		trace.KindCommand, trace.KindEcho, trace.KindData, trace.KindAck,
	}
	assert.Equal(t, expected, kinds)

	for _, ev := range events {
		assert.Equal(t, s.adapter.ID(), ev.ConnectionID)
		assert.Equal(t, testPortName, ev.Port)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestConsoleSession_CloseReleasesDevice(t *testing.T) {
	s := newSession(t)
	s.open(t)

	require.NoError(t, s.adapter.Close())
	assert.True(t, s.ins.isClosed())
	assert.Equal(t, console.ClosedState, s.adapter.OpState())

	err := s.adapter.Write("sh temp", false)
	require.ErrorIs(t, err, console.ErrNotOpened)

	err = s.adapter.Open()
	require.ErrorIs(t, err, console.ErrAdapterClosed)
}

func TestConsoleSession_ProfileStack(t *testing.T) {
	p := profile.Default()
	p.Port = testPortName
	p.ReadTimeout = lineport.MinReadTimeout
	p.QueryDelay = time.Millisecond
	p.SettleDelay = time.Millisecond
	require.NoError(t, p.Validate())

	portCfg, err := p.PortConfig()
	require.NoError(t, err)

	ins := newInstrument(0)
	port, err := lineport.New(ins, portCfg)
	require.NoError(t, err)

	adapterCfg, err := p.AdapterConfig()
	require.NoError(t, err)

	adapter, err := console.NewAdapter(port, adapterCfg)
	require.NoError(t, err)

	require.NoError(t, adapter.Open())
	defer adapter.Close()

	ins.on("sh cur", "", "LDC = 123.4 mA", "[OK]")

	value, err := adapter.Ask("sh cur")
	require.NoError(t, err)
	assert.Equal(t, "123.4", value)
}

func TestConsoleSession_MultipleConnections(t *testing.T) {
	reg := console.NewRegistry()

	s1 := newSession(t)
	s1.open(t)
	defer s1.adapter.Close()

	s2 := newSession(t)
	s2.open(t)
	defer s2.adapter.Close()

	require.NoError(t, reg.Register("laser1", s1.adapter))
	require.NoError(t, reg.Register("laser2", s2.adapter))
	assert.Equal(t, 2, reg.Len())

	s1.ins.on("sh temp", "", "TEMP = 21.00 C", "[OK]")
	s2.ins.on("sh temp", "", "TEMP = 42.00 C", "[OK]")

	a1, ok := reg.Lookup("laser1")
	require.True(t, ok)
	v1, err := a1.Ask("sh temp")
	require.NoError(t, err)
	assert.Equal(t, "21.00", v1)

	a2, ok := reg.Lookup("laser2")
	require.True(t, ok)
	v2, err := a2.Ask("sh temp")
	require.NoError(t, err)
	assert.Equal(t, "42.00", v2)

	removed := reg.Deregister("laser1")
	require.NotNil(t, removed)
	require.NoError(t, removed.Close())
	assert.True(t, s1.ins.isClosed())
	assert.Equal(t, 1, reg.Len())
}

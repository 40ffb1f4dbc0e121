package trace

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCapture records the given events into a fresh capture file and
// returns its path.
func writeCapture(t *testing.T, events ...Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "capture.cbor")

	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	for _, ev := range events {
		rec.Record(ev)
	}

	require.NoError(t, rec.Close())

	return path
}

// readAll drains a reader, failing the test on anything but io.EOF.
func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()

	var events []Event

	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}

		require.NoError(t, err)
		events = append(events, ev)
	}
}

func baseTime() time.Time {
	return time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
}

func sampleEvents() []Event {
	t0 := baseTime()

	return []Event{
		{Timestamp: t0, ConnectionID: "conn-1", Port: "/dev/ttyUSB0", Direction: DirectionOut, Kind: KindCommand, Line: "pow?", Command: "pow?"},
		{Timestamp: t0.Add(time.Second), ConnectionID: "conn-1", Port: "/dev/ttyUSB0", Direction: DirectionIn, Kind: KindEcho, Command: "pow?"},
		{Timestamp: t0.Add(2 * time.Second), ConnectionID: "conn-1", Port: "/dev/ttyUSB0", Direction: DirectionIn, Kind: KindData, Line: "power = 12.3 mW", Command: "pow?"},
		{Timestamp: t0.Add(3 * time.Second), ConnectionID: "conn-2", Port: "/dev/ttyUSB1", Direction: DirectionIn, Kind: KindAck, Line: "[OK]", Command: "talk usual"},
	}
}

func TestFileRecorder_Roundtrip(t *testing.T) {
	want := sampleEvents()
	path := writeCapture(t, want...)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, len(want))

	for i, ev := range got {
		assert.True(t, ev.Timestamp.Equal(want[i].Timestamp), "event %d timestamp", i)
		assert.Equal(t, want[i].ConnectionID, ev.ConnectionID, "event %d", i)
		assert.Equal(t, want[i].Kind, ev.Kind, "event %d", i)
		assert.Equal(t, want[i].Direction, ev.Direction, "event %d", i)
		assert.Equal(t, want[i].Line, ev.Line, "event %d", i)
		assert.Equal(t, want[i].Command, ev.Command, "event %d", i)
	}
}

func TestFileRecorder_Appends(t *testing.T) {
	events := sampleEvents()
	path := writeCapture(t, events[0])

	rec, err := NewFileRecorder(path)
	require.NoError(t, err)
	rec.Record(events[1])
	require.NoError(t, rec.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, 2)
	assert.Equal(t, KindCommand, got[0].Kind)
	assert.Equal(t, KindEcho, got[1].Kind)
}

func TestFileRecorder_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.cbor")

	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	// Recording after close is silently dropped.
	rec.Record(Event{Kind: KindCommand})

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Empty(t, readAll(t, r))
}

func TestNewFileRecorder_BadPath(t *testing.T) {
	_, err := NewFileRecorder(filepath.Join(t.TempDir(), "missing", "capture.cbor"))
	require.Error(t, err)
}

func TestNewReader_MissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.cbor"))
	require.Error(t, err)
}

func TestFilteredReader_ByConnection(t *testing.T) {
	path := writeCapture(t, sampleEvents()...)

	r, err := NewFilteredReader(path, Filter{ConnectionID: "conn-2"})
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, 1)
	assert.Equal(t, KindAck, got[0].Kind)
}

func TestFilteredReader_ByPort(t *testing.T) {
	path := writeCapture(t, sampleEvents()...)

	r, err := NewFilteredReader(path, Filter{Port: "/dev/ttyUSB0"})
	require.NoError(t, err)
	defer r.Close()

	assert.Len(t, readAll(t, r), 3)
}

func TestFilteredReader_ByKindAndDirection(t *testing.T) {
	path := writeCapture(t, sampleEvents()...)

	kind := KindData
	dir := DirectionIn

	r, err := NewFilteredReader(path, Filter{Kind: &kind, Direction: &dir})
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, 1)
	assert.Equal(t, "power = 12.3 mW", got[0].Line)
}

func TestFilteredReader_TimeWindow(t *testing.T) {
	path := writeCapture(t, sampleEvents()...)

	start := baseTime().Add(time.Second)
	end := baseTime().Add(3 * time.Second)

	r, err := NewFilteredReader(path, Filter{TimeStart: &start, TimeEnd: &end})
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, 2, "window start is inclusive, end is exclusive")
	assert.Equal(t, KindEcho, got[0].Kind)
	assert.Equal(t, KindData, got[1].Kind)
}

func TestFilteredReader_NoMatch(t *testing.T) {
	path := writeCapture(t, sampleEvents()...)

	r, err := NewFilteredReader(path, Filter{ConnectionID: "conn-999"})
	require.NoError(t, err)
	defer r.Close()

	assert.Empty(t, readAll(t, r))
}

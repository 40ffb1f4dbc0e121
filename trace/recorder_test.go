package trace

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopRecorder(t *testing.T) {
	var rec NopRecorder
	rec.Record(Event{Kind: KindCommand, Line: "echo off"})
}

func TestMemoryRecorder_Record(t *testing.T) {
	rec := NewMemoryRecorder(8)

	rec.Record(Event{Kind: KindCommand, Line: "echo off"})
	rec.Record(Event{Kind: KindAck, Line: "[OK]"})

	require.Equal(t, 2, rec.Len())

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, KindCommand, events[0].Kind)
	assert.Equal(t, KindAck, events[1].Kind)
}

func TestMemoryRecorder_EvictsOldest(t *testing.T) {
	rec := NewMemoryRecorder(3)

	for i := 0; i < 5; i++ {
		rec.Record(Event{Line: fmt.Sprintf("line%d", i)})
	}

	require.Equal(t, 3, rec.Len())

	events := rec.Events()
	assert.Equal(t, "line2", events[0].Line)
	assert.Equal(t, "line4", events[2].Line)
}

func TestMemoryRecorder_DefaultLimit(t *testing.T) {
	rec := NewMemoryRecorder(0)

	for i := 0; i < DefaultMemoryLimit+10; i++ {
		rec.Record(Event{Line: fmt.Sprintf("line%d", i)})
	}

	assert.Equal(t, DefaultMemoryLimit, rec.Len())
}

func TestMemoryRecorder_Reset(t *testing.T) {
	rec := NewMemoryRecorder(8)
	rec.Record(Event{Kind: KindCommand})

	rec.Reset()
	assert.Equal(t, 0, rec.Len())
	assert.Empty(t, rec.Events())
}

func TestMemoryRecorder_SnapshotIsolated(t *testing.T) {
	rec := NewMemoryRecorder(8)
	rec.Record(Event{Line: "original"})

	snapshot := rec.Events()
	snapshot[0].Line = "mutated"

	assert.Equal(t, "original", rec.Events()[0].Line)
}

func TestMemoryRecorder_Concurrent(t *testing.T) {
	rec := NewMemoryRecorder(64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for n := 0; n < 100; n++ {
				rec.Record(Event{Kind: KindData})
				_ = rec.Events()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 64, rec.Len())
}

func TestMultiRecorder(t *testing.T) {
	first := NewMemoryRecorder(8)
	second := NewMemoryRecorder(8)

	multi := NewMultiRecorder(first, nil, second)
	multi.Record(Event{Kind: KindFlush})

	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
}

func TestMultiRecorder_Empty(t *testing.T) {
	multi := NewMultiRecorder()
	multi.Record(Event{Kind: KindFlush})
}

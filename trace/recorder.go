package trace

import (
	"sync"

	"github.com/photonio/go-optocon/internal/util"
)

// Recorder receives protocol events from an adapter.
// Pass NopRecorder to disable capture.
type Recorder interface {
	// Record captures a protocol event. Implementations must be safe for
	// concurrent use and should return quickly; blocking stalls the protocol.
	Record(event Event)
}

// NopRecorder discards all events. Use when capture is disabled.
// NopRecorder is safe for concurrent use and usable as a zero value.
type NopRecorder struct{}

// Record discards the event.
func (NopRecorder) Record(Event) {}

var _ Recorder = NopRecorder{}

// DefaultMemoryLimit is the event window retained by a MemoryRecorder
// created with a non-positive limit.
const DefaultMemoryLimit = 1024

// MemoryRecorder keeps the most recent events in memory, dropping the oldest
// once the limit is reached. It is safe for concurrent use.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewMemoryRecorder creates a MemoryRecorder retaining at most limit events.
// A non-positive limit falls back to DefaultMemoryLimit.
func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryRecorder{limit: limit}
}

// Record appends the event, evicting the oldest events beyond the limit.
func (r *MemoryRecorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	if n := len(r.events) - r.limit; n > 0 {
		r.events = append(r.events[:0], r.events[n:]...)
	}
}

// Events returns a snapshot of the retained events, oldest first.
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return util.CloneSlice(r.events)
}

// Len returns the number of retained events.
func (r *MemoryRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

// Reset discards all retained events.
func (r *MemoryRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = r.events[:0]
}

var _ Recorder = (*MemoryRecorder)(nil)

// MultiRecorder fans each event out to several recorders.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder over the given recorders.
// Nil entries are skipped.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	m := &MultiRecorder{recorders: make([]Recorder, 0, len(recorders))}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

// Record forwards the event to every recorder in order.
func (m *MultiRecorder) Record(event Event) {
	for _, r := range m.recorders {
		r.Record(event)
	}
}

var _ Recorder = (*MultiRecorder)(nil)

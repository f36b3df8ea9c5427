package events

import (
	"sync"

	"rentmarket/core/types"
)

// payloadEvent is implemented by emitted events that carry a structured
// payload worth retaining for queries.
type payloadEvent interface {
	Event() *types.Event
}

// Buffer retains the most recent emitted events in memory so trailing
// consumers (RPC, tests) can inspect them. Older entries are discarded once
// the configured capacity is exceeded.
type Buffer struct {
	mu      sync.RWMutex
	max     int
	entries []*types.Event
}

// NewBuffer creates a bounded event buffer. A non-positive capacity defaults
// to 256 entries.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 256
	}
	return &Buffer{max: max}
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	carrier, ok := evt.(payloadEvent)
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, payload)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
}

// Latest returns up to limit of the most recently emitted events, newest
// last. A non-positive limit returns everything retained.
func (b *Buffer) Latest(limit int) []*types.Event {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if limit > 0 && len(b.entries) > limit {
		start = len(b.entries) - limit
	}
	out := make([]*types.Event, len(b.entries)-start)
	copy(out, b.entries[start:])
	return out
}

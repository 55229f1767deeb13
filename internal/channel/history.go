package channel

import (
	"sync"
	"time"

	"floroexpress/internal/domain"
)

// Event is a sequenced publication consumed by handlers and UI pollers.
type Event struct {
	Seq       int64            `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	Name      domain.EventName `json:"name"`
	Payload   domain.Payload   `json:"payload"`
}

// History stores recent events and provides incremental reads.
type History struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewHistory creates a bounded in-memory event buffer.
func NewHistory(maxEvents int) *History {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &History{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Append records one payload and assigns sequence and timestamp.
func (h *History) Append(payload domain.Payload, at time.Time) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	if at.IsZero() {
		at = time.Now()
	}
	event := Event{
		Seq:       h.nextSeq,
		Timestamp: at.UTC(),
		Name:      payload.EventName(),
		Payload:   payload,
	}

	h.events = append(h.events, event)
	if len(h.events) > h.maxEvents {
		trim := len(h.events) - h.maxEvents
		h.events = append([]Event(nil), h.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (h *History) Since(seq int64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(h.events))
	for _, event := range h.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

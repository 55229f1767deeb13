package channel

import (
	"testing"
	"time"

	"floroexpress/internal/domain"
)

// TestHistorySince verifies incremental event reads by sequence.
func TestHistorySince(t *testing.T) {
	history := NewHistory(3)
	history.Append(domain.ErrorMessage{Message: "1"}, time.Time{})
	history.Append(domain.ErrorMessage{Message: "2"}, time.Time{})
	history.Append(domain.ErrorMessage{Message: "3"}, time.Time{})

	events := history.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if events[0].Name != domain.EventErrorMessage {
		t.Fatalf("name = %q", events[0].Name)
	}
}

// TestHistoryCapsEntries verifies buffer limit trimming behavior.
func TestHistoryCapsEntries(t *testing.T) {
	history := NewHistory(2)
	history.Append(domain.ErrorMessage{Message: "1"}, time.Time{})
	history.Append(domain.ErrorMessage{Message: "2"}, time.Time{})
	history.Append(domain.ErrorMessage{Message: "3"}, time.Time{})

	events := history.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	first := events[0].Payload.(domain.ErrorMessage)
	second := events[1].Payload.(domain.ErrorMessage)
	if first.Message != "2" || second.Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].Seq != 3 {
		t.Fatalf("last seq = %d, want 3", events[1].Seq)
	}
}

package assemble

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// EventType defines the step lifecycle events recorded in the journal.
type EventType int

const (
	EventStarted EventType = iota
	EventRetried
	EventSucceeded
	EventFailed
	EventUndoStarted
	EventUndoSucceeded
	EventUndoFailed
)

// String returns the string representation of the EventType.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventRetried:
		return "retried"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventUndoStarted:
		return "undo_started"
	case EventUndoSucceeded:
		return "undo_succeeded"
	case EventUndoFailed:
		return "undo_failed"
	default:
		return fmt.Sprintf("unknown EventType: %d", int(t))
	}
}

// Event is one entry in the journal.
type Event struct {
	RunID   uuid.UUID
	Index   int
	Name    string
	Attempt int
	Type    EventType
}

// String implements the fmt.Stringer interface for Event.
func (e Event) String() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("O%03d %s attempt=%d %s", e.Index, e.Name, e.Attempt, e.Type)
	}
	return fmt.Sprintf("O%03d %s %s", e.Index, e.Name, e.Type)
}

// Journal is the in-memory event log for one saga run.  It records every
// step lifecycle transition in the order it was observed and flips to
// unwinding once any failure or compensation event is seen.  The journal
// lives and dies with the run; it is not a persistence mechanism.
type Journal struct {
	mu        sync.Mutex
	runID     uuid.UUID
	unwinding bool
	events    []Event
}

func newJournal(runID uuid.UUID) *Journal {
	return &Journal{runID: runID}
}

// record appends an event to the journal.
func (j *Journal) record(index int, name string, attempt int, eventType EventType) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch eventType {
	case EventFailed, EventUndoStarted, EventUndoSucceeded, EventUndoFailed:
		j.unwinding = true
	}

	j.events = append(j.events, Event{
		RunID:   j.runID,
		Index:   index,
		Name:    name,
		Attempt: attempt,
		Type:    eventType,
	})
}

// Unwinding returns true once the run has recorded a final failure or any
// compensation activity.
func (j *Journal) Unwinding() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.unwinding
}

// Events returns a copy of the recorded events.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	events := make([]Event, len(j.events))
	copy(events, j.events)
	return events
}

// String implements the fmt.Stringer interface for Journal.
func (j *Journal) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("SAGA JOURNAL:\n")
	sb.WriteString(fmt.Sprintf("run id:    %s\n", j.runID))
	direction := "forward"
	if j.unwinding {
		direction = "unwinding"
	}
	sb.WriteString(fmt.Sprintf("direction: %s\n", direction))
	sb.WriteString(fmt.Sprintf("events (%d total):\n", len(j.events)))
	for i, event := range j.events {
		sb.WriteString(fmt.Sprintf("%03d %s\n", i+1, event.String()))
	}
	return sb.String()
}

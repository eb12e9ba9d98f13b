// Package memwriter provides an in-memory Event Writer, the Go analogue
// of the original's infrastructure/stubs in-memory event writer adapter.
package memwriter

import (
	"context"
	"sync"
	"time"

	"github.com/archon-governance/three-fates/pkg/domain"
	"github.com/archon-governance/three-fates/pkg/events"
	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// Writer is an in-memory events.Writer. FailNextWrite causes the next
// Write call to fail with a KindTransient error — used by tests to exercise
// the Transactional Fate Coordinator's rollback path (spec.md §8 scenario 3).
type Writer struct {
	mu       sync.Mutex
	events   []*domain.Event
	failNext bool
}

// New constructs an empty Writer.
func New() *Writer {
	return &Writer{}
}

// FailNextWrite arms a one-shot failure for the next Write call.
func (w *Writer) FailNextWrite() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNext = true
}

func (w *Writer) Write(_ context.Context, eventType string, payload map[string]any) (*domain.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failNext {
		w.failNext = false
		return nil, petitionerr.New(petitionerr.KindTransient, "forced event emission failure")
	}

	evt, err := events.NewEvent(eventType, payload, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	w.events = append(w.events, evt)
	return evt, nil
}

// All returns every event written so far, in emission order.
func (w *Writer) All() []*domain.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*domain.Event, len(w.events))
	copy(out, w.events)
	return out
}

// CountByType returns how many persisted events carry eventType.
func (w *Writer) CountByType(eventType string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, e := range w.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

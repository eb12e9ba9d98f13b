// Package haltgate implements the Halt Gate (C2): a single, process-shared
// signal that every write-classified operation must consult before
// touching any other state. Reads bypass the gate entirely.
//
// Grounded on the teacher's mutex-guarded shared-state convention (e.g.
// the MemoryKV struct in the teacher's main.go, and the single-writer
// doc-comment style in pkg/ledger/store.go) generalized to a read-mostly,
// broadcast-on-change signal.
package haltgate

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Gate is a process-shared halt signal. Its zero value (via New) starts
// un-halted. All methods are safe for concurrent use.
type Gate struct {
	mu      sync.RWMutex
	halted  bool
	reason  string
	gauge   prometheus.Gauge
}

// New constructs a Gate that starts un-halted. gauge may be nil; when
// supplied, it is kept in sync with halt state (1 = halted, 0 = not).
func New(gauge prometheus.Gauge) *Gate {
	g := &Gate{gauge: gauge}
	if gauge != nil {
		gauge.Set(0)
	}
	return g
}

// IsHalted reports whether the system is currently halted. Read operations
// never need to call this; only write-classified operations do, and they
// must call it before any other state mutation.
func (g *Gate) IsHalted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.halted
}

// Reason returns the current halt reason, or "" if not halted.
func (g *Gate) Reason() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reason
}

// Halt activates the gate with the given reason. Idempotent: halting an
// already-halted gate just updates the reason.
func (g *Gate) Halt(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = true
	g.reason = reason
	if g.gauge != nil {
		g.gauge.Set(1)
	}
}

// Resume deactivates the gate. Idempotent.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = false
	g.reason = ""
	if g.gauge != nil {
		g.gauge.Set(0)
	}
}

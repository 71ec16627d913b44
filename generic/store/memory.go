// Package store provides ReportStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/subscription-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	runs  map[generic.RunID]generic.Run
	order []generic.RunID
}

func NewMemory() *Memory {
	return &Memory{
		runs: make(map[generic.RunID]generic.Run),
	}
}

// Save archives a copy of run. Append-only.
func (m *Memory) Save(_ context.Context, run generic.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return generic.ErrDuplicateRun
	}
	m.runs[run.ID] = cloneRun(run)
	m.order = append(m.order, run.ID)
	return nil
}

func (m *Memory) Load(_ context.Context, id generic.RunID) (generic.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return generic.Run{}, generic.ErrRunNotFound
	}
	return cloneRun(run), nil
}

// Runs returns run IDs in save order.
func (m *Memory) Runs() []generic.RunID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]generic.RunID, len(m.order))
	copy(out, m.order)
	return out
}

// Callers keep mutating their maps after Save; the archive must not see it.
func cloneRun(run generic.Run) generic.Run {
	out := run
	out.Partners = append([]generic.PartnerName(nil), run.Partners...)
	out.Report = generic.Report{Subscriptions: make(map[string]generic.Tally, len(run.Report.Subscriptions))}
	for name, tally := range run.Report.Subscriptions {
		t := make(generic.Tally, len(tally))
		for p, days := range tally {
			t[p] = days
		}
		out.Report.Subscriptions[name] = t
	}
	return out
}

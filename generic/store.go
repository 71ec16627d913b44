/*
store.go - Persistence interface for computed reports

PURPOSE:
  Defines the interface between report computation and wherever reports
  end up. Computation itself is pure; a Run wraps one Report with the
  metadata needed to find it again.

APPEND-ONLY CONTRACT:
  - Save(): write one run. A second Save with the same ID is rejected.
  - NO Update() or Delete() methods exist. Recomputing yields a new run.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable archive (runs + per-partner totals)
  - generic/store/memory.go: In-memory for testing

EXAMPLE:
  run := generic.NewRun(report, partners, time.Now())
  if err := store.Save(ctx, run); errors.Is(err, generic.ErrDuplicateRun) {
      // already archived
  }

SEE ALSO:
  - types.go: Report / Tally
  - api/handlers.go: Saves every report it computes
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RUN - One archived computation
// =============================================================================

// RunID identifies an archived report.
type RunID string

// NewRunID returns a fresh random run ID.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Run is a computed report plus the partner order it was computed with.
type Run struct {
	ID        RunID
	CreatedAt time.Time
	Partners  []PartnerName
	Report    Report
}

// NewRun stamps report with a new ID. createdAt is stored in UTC.
func NewRun(report Report, partners []PartnerName, createdAt time.Time) Run {
	return Run{
		ID:        NewRunID(),
		CreatedAt: createdAt.UTC(),
		Partners:  partners,
		Report:    report,
	}
}

// =============================================================================
// STORE - Interface for report persistence (append-only)
// =============================================================================

// ReportStore archives computed reports.
type ReportStore interface {
	// Save persists run. Returns ErrDuplicateRun if run.ID exists.
	Save(ctx context.Context, run Run) error

	// Load returns the run with the given ID, or ErrRunNotFound.
	Load(ctx context.Context, id RunID) (Run, error)
}

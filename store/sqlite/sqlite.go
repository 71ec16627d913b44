/*
Package sqlite provides a SQLite-backed report archive.

PURPOSE:
  Implements generic.ReportStore using SQLite. Every computed report is
  kept as one run row plus its beneficiaries and per-partner totals, so a
  run can be read back exactly as it was computed.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on any table
  - No DELETE statements on any table
  - A recomputation is a new run with a new ID

KEY TABLES:
  report_runs:          One row per computation (id, created_at, partner order)
  report_beneficiaries: Every beneficiary in the run, including those with
                        no positive total
  report_totals:        Days per (run, beneficiary, partner)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, one writer at a time. Save runs in a
  single SQL transaction, so a run is either fully archived or absent.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/subscriptions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.Save(ctx, generic.NewRun(report, partners, time.Now()))

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/subscription-engine/generic"
)

// Store implements generic.ReportStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.ReportStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every pooled connection to ":memory:" would be a separate database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS report_runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		partners_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_report_runs_created_at
		ON report_runs(created_at);

	CREATE TABLE IF NOT EXISTS report_beneficiaries (
		run_id TEXT NOT NULL REFERENCES report_runs(id),
		name TEXT NOT NULL,
		PRIMARY KEY (run_id, name)
	);

	CREATE TABLE IF NOT EXISTS report_totals (
		run_id TEXT NOT NULL,
		beneficiary TEXT NOT NULL,
		partner TEXT NOT NULL,
		days INTEGER NOT NULL,
		PRIMARY KEY (run_id, beneficiary, partner),
		FOREIGN KEY (run_id, beneficiary) REFERENCES report_beneficiaries(run_id, name)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPORT STORE (generic.ReportStore interface)
// =============================================================================

// Save archives run atomically.
func (s *Store) Save(ctx context.Context, run generic.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partnersJSON, err := json.Marshal(run.Partners)
	if err != nil {
		return fmt.Errorf("failed to encode partners: %w", err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx,
		`INSERT INTO report_runs (id, created_at, partners_json) VALUES (?, ?, ?)`,
		string(run.ID),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(partnersJSON),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateRun
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, name := range run.Report.Names() {
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO report_beneficiaries (run_id, name) VALUES (?, ?)`,
			string(run.ID), name,
		); err != nil {
			return fmt.Errorf("failed to insert beneficiary %s: %w", name, err)
		}
		for partner, days := range run.Report.Subscriptions[name] {
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT INTO report_totals (run_id, beneficiary, partner, days) VALUES (?, ?, ?, ?)`,
				string(run.ID), name, string(partner), days,
			); err != nil {
				return fmt.Errorf("failed to insert total %s/%s: %w", name, partner, err)
			}
		}
	}

	return sqlTx.Commit()
}

// Load reads back one archived run.
func (s *Store) Load(ctx context.Context, id generic.RunID) (generic.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run          = generic.Run{ID: id}
		createdAt    string
		partnersJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, partners_json FROM report_runs WHERE id = ?`, string(id),
	).Scan(&createdAt, &partnersJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Run{}, generic.ErrRunNotFound
	}
	if err != nil {
		return generic.Run{}, fmt.Errorf("failed to query run: %w", err)
	}

	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return generic.Run{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(partnersJSON), &run.Partners); err != nil {
		return generic.Run{}, fmt.Errorf("failed to decode partners: %w", err)
	}

	run.Report, err = s.loadReport(ctx, id)
	if err != nil {
		return generic.Run{}, err
	}
	return run, nil
}

func (s *Store) loadReport(ctx context.Context, id generic.RunID) (generic.Report, error) {
	report := generic.Report{Subscriptions: make(map[string]generic.Tally)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM report_beneficiaries WHERE run_id = ?`, string(id))
	if err != nil {
		return report, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return report, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		report.Subscriptions[name] = generic.Tally{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT beneficiary, partner, days FROM report_totals WHERE run_id = ?`, string(id))
	if err != nil {
		return report, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, partner string
			days          int
		)
		if err := rows.Scan(&name, &partner, &days); err != nil {
			return report, fmt.Errorf("failed to scan total: %w", err)
		}
		report.Subscriptions[name][generic.PartnerName(partner)] = days
	}
	return report, rows.Err()
}

// Runs returns archived run IDs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]generic.RunID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM report_runs ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var ids []generic.RunID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		ids = append(ids, generic.RunID(id))
	}
	return ids, rows.Err()
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

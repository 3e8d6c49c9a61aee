// Package history is an auxiliary, non-authoritative observability log of
// past sync cycles: when each cycle ran, how it ended, and how much it
// shipped. It is never consulted to decide what to ship next — the journal
// and baseline (spec.md §3) are the sole authority for that — this package
// only answers "what happened" for `status` reporting and diagnostics.
// Repurposed from the teacher's internal/sync/baseline.go and ledger.go
// sole-writer SQLite pattern (WAL journal mode, SetMaxOpenConns(1), goose
// migrations), applied here to a single narrow table instead of the
// teacher's full sync-state schema.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // database/sql driver registration
)

// Status values for the cycles.status column.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusAborted = "aborted"
)

// Store is the sole writer to the history database. One Store is opened for
// the lifetime of the daemon process.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if absent) the history database at dbPath, runs
// migrations, and returns a ready-to-use Store. WAL mode with
// synchronous=FULL mirrors the teacher's baseline/ledger durability choice,
// even though this data is advisory rather than authoritative.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()

		return nil, err
	}

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginCycle inserts a running-status row for a cycle starting now and
// returns its row ID for the matching FinishCycle call.
func (s *Store) BeginCycle(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (started_at, status) VALUES (?, ?)`,
		s.nowFunc().UTC().Format(time.RFC3339), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("history: beginning cycle: %w", err)
	}

	return res.LastInsertId()
}

// CycleStats summarizes one cycle's shipped volume, reported by the
// orchestrator at FinishCycle time.
type CycleStats struct {
	SchemaLinesShipped int
	FilesShipped       int
	FilesDeleted       int
}

// FinishCycle records the outcome of the cycle started by BeginCycle. cause
// is nil for a clean finish; otherwise its Error() string is stored and the
// status is StatusAborted.
func (s *Store) FinishCycle(ctx context.Context, id int64, stats CycleStats, cause error) error {
	status := StatusSuccess

	var errMsg sql.NullString

	if cause != nil {
		status = StatusAborted
		errMsg = sql.NullString{String: cause.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE cycles SET ended_at = ?, status = ?, schema_lines_shipped = ?,
			files_shipped = ?, files_deleted = ?, error = ? WHERE id = ?`,
		s.nowFunc().UTC().Format(time.RFC3339), status,
		stats.SchemaLinesShipped, stats.FilesShipped, stats.FilesDeleted, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("history: finishing cycle %d: %w", id, err)
	}

	return nil
}

// CycleRecord is one row of cycle history, returned by Recent.
type CycleRecord struct {
	ID                 int64
	StartedAt          time.Time
	EndedAt            *time.Time
	Status             string
	SchemaLinesShipped int
	FilesShipped       int
	FilesDeleted       int
	Error              string
}

// Recent returns the most recent limit cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, status, schema_lines_shipped,
			files_shipped, files_deleted, error
			FROM cycles ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: querying recent cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRecord

	for rows.Next() {
		var (
			rec     CycleRecord
			started string
			ended   sql.NullString
			errMsg  sql.NullString
		)

		if err := rows.Scan(&rec.ID, &started, &ended, &rec.Status,
			&rec.SchemaLinesShipped, &rec.FilesShipped, &rec.FilesDeleted, &errMsg); err != nil {
			return nil, fmt.Errorf("history: scanning cycle row: %w", err)
		}

		rec.StartedAt, err = time.Parse(time.RFC3339, started)
		if err != nil {
			return nil, fmt.Errorf("history: parsing started_at: %w", err)
		}

		if ended.Valid {
			t, err := time.Parse(time.RFC3339, ended.String)
			if err != nil {
				return nil, fmt.Errorf("history: parsing ended_at: %w", err)
			}

			rec.EndedAt = &t
		}

		rec.Error = errMsg.String

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating cycle rows: %w", err)
	}

	return out, nil
}

// Package statsdb records per-run adaptation statistics to SQLite for
// offline inspection and plotting.
//
// This is a report sink, not engine persistence: the engine's learned
// history never leaves the process, and nothing stored here is read back
// into a later run. Each program run gets a UUID so rows from repeated
// experiments stay distinguishable in one database file.
package statsdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go sqlite driver

	cadence "github.com/cadence-rt/cadence"
)

// migrations holds the schema statements (SQLite executes one at a time).
func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id     TEXT PRIMARY KEY,
			started_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// One row per frame snapshot: histogram and ratios as rendered text,
		// ratios additionally as columns for querying.
		`CREATE TABLE IF NOT EXISTS frame_snapshots (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL,
			frame_id      INTEGER NOT NULL,
			invocation    INTEGER NOT NULL,
			satisfaction_specified REAL NOT NULL DEFAULT 0,
			satisfaction_active    REAL NOT NULL DEFAULT 0,
			report        TEXT NOT NULL,
			recorded_at   TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_frame_snapshots_run ON frame_snapshots(run_id, frame_id)`,

		`CREATE TABLE IF NOT EXISTS execframe_snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			execframe_id INTEGER NOT NULL,
			invocation  INTEGER NOT NULL,
			report      TEXT NOT NULL,
			recorded_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_execframe_snapshots_run ON execframe_snapshots(run_id, execframe_id)`,
	}
}

// DB is an open statistics database bound to one run id.
type DB struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the database at path, applies the schema,
// and registers a fresh run.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsdb: open %s: %w", path, err)
	}
	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("statsdb: migrate: %w", err)
		}
	}

	runID := uuid.NewString()
	if _, err := db.Exec(
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("statsdb: register run: %w", err)
	}

	return &DB{db: db, runID: runID}, nil
}

// OpenReadOnly opens (creating if needed) the database at path and applies
// the schema, without registering a new run, for replaying recorded snapshots.
func OpenReadOnly(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsdb: open %s: %w", path, err)
	}
	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("statsdb: migrate: %w", err)
		}
	}
	return &DB{db: db}, nil
}

// RunID returns the UUID assigned to this run.
func (d *DB) RunID() string { return d.runID }

// LatestRunID returns the most recently started run in the database.
func (d *DB) LatestRunID() (string, error) {
	var runID string
	err := d.db.QueryRow(
		`SELECT run_id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("statsdb: no recorded runs")
	}
	if err != nil {
		return "", fmt.Errorf("statsdb: latest run: %w", err)
	}
	return runID, nil
}

// LatestReports returns the rendered report of the last snapshot per frame
// (then per exec frame) recorded under runID, in frame-id order.
func (d *DB) LatestReports(runID string) ([]string, error) {
	var reports []string
	for _, q := range []string{
		`SELECT report FROM frame_snapshots
			WHERE run_id = ? AND id IN (
				SELECT MAX(id) FROM frame_snapshots WHERE run_id = ? GROUP BY frame_id
			)
			ORDER BY frame_id`,
		`SELECT report FROM execframe_snapshots
			WHERE run_id = ? AND id IN (
				SELECT MAX(id) FROM execframe_snapshots WHERE run_id = ? GROUP BY execframe_id
			)
			ORDER BY execframe_id`,
	} {
		rows, err := d.db.Query(q, runID, runID)
		if err != nil {
			return nil, fmt.Errorf("statsdb: latest reports: %w", err)
		}
		for rows.Next() {
			var report string
			if err := rows.Scan(&report); err != nil {
				rows.Close()
				return nil, fmt.Errorf("statsdb: latest reports: %w", err)
			}
			reports = append(reports, report)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("statsdb: latest reports: %w", err)
		}
		rows.Close()
	}
	return reports, nil
}

// RecordFrame stores one frame statistics snapshot.
func (d *DB) RecordFrame(invocation int64, stats cadence.FrameStatistics) error {
	_, err := d.db.Exec(
		`INSERT INTO frame_snapshots
			(run_id, frame_id, invocation, satisfaction_specified, satisfaction_active, report)
			VALUES (?, ?, ?, ?, ?, ?)`,
		d.runID, int64(stats.FrameID), invocation,
		stats.SatisfactionRatioSpecified, stats.SatisfactionRatioActive,
		stats.PrintString(),
	)
	if err != nil {
		return fmt.Errorf("statsdb: record frame %d: %w", stats.FrameID, err)
	}
	return nil
}

// RecordExecFrame stores one exec-frame statistics snapshot.
func (d *DB) RecordExecFrame(invocation int64, stats cadence.ExecFrameStatistics) error {
	_, err := d.db.Exec(
		`INSERT INTO execframe_snapshots (run_id, execframe_id, invocation, report)
			VALUES (?, ?, ?, ?)`,
		d.runID, int64(stats.ExecFrameID), invocation, stats.PrintString(),
	)
	if err != nil {
		return fmt.Errorf("statsdb: record execframe %d: %w", stats.ExecFrameID, err)
	}
	return nil
}

// FrameSnapshotCount returns the number of snapshots stored for a frame in
// this run.
func (d *DB) FrameSnapshotCount(frameID cadence.FrameID) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM frame_snapshots WHERE run_id = ? AND frame_id = ?`,
		d.runID, int64(frameID),
	).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (d *DB) Close() error { return d.db.Close() }

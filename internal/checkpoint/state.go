package checkpoint

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	completed_at TEXT,
	status TEXT NOT NULL,
	phase TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	findings INTEGER NOT NULL DEFAULT 0,
	config_path TEXT NOT NULL DEFAULT '',
	config TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS table_outcomes (
	run_id TEXT NOT NULL REFERENCES runs(id),
	table_name TEXT NOT NULL,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	blocked INTEGER NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (run_id, table_name)
);
`

// Fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// State is the SQLite run ledger.
type State struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the ledger at path. Use ":memory:" for a
// throwaway ledger.
func New(path string) (*State, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring state database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state schema: %w", err)
	}
	return &State{db: db, path: path}, nil
}

// Path returns the ledger location.
func (s *State) Path() string { return s.path }

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// CreateRun records a new running run.
func (s *State) CreateRun(id string, config any, configPath string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, status, config_path, config) VALUES (?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(timeLayout), RunRunning, configPath, configJSON(config),
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// UpdatePhase records the pipeline phase a run has reached.
func (s *State) UpdatePhase(runID, phase string) error {
	res, err := s.db.Exec(`UPDATE runs SET phase = ? WHERE id = ?`, phase, runID)
	if err != nil {
		return fmt.Errorf("updating phase: %w", err)
	}
	return expectOne(res, runID)
}

// CompleteRun closes a run with its final status.
func (s *State) CompleteRun(id, status, errorMsg string, findings int) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, findings = ?, completed_at = ? WHERE id = ?`,
		status, errorMsg, findings, time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("completing run: %w", err)
	}
	return expectOne(res, id)
}

// RecordTable stores a table's outcome, replacing any earlier record for
// the same run and table.
func (s *State) RecordTable(runID string, t TableOutcome) error {
	if t.RecordedAt.IsZero() {
		t.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO table_outcomes (run_id, table_name, status, row_count, blocked, reason, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, table_name) DO UPDATE SET
			status = excluded.status,
			row_count = excluded.row_count,
			blocked = excluded.blocked,
			reason = excluded.reason,
			error = excluded.error,
			recorded_at = excluded.recorded_at`,
		runID, t.Table, t.Status, t.Rows, t.Blocked, t.Reason, t.Error, t.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", t.Table, err)
	}
	return nil
}

// GetTableOutcomes returns a run's table outcomes in recording order.
func (s *State) GetTableOutcomes(runID string) ([]TableOutcome, error) {
	rows, err := s.db.Query(`
		SELECT table_name, status, row_count, blocked, reason, error, recorded_at
		FROM table_outcomes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []TableOutcome
	for rows.Next() {
		var t TableOutcome
		var recorded string
		if err := rows.Scan(&t.Table, &t.Status, &t.Rows, &t.Blocked, &t.Reason, &t.Error, &recorded); err != nil {
			return nil, err
		}
		if t.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetAllRuns returns every run, newest first.
func (s *State) GetAllRuns() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, completed_at, status, phase, error, findings, config_path, config
		FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRunByID returns one run, or nil if it does not exist.
func (s *State) GetRunByID(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, completed_at, status, phase, error, findings, config_path, config
		FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var started string
	var completed sql.NullString
	if err := sc.Scan(&r.ID, &started, &completed, &r.Status, &r.Phase, &r.Error, &r.Findings, &r.ConfigPath, &r.Config); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	r.StartedAt = t
	if completed.Valid {
		c, err := time.Parse(timeLayout, completed.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		r.CompletedAt = &c
	}
	return &r, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

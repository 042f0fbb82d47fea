package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/hormone-harness/internal/record"
)

// #region ddl
const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	benchmark     TEXT NOT NULL,
	task_id       INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	controller    TEXT NOT NULL CHECK (controller IN ('off', 'on')),
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	status        TEXT,
	steps         INTEGER NOT NULL DEFAULT 0,
	total_tokens  INTEGER NOT NULL DEFAULT 0,
	response_json TEXT,
	error         TEXT
);

CREATE TABLE IF NOT EXISTS steps (
	run_id            TEXT NOT NULL,
	step              INTEGER NOT NULL,
	regime_before     TEXT NOT NULL,
	regime_after      TEXT NOT NULL,
	dopamine          REAL NOT NULL,
	cortisol          REAL NOT NULL,
	energy            REAL NOT NULL,
	validation_status TEXT NOT NULL,
	repairs           INTEGER NOT NULL,
	tool              TEXT,
	policy_blocked    INTEGER NOT NULL,
	final             INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	record_json       TEXT NOT NULL,
	PRIMARY KEY (run_id, step),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS repair_attempts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	step          INTEGER NOT NULL,
	attempt_index INTEGER NOT NULL,
	repair        INTEGER NOT NULL,
	valid         INTEGER NOT NULL,
	kind          TEXT,
	error         TEXT,
	FOREIGN KEY (run_id, step) REFERENCES steps(run_id, step)
);

CREATE INDEX IF NOT EXISTS runs_pair ON runs(benchmark, task_id, seed);

CREATE TRIGGER IF NOT EXISTS steps_no_update BEFORE UPDATE ON steps
BEGIN SELECT RAISE(ABORT, 'steps are append-only'); END;
CREATE TRIGGER IF NOT EXISTS steps_no_delete BEFORE DELETE ON steps
BEGIN SELECT RAISE(ABORT, 'steps are append-only'); END;
CREATE TRIGGER IF NOT EXISTS attempts_no_update BEFORE UPDATE ON repair_attempts
BEGIN SELECT RAISE(ABORT, 'repair attempts are append-only'); END;
`

// #endregion ddl

// #region store-struct
// Store indexes runs, steps and repair attempts in SQLite. It implements
// record.RunSink so a Recorder can feed it directly.
type Store struct {
	db *sql.DB
}

var _ record.RunSink = (*Store)(nil)

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. Writes from parallel
// episodes are serialised over a single connection.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region run-lifecycle
// BeginRun registers a run.
func (s *Store) BeginRun(ctx context.Context, id record.Identity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, benchmark, task_id, seed, controller, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.RunID, id.Benchmark, id.TaskID, id.Seed, id.Controller, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stores the run summary.
func (s *Store) FinishRun(ctx context.Context, id record.Identity, summary record.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, steps = ?, total_tokens = ?, response_json = ?, error = ?
		 WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), summary.Status, summary.Steps, summary.TotalTokens,
		nullIfEmpty(string(summary.Response)), nullIfEmpty(summary.Error), id.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", id.RunID)
	}
	return nil
}

// #endregion run-lifecycle

// #region write-step
// WriteStep indexes a record and its schema-guard attempts in one transaction.
func (s *Store) WriteStep(ctx context.Context, rec record.StepRecord) error {
	full, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal step: %w", err)
	}
	var tool string
	if rec.Action != nil {
		tool = rec.Action.Tool
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO steps (run_id, step, regime_before, regime_after, dopamine, cortisol, energy,
		                    validation_status, repairs, tool, policy_blocked, final, total_tokens, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Step, string(rec.RegimeBefore), string(rec.RegimeAfter),
		rec.HormonesAfter.Dopamine, rec.HormonesAfter.Cortisol, rec.HormonesAfter.Energy,
		string(rec.Validation.Status), rec.Validation.Repairs, nullIfEmpty(tool),
		rec.PolicyBlocked, rec.Final, rec.Usage.TotalTokens, string(full),
	)
	if err != nil {
		return fmt.Errorf("insert step %d: %w", rec.Step, err)
	}

	for _, a := range rec.Validation.Attempts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO repair_attempts (run_id, step, attempt_index, repair, valid, kind, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.Step, a.Index, a.Repair, a.Valid, nullIfEmpty(string(a.Kind)), nullIfEmpty(a.Error),
		)
		if err != nil {
			return fmt.Errorf("insert attempt %d of step %d: %w", a.Index, rec.Step, err)
		}
	}
	return tx.Commit()
}

// #endregion write-step

// #region queries
const runColumns = `run_id, benchmark, task_id, seed, controller, started_at, finished_at, status,
	steps, total_tokens, response_json, error`

// ListRuns returns runs matching f, newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]RunRow, error) {
	var where []string
	var args []any
	if f.Benchmark != "" {
		where = append(where, "benchmark = ?")
		args = append(args, f.Benchmark)
	}
	if f.Controller != "" {
		where = append(where, "controller = ?")
		args = append(args, f.Controller)
	}
	if f.TaskID != nil {
		where = append(where, "task_id = ?")
		args = append(args, *f.TaskID)
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY started_at DESC, run_id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves one run. A missing run returns sql.ErrNoRows wrapped.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		return RunRow{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRow, error) {
	var r RunRow
	var started string
	var finished, status, response, errText sql.NullString
	if err := sc.Scan(&r.RunID, &r.Benchmark, &r.TaskID, &r.Seed, &r.Controller, &started, &finished,
		&status, &r.Steps, &r.TotalTokens, &response, &errText); err != nil {
		return RunRow{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, _ := time.Parse(time.RFC3339Nano, finished.String)
		r.FinishedAt = &t
	}
	r.Status = status.String
	r.Response = response.String
	r.Error = errText.String
	return r, nil
}

// Steps returns the indexed steps of a run in order.
func (s *Store) Steps(ctx context.Context, runID string) ([]StepRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step, regime_before, regime_after, dopamine, cortisol, energy, validation_status,
		        repairs, tool, policy_blocked, final, total_tokens, record_json
		 FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRow
	for rows.Next() {
		var st StepRow
		var tool sql.NullString
		if err := rows.Scan(&st.RunID, &st.Step, &st.RegimeBefore, &st.RegimeAfter, &st.Dopamine, &st.Cortisol,
			&st.Energy, &st.ValidationStatus, &st.Repairs, &tool, &st.PolicyBlocked, &st.Final,
			&st.TotalTokens, &st.RecordJSON); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Tool = tool.String
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Attempts returns every schema-guard attempt of a run.
func (s *Store) Attempts(ctx context.Context, runID string) ([]AttemptRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step, attempt_index, repair, valid, kind, error
		 FROM repair_attempts WHERE run_id = ? ORDER BY step, attempt_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRow
	for rows.Next() {
		var a AttemptRow
		var kind, errText sql.NullString
		if err := rows.Scan(&a.RunID, &a.Step, &a.Index, &a.Repair, &a.Valid, &kind, &errText); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Kind, a.Error = kind.String, errText.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// RegimeCounts tallies steps per post-update regime for a run.
func (s *Store) RegimeCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT regime_after, COUNT(*) FROM steps WHERE run_id = ? GROUP BY regime_after`, runID)
	if err != nil {
		return nil, fmt.Errorf("regime counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var r string
		var n int
		if err := rows.Scan(&r, &n); err != nil {
			return nil, fmt.Errorf("scan regime count: %w", err)
		}
		counts[r] = n
	}
	return counts, rows.Err()
}

// #endregion queries

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

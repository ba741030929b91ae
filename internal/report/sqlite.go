package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/szibis/spamsketch/internal/metric"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	params      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	emails      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	window_index INTEGER NOT NULL,
	n            INTEGER NOT NULL,
	accuracy     REAL,
	precision    REAL,
	recall       REAL,
	PRIMARY KEY (run_id, window_index)
);

CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
`

// SQLiteSink stores runs and their snapshots in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time; concurrent sweep workers queue on the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write stores r in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, r *Result) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, kind, params, started_at, finished_at, emails)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Name, r.Kind, string(params),
		r.Started.UTC(), r.Finished.UTC(), r.Emails,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", r.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (run_id, window_index, n, accuracy, precision, recall)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range r.Snapshots {
		_, err := stmt.ExecContext(ctx,
			r.ID.String(), snap.Window, snap.N,
			nullable(snap.Accuracy), nullable(snap.Precision), nullable(snap.Recall),
		)
		if err != nil {
			return fmt.Errorf("inserting snapshot %d of %s: %w", snap.Window, r.Name, err)
		}
	}
	return tx.Commit()
}

// StoredRun is a run row read back from the database.
type StoredRun struct {
	ID        string
	Name      string
	Kind      string
	Params    map[string]string
	Started   time.Time
	Finished  time.Time
	Emails    int
	Snapshots []metric.Snapshot
}

// Runs returns every stored run named name, oldest first, with snapshots.
func (s *SQLiteSink) Runs(ctx context.Context, name string) ([]StoredRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, params, started_at, finished_at, emails
		FROM runs WHERE name = ? ORDER BY started_at`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredRun
	for rows.Next() {
		var (
			run    StoredRun
			params string
		)
		if err := rows.Scan(&run.ID, &run.Name, &run.Kind, &params, &run.Started, &run.Finished, &run.Emails); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("decoding params of %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		snaps, err := s.snapshots(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Snapshots = snaps
	}
	return out, nil
}

func (s *SQLiteSink) snapshots(ctx context.Context, runID string) ([]metric.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT window_index, n, accuracy, precision, recall
		FROM snapshots WHERE run_id = ? ORDER BY window_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metric.Snapshot
	for rows.Next() {
		var (
			snap                        metric.Snapshot
			accuracy, precision, recall sql.NullFloat64
		)
		if err := rows.Scan(&snap.Window, &snap.N, &accuracy, &precision, &recall); err != nil {
			return nil, err
		}
		snap.Accuracy = fromNullable(accuracy)
		snap.Precision = fromNullable(precision)
		snap.Recall = fromNullable(recall)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteSink) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

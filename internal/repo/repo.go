package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"labline/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Repo struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// InsertRunTx records a finished pipeline run.
func (r *Repo) InsertRunTx(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs(id, kind, started_at, finished_at, drafted, skipped, failed, dry_run)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, run.Kind,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Drafted, run.Skipped, run.Failed, boolInt(run.DryRun))
	return err
}

// InsertRunFailureTx records one per-period failure of a run.
func (r *Repo) InsertRunFailureTx(ctx context.Context, tx *sql.Tx, f domain.RunFailure) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO run_failures(run_id, period, kind, message) VALUES (?,?,?,?)`,
		f.RunID, f.Period, f.Kind, f.Message)
	return err
}

// GetRun looks up one run by id.
func (r *Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, kind, started_at, finished_at, drafted, skipped, failed, dry_run
		FROM runs WHERE id=?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return domain.Run{}, ErrNotFound
	}
	return run, err
}

// ListRuns returns runs newest first.
func (r *Repo) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, kind, started_at, finished_at, drafted, skipped, failed, dry_run
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRunFailures returns the failures recorded for a run.
func (r *Repo) ListRunFailures(ctx context.Context, runID string) ([]domain.RunFailure, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT run_id, period, kind, message FROM run_failures WHERE run_id=?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var failures []domain.RunFailure
	for rows.Next() {
		var f domain.RunFailure
		if err := rows.Scan(&f.RunID, &f.Period, &f.Kind, &f.Message); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// LatestEvents returns the newest events up to limit.
func (r *Repo) LatestEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, ts, type, entity_kind, entity_id, payload_json
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var evts []domain.Event
	for rows.Next() {
		var e domain.Event
		var ts string
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Type, &e.EntityKind, &entityID, &e.Payload); err != nil {
			return nil, err
		}
		e.TS, _ = time.Parse(time.RFC3339, ts)
		e.EntityID = entityID.String
		evts = append(evts, e)
	}
	return evts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.Run, error) {
	var run domain.Run
	var started, finished string
	var dryRun int
	err := row.Scan(&run.ID, &run.Kind, &started, &finished, &run.Drafted, &run.Skipped, &run.Failed, &dryRun)
	if err != nil {
		return domain.Run{}, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	run.DryRun = dryRun != 0
	return run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

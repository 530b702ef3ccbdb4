package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrRunExists   = errors.New("run already recorded")
	ErrRunNotFound = errors.New("run not found")
)

type RunSummary struct {
	ID        string
	Suite     string
	Status    string
	Passed    int
	Failed    int
	Skipped   int
	Batches   int
	StartedAt time.Time
	Duration  time.Duration
	Error     string
}

type RecordRow struct {
	CaseID       string
	Name         string
	Module       string
	Status       string
	AsDependency bool
	StatusCode   int
	Duration     time.Duration
	Error        string
}

// SaveRun stores a finished run and its records in one transaction.
func (s *Store) SaveRun(ctx context.Context, suite string, result *runner.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}
	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO runs
		(id, suite, status, passed, failed, skipped, batches, started_at, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		result.ID, suite, string(result.Status), result.Passed, result.Failed, result.Skipped,
		len(result.Batches), result.StartedAt.UnixMilli(), result.Duration.Milliseconds(), errText)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", result.ID, ErrRunExists)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	insert := s.rebind(`INSERT INTO records
		(run_id, position, case_id, name, module, status, as_dependency, status_code, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, rec := range result.Ordered() {
		code := 0
		if rec.Response != nil {
			code = rec.Response.StatusCode
		}
		recErr := ""
		if rec.Error != nil {
			recErr = rec.Error.Error()
		}
		_, err := tx.ExecContext(ctx, insert,
			result.ID, i, rec.CaseID, rec.Name, rec.Module, recordStatus(rec),
			rec.AsDependency, code, rec.Duration.Milliseconds(), recErr)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", rec.CaseID, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT id, suite, status, passed, failed, skipped, batches, started_at, duration_ms, error
		FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (RunSummary, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, suite, status, passed, failed, skipped, batches, started_at, duration_ms, error
		FROM runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// RunRecords returns a run's records in execution order.
func (s *Store) RunRecords(ctx context.Context, runID string) ([]RecordRow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT case_id, name, module, status, as_dependency, status_code, duration_ms, error
		FROM records WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		var ms int64
		if err := rows.Scan(&r.CaseID, &r.Name, &r.Module, &r.Status, &r.AsDependency, &r.StatusCode, &ms, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many went.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?)`), keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunSummary, error) {
	var r RunSummary
	var startedMs, durMs int64
	err := sc.Scan(&r.ID, &r.Suite, &r.Status, &r.Passed, &r.Failed, &r.Skipped, &r.Batches, &startedMs, &durMs, &r.Error)
	if err != nil {
		return RunSummary{}, err
	}
	r.StartedAt = time.UnixMilli(startedMs).UTC()
	r.Duration = time.Duration(durMs) * time.Millisecond
	return r, nil
}

func recordStatus(rec *runner.Record) string {
	switch {
	case rec.Skipped:
		return "skipped"
	case rec.Success:
		return "passed"
	default:
		return "failed"
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// internal/bugstore/postgres.go
package bugstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
)

// DBPool is the subset of pgxpool.Pool the store uses. Declared as an
// interface so tests can substitute a pgxmock pool.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Close()
}

const (
	sqlGetBug = `
        SELECT id, title, description, steps, target_url, expected, actual, status, priority
        FROM bugs
        WHERE id = $1;
    `
	sqlUpdateStatus = `
        UPDATE bugs SET status = $2, updated_at = $3
        WHERE id = $1;
    `
	sqlUpdateStatusNote = `
        UPDATE bugs SET status = $2, note = $3, updated_at = $4
        WHERE id = $1;
    `
	sqlInsertRun = `
        INSERT INTO runs (run_id, bug_id, mode, overall, report, created_at)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	sqlTouchBug = `
        UPDATE bugs SET updated_at = $2
        WHERE id = $1;
    `
)

// Postgres keeps bug records in a `bugs` table and run reports in a `runs`
// table, the report itself as a JSONB column. Steps live in one text column,
// newline-separated.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgres wraps an existing pool. It pings once so a bad DSN surfaces at
// startup instead of on the first lookup.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping bug store: %w", err)
	}
	return &Postgres{pool: pool, log: logger.Named("bugstore")}, nil
}

// GetBug loads one record by ID. A missing row maps to ErrBugNotFound.
func (p *Postgres) GetBug(ctx context.Context, id string) (*schemas.Bug, error) {
	rows, err := p.pool.Query(ctx, sqlGetBug, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query bug %q: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read bug %q: %w", id, err)
		}
		return nil, fmt.Errorf("bug %q: %w", id, ErrBugNotFound)
	}

	var bug schemas.Bug
	var steps, status string
	if err := rows.Scan(&bug.ID, &bug.Title, &bug.Description, &steps,
		&bug.TargetURL, &bug.Expected, &bug.Actual, &status, &bug.Priority); err != nil {
		return nil, fmt.Errorf("failed to scan bug %q: %w", id, err)
	}
	bug.Steps = splitSteps(steps)
	bug.Status = statusOrRaw(status)
	return &bug, nil
}

// UpdateStatus moves a bug to status. A non-empty note replaces the record's
// note column; an empty one leaves it untouched.
func (p *Postgres) UpdateStatus(ctx context.Context, id string, status schemas.BugStatus, note string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if note == "" {
		tag, err = p.pool.Exec(ctx, sqlUpdateStatus, id, string(status), time.Now().UTC())
	} else {
		tag, err = p.pool.Exec(ctx, sqlUpdateStatusNote, id, string(status), note, time.Now().UTC())
	}
	if err != nil {
		return fmt.Errorf("failed to update status of bug %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bug %q: %w", id, ErrBugNotFound)
	}

	p.log.Info("Bug status updated",
		zap.String("bug_id", id),
		zap.String("status", string(status)))
	return nil
}

// AttachReport stores a run report against a bug and bumps the bug's
// updated_at, atomically.
func (p *Postgres) AttachReport(ctx context.Context, id string, report *schemas.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.RunID, err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			p.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, sqlInsertRun,
		report.RunID, id, string(report.Mode), string(report.Overall), payload, now); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	tag, err := tx.Exec(ctx, sqlTouchBug, id, now)
	if err != nil {
		return fmt.Errorf("failed to touch bug %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bug %q: %w", id, ErrBugNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}

	p.log.Info("Run report attached",
		zap.String("bug_id", id),
		zap.String("run_id", report.RunID),
		zap.String("overall", string(report.Overall)))
	return nil
}

// Close releases the pool. Pool shutdown does not take a context; the
// parameter exists to satisfy the store contract.
func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

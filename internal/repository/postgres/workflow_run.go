package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/domainwatch/internal/domain"
)

// RunRepo persists workflow runs. Every transition is a single statement
// guarded on the current status and claimant, so two workers racing for the
// same row cannot both win.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed workflow run repository.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

// ScheduleAutoVerify inserts an auto-verify run due at dueAt. It returns
// false when the domain already has an active auto-verify run.
func (r *RunRepo) ScheduleAutoVerify(ctx context.Context, trackedDomainID string, dueAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, kind, tracked_domain_id, attempt, status, next_due_at, created_at, updated_at)
		VALUES ($1, 'auto_verify', $2, 1, 'scheduled', $3, NOW(), NOW())
		ON CONFLICT DO NOTHING
	`, uuid.New().String(), trackedDomainID, dueAt)
	if err != nil {
		return false, fmt.Errorf("schedule auto verify: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClaimDueRuns moves up to limit due runs of kind to claimed and returns
// them. Rows locked by another worker are skipped.
func (r *RunRepo) ClaimDueRuns(ctx context.Context, kind domain.RunKind, workerID string, limit int) ([]domain.WorkflowRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE workflow_runs
		SET status = 'claimed', claimed_by = $2, claimed_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM workflow_runs
			WHERE kind = $1 AND status = 'scheduled' AND next_due_at <= NOW()
			ORDER BY next_due_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, tracked_domain_id, attempt, next_due_at, created_at
	`, string(kind), workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.WorkflowRun
	for rows.Next() {
		run := domain.WorkflowRun{Status: domain.RunClaimed, ClaimedBy: workerID}
		var k string
		if err := rows.Scan(&run.ID, &k, &run.TrackedDomainID, &run.Attempt, &run.NextDueAt, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claimed run: %w", err)
		}
		run.Kind = domain.RunKind(k)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RescheduleRun puts a claimed run back to sleep until dueAt with the next
// attempt number.
func (r *RunRepo) RescheduleRun(ctx context.Context, id, workerID string, attempt int, dueAt time.Time) error {
	return r.transition(ctx, "reschedule run", `
		UPDATE workflow_runs
		SET status = 'scheduled', attempt = $3, next_due_at = $4,
		    claimed_by = NULL, claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = 'claimed'
	`, id, workerID, attempt, dueAt)
}

// TouchRun renews a claim held by workerID.
func (r *RunRepo) TouchRun(ctx context.Context, id, workerID string) error {
	return r.transition(ctx, "touch run", `
		UPDATE workflow_runs
		SET claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = 'claimed'
	`, id, workerID)
}

// CompleteRun finishes a claimed run with its terminal result.
func (r *RunRepo) CompleteRun(ctx context.Context, id, workerID string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	return r.transition(ctx, "complete run", `
		UPDATE workflow_runs
		SET status = 'completed', result = $3, updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = 'claimed'
	`, id, workerID, raw)
}

// FailRun marks a claimed run failed. A failed run with an idempotency key
// may be started again by BeginUnit.
func (r *RunRepo) FailRun(ctx context.Context, id, workerID string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	return r.transition(ctx, "fail run", `
		UPDATE workflow_runs
		SET status = 'failed', result = $3, updated_at = NOW()
		WHERE id = $1 AND claimed_by = $2 AND status = 'claimed'
	`, id, workerID, raw)
}

// BeginUnit claims the one-shot run identified by key. It returns
// domain.ErrRunConflict when the key is already claimed or completed by
// another worker; only a previously failed run is taken over.
func (r *RunRepo) BeginUnit(ctx context.Context, kind domain.RunKind, trackedDomainID, key, workerID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO workflow_runs (id, kind, tracked_domain_id, idempotency_key, attempt, status,
		                           next_due_at, claimed_by, claimed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, 'claimed', NOW(), $5, NOW(), NOW(), NOW())
		ON CONFLICT (idempotency_key) DO UPDATE
		SET status = 'claimed', attempt = workflow_runs.attempt + 1,
		    claimed_by = EXCLUDED.claimed_by, claimed_at = NOW(), updated_at = NOW()
		WHERE workflow_runs.status = 'failed'
		RETURNING id
	`, uuid.New().String(), string(kind), trackedDomainID, key, workerID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", domain.ErrRunConflict
	}
	if err != nil {
		return "", fmt.Errorf("begin %s unit: %w", kind, err)
	}
	return id, nil
}

// ReleaseStaleClaims recovers runs whose worker stopped heartbeating.
// Sleeping workflows go back to scheduled; one-shot units are marked failed
// so the next sweep may take them over.
func (r *RunRepo) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_runs
		SET status = CASE WHEN kind = 'auto_verify' THEN 'scheduled' ELSE 'failed' END,
		    claimed_by = NULL, claimed_at = NULL, updated_at = NOW()
		WHERE status = 'claimed' AND claimed_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteFinishedRuns removes up to limit completed or failed runs last
// touched before cutoff.
func (r *RunRepo) DeleteFinishedRuns(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	finished := []string{string(domain.RunCompleted), string(domain.RunFailed)}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM workflow_runs
		WHERE id IN (
			SELECT id FROM workflow_runs
			WHERE status = ANY($1) AND updated_at < $2
			LIMIT $3
		)
	`, pq.Array(finished), cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete finished runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountOverdueRuns counts scheduled runs that should have been picked up
// before olderThan. A growing number means no worker is polling.
func (r *RunRepo) CountOverdueRuns(ctx context.Context, olderThan time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workflow_runs
		WHERE status = 'scheduled' AND next_due_at < $1
	`, olderThan).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overdue runs: %w", err)
	}
	return n, nil
}

func (r *RunRepo) transition(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrRunConflict
	}
	return nil
}

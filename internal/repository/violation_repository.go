package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provalab/examguard-backend/internal/model"
)

// ViolationRepository handles violation data access. Violation rows are the
// source of truth; attempts.violation_count is a write-through cache kept
// consistent by updating both inside one transaction.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// RecordBatch appends the validated violations and bumps the attempt's
// counter in the same transaction, returning the new durable count. If any
// statement fails the whole batch rolls back: rows and counter never
// diverge.
func (r *ViolationRepository) RecordBatch(ctx context.Context, attemptID uuid.UUID, violations []model.Violation) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	for i := range violations {
		v := &violations[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO violations (id, attempt_id, violation_type, description, metadata, snapshot_path)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at`,
			v.ID, v.AttemptID, v.Type, v.Description, v.Metadata, v.SnapshotPath,
		).Scan(&v.CreatedAt); err != nil {
			return 0, err
		}
	}

	// The end_time IS NULL predicate closes the race with a finalize
	// committing after the caller's guard ran: a completed attempt takes
	// no further violation rows, counter bumps or enforcement.
	var newCount int
	if err := tx.QueryRow(ctx,
		`UPDATE attempts
		 SET violation_count = violation_count + $1, is_flagged = TRUE, updated_at = NOW()
		 WHERE id = $2 AND end_time IS NULL
		 RETURNING violation_count`,
		len(violations), attemptID,
	).Scan(&newCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrAttemptCompleted
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newCount, nil
}

// ListByAttempt retrieves all violations for an attempt, oldest first.
func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, violation_type, description, metadata, snapshot_path, created_at
		 FROM violations WHERE attempt_id = $1
		 ORDER BY created_at`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.Type, &v.Description, &v.Metadata, &v.SnapshotPath, &v.CreatedAt); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// CountByAttempt returns the durable row count for an attempt. Used to
// verify the write-through counter when a proctor audits an attempt.
func (r *ViolationRepository) CountByAttempt(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM violations WHERE attempt_id = $1`, attemptID,
	).Scan(&count)
	return count, err
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provalab/examguard-backend/internal/model"
)

// SessionRepository handles session window data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByID retrieves a session window by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SessionWindow, error) {
	w := &model.SessionWindow{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, label, starts_at, ends_at, created_at
		 FROM exam_sessions WHERE id = $1`, id,
	).Scan(&w.ID, &w.ExamID, &w.Label, &w.StartsAt, &w.EndsAt, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ListByExam retrieves all session windows scheduled for an exam.
func (r *SessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SessionWindow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, label, starts_at, ends_at, created_at
		 FROM exam_sessions WHERE exam_id = $1
		 ORDER BY starts_at`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []model.SessionWindow
	for rows.Next() {
		var w model.SessionWindow
		if err := rows.Scan(&w.ID, &w.ExamID, &w.Label, &w.StartsAt, &w.EndsAt, &w.CreatedAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// ListOpen retrieves session windows that are open at the given instant.
// Used for cache prewarming on application startup.
func (r *SessionRepository) ListOpen(ctx context.Context, now time.Time) ([]model.SessionWindow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, label, starts_at, ends_at, created_at
		 FROM exam_sessions
		 WHERE starts_at <= $1 AND ends_at > $1
		 ORDER BY starts_at`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []model.SessionWindow
	for rows.Next() {
		var w model.SessionWindow
		if err := rows.Scan(&w.ID, &w.ExamID, &w.Label, &w.StartsAt, &w.EndsAt, &w.CreatedAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

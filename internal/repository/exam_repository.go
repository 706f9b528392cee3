package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provalab/examguard-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam with its scoring and proctoring policy.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, passing_grade,
		        negative_marking, negative_marking_percent, partial_credit,
		        max_violations, warning_threshold,
		        auto_submit_on_max_violations, block_on_max_violations,
		        created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.PassingGrade,
		&e.NegativeMarking, &e.NegativeMarkingPercent, &e.PartialCredit,
		&e.MaxViolations, &e.WarningThreshold,
		&e.AutoSubmitOnMaxViolations, &e.BlockOnMaxViolations,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List retrieves all exams, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, duration_minutes, passing_grade,
		        negative_marking, negative_marking_percent, partial_credit,
		        max_violations, warning_threshold,
		        auto_submit_on_max_violations, block_on_max_violations,
		        created_at, updated_at
		 FROM exams ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.PassingGrade,
			&e.NegativeMarking, &e.NegativeMarkingPercent, &e.PartialCredit,
			&e.MaxViolations, &e.WarningThreshold,
			&e.AutoSubmitOnMaxViolations, &e.BlockOnMaxViolations,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

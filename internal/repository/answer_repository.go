package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provalab/examguard-backend/internal/model"
)

// ScoringRow joins an answer with the question fields the scoring engine
// needs. Used by finalization and recalculation.
type ScoringRow struct {
	Answer       model.Answer
	QuestionType model.QuestionType
	AnswerKey    json.RawMessage
}

// AnswerRepository handles answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// GetByAttemptAndQuestion retrieves one answer row.
func (r *AnswerRepository) GetByAttemptAndQuestion(ctx context.Context, attemptID, questionID uuid.UUID) (*model.Answer, error) {
	a := &model.Answer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, attempt_id, question_id, points, order_num,
		        submission, is_correct, points_awarded, needs_manual_review,
		        graded_by, graded_at, updated_at
		 FROM answers WHERE attempt_id = $1 AND question_id = $2`,
		attemptID, questionID,
	).Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.Points, &a.OrderNum,
		&a.Submission, &a.IsCorrect, &a.PointsAwarded, &a.NeedsManualReview,
		&a.GradedBy, &a.GradedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SaveSubmission stores a student's submission together with its immediate
// score. Overwrites any previous submission for the question.
func (r *AnswerRepository) SaveSubmission(ctx context.Context, a *model.Answer) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE answers
		 SET submission = $1, is_correct = $2, points_awarded = $3,
		     needs_manual_review = $4, updated_at = NOW()
		 WHERE attempt_id = $5 AND question_id = $6`,
		a.Submission, a.IsCorrect, a.PointsAwarded, a.NeedsManualReview,
		a.AttemptID, a.QuestionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByAttempt retrieves all answer rows for an attempt in paper order.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, points, order_num,
		        submission, is_correct, points_awarded, needs_manual_review,
		        graded_by, graded_at, updated_at
		 FROM answers WHERE attempt_id = $1
		 ORDER BY order_num`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.Points, &a.OrderNum,
			&a.Submission, &a.IsCorrect, &a.PointsAwarded, &a.NeedsManualReview,
			&a.GradedBy, &a.GradedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListForScoring retrieves all answer rows joined with the question type
// and answer key, in paper order.
func (r *AnswerRepository) ListForScoring(ctx context.Context, attemptID uuid.UUID) ([]ScoringRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.attempt_id, a.question_id, a.points, a.order_num,
		        a.submission, a.is_correct, a.points_awarded, a.needs_manual_review,
		        a.graded_by, a.graded_at, a.updated_at,
		        q.question_type, q.answer_key
		 FROM answers a
		 JOIN questions q ON a.question_id = q.id
		 WHERE a.attempt_id = $1
		 ORDER BY a.order_num`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ScoringRow
	for rows.Next() {
		var s ScoringRow
		a := &s.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.Points, &a.OrderNum,
			&a.Submission, &a.IsCorrect, &a.PointsAwarded, &a.NeedsManualReview,
			&a.GradedBy, &a.GradedAt, &a.UpdatedAt,
			&s.QuestionType, &s.AnswerKey); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// UpdateManualGrade records a grader's points on an essay answer. Only
// answers still awaiting review are eligible.
func (r *AnswerRepository) UpdateManualGrade(ctx context.Context, answerID uuid.UUID, points float64, isCorrect bool, graderID int, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE answers
		 SET points_awarded = $1, is_correct = $2, needs_manual_review = FALSE,
		     graded_by = $3, graded_at = $4, updated_at = NOW()
		 WHERE id = $5 AND needs_manual_review = TRUE`,
		points, isCorrect, graderID, now, answerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves one answer row by its UUID.
func (r *AnswerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Answer, error) {
	a := &model.Answer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, attempt_id, question_id, points, order_num,
		        submission, is_correct, points_awarded, needs_manual_review,
		        graded_by, graded_at, updated_at
		 FROM answers WHERE id = $1`, id,
	).Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.Points, &a.OrderNum,
		&a.Submission, &a.IsCorrect, &a.PointsAwarded, &a.NeedsManualReview,
		&a.GradedBy, &a.GradedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// bulkUpdateAnswerScores writes scored answer rows with a single
// UNNEST-driven update. Runs inside the finalization transaction.
func bulkUpdateAnswerScores(ctx context.Context, tx pgx.Tx, updates []AnswerScoreUpdate) error {
	n := len(updates)
	ids := make([]uuid.UUID, 0, n)
	corrects := make([]bool, 0, n)
	awards := make([]float64, 0, n)
	reviews := make([]bool, 0, n)

	for _, u := range updates {
		ids = append(ids, u.AnswerID)
		corrects = append(corrects, u.IsCorrect)
		awards = append(awards, u.PointsAwarded)
		reviews = append(reviews, u.NeedsManualReview)
	}

	query := `
		UPDATE answers AS a
		SET is_correct = t.is_correct,
		    points_awarded = t.points_awarded,
		    needs_manual_review = t.needs_manual_review,
		    updated_at = NOW()
		FROM (
			SELECT u.id, u.is_correct, u.points_awarded, u.needs_manual_review
			FROM UNNEST(
				$1::uuid[],
				$2::bool[],
				$3::float8[],
				$4::bool[]
			) AS u (id, is_correct, points_awarded, needs_manual_review)
		) AS t
		WHERE a.id = t.id
	`

	_, err := tx.Exec(ctx, query, ids, corrects, awards, reviews)
	return err
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/scoring"
)

// AnswerScoreUpdate carries one scored answer row for the bulk update that
// runs inside attempt finalization.
type AnswerScoreUpdate struct {
	AnswerID          uuid.UUID
	IsCorrect         bool
	PointsAwarded     float64
	NeedsManualReview bool
}

// MonitorRow is one student's live attempt state as shown to proctors.
type MonitorRow struct {
	AttemptID      uuid.UUID           `json:"attempt_id"`
	StudentID      int                 `json:"student_id"`
	StudentName    string              `json:"student_name"`
	Status         model.AttemptStatus `json:"status"`
	StartTime      *time.Time          `json:"start_time"`
	IsPaused       bool                `json:"is_paused"`
	ViolationCount int                 `json:"violation_count"`
	IsFlagged      bool                `json:"is_flagged"`
	AnsweredCount  int                 `json:"answered_count"`
}

// AttemptRepository handles attempt data access. All timer and lifecycle
// writes are guarded so that concurrent requests cannot double-apply them.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, student_id, exam_id, session_id, status,
	start_time, end_time,
	duration_allowed_ms, duration_remaining_ms, time_extension_ms,
	is_paused, paused_at, pause_reason, pause_total_ms,
	attempt_count, attempt_number,
	total_correct, points_possible, points_earned, grade, grade_status,
	violation_count, is_flagged,
	created_at, updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.StudentID, &a.ExamID, &a.SessionID, &a.Status,
		&a.StartTime, &a.EndTime,
		&a.DurationAllowedMs, &a.DurationRemainingMs, &a.TimeExtensionMs,
		&a.IsPaused, &a.PausedAt, &a.PauseReason, &a.PauseTotalMs,
		&a.AttemptCount, &a.AttemptNumber,
		&a.TotalCorrect, &a.PointsPossible, &a.PointsEarned, &a.Grade, &a.GradeStatus,
		&a.ViolationCount, &a.IsFlagged,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetForStudent retrieves the attempt for a session-student combination.
func (r *AttemptRepository) GetForStudent(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE session_id = $1 AND student_id = $2`, sessionID, studentID))
}

// ListRunningBySession retrieves every started, unfinished attempt in a
// session window. Used to rewarm caches after a restart.
func (r *AttemptRepository) ListRunningBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE session_id = $1 AND start_time IS NOT NULL AND end_time IS NULL`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// Create inserts a new NOT_STARTED attempt (student joins the session).
// Returns pgx.ErrNoRows on conflict; the caller falls back to GetForStudent.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (student_id, exam_id, session_id, status, attempt_number, grade_status)
		 VALUES ($1, $2, $3, $4, 1, $5)
		 ON CONFLICT (session_id, student_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		a.StudentID, a.ExamID, a.SessionID, model.AttemptStatusNotStarted, model.GradeStatusPending,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// StartWithPaper persists the NOT_STARTED → IN_PROGRESS transition and
// freezes the attempt's answer rows in one transaction: the clock never
// runs against an attempt whose paper failed to freeze. The start_time IS
// NULL guard makes concurrent first touches idempotent: exactly one
// request wins, freezes the paper and commits; the rest see the started row.
func (r *AttemptRepository) StartWithPaper(ctx context.Context, a *model.Attempt, answers []model.Answer) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, start_time = $2,
		     duration_allowed_ms = $3, duration_remaining_ms = $3,
		     attempt_count = attempt_count + 1,
		     updated_at = NOW()
		 WHERE id = $4 AND start_time IS NULL`,
		a.Status, a.StartTime, a.DurationAllowedMs, a.ID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	rows := make([][]interface{}, 0, len(answers))
	for i := range answers {
		ans := &answers[i]
		rows = append(rows, []interface{}{
			ans.ID, ans.AttemptID, ans.QuestionID, ans.Points, ans.OrderNum,
		})
	}
	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"answers"},
		[]string{"id", "attempt_id", "question_id", "points", "order_num"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SavePauseState persists the pause fields after a Pause or Resume
// transition computed on the model.
func (r *AttemptRepository) SavePauseState(ctx context.Context, a *model.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, is_paused = $2, paused_at = $3, pause_reason = $4,
		     pause_total_ms = $5, updated_at = NOW()
		 WHERE id = $6 AND end_time IS NULL`,
		a.Status, a.IsPaused, a.PausedAt, a.PauseReason, a.PauseTotalMs, a.ID)
	return err
}

// PauseBySession pauses every running attempt in a session window in a
// single statement. Returns the number of attempts paused.
func (r *AttemptRepository) PauseBySession(ctx context.Context, sessionID uuid.UUID, reason string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, is_paused = TRUE, paused_at = $2, pause_reason = $3, updated_at = NOW()
		 WHERE session_id = $4 AND status = $5`,
		model.AttemptStatusPaused, now, reason, sessionID, model.AttemptStatusInProgress)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResumeBySession resumes every paused attempt in a session window,
// crediting each attempt's paused interval in SQL so no interval is lost
// between read and write.
func (r *AttemptRepository) ResumeBySession(ctx context.Context, sessionID uuid.UUID, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1,
		     pause_total_ms = pause_total_ms + (EXTRACT(EPOCH FROM ($2::timestamptz - paused_at)) * 1000)::bigint,
		     is_paused = FALSE, paused_at = NULL, pause_reason = NULL, updated_at = NOW()
		 WHERE session_id = $3 AND status = $4 AND paused_at IS NOT NULL`,
		model.AttemptStatusInProgress, now, sessionID, model.AttemptStatusPaused)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GrantExtension adds extra milliseconds to a running attempt. The status
// predicate re-checks eligibility at write time; returns false when the
// attempt is not IN_PROGRESS anymore.
func (r *AttemptRepository) GrantExtension(ctx context.Context, attemptID uuid.UUID, extraMs int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET time_extension_ms = time_extension_ms + $1, updated_at = NOW()
		 WHERE id = $2 AND end_time IS NULL AND status = $3`,
		extraMs, attemptID, model.AttemptStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FinalizeScored completes an attempt and writes all scored answers in one
// transaction. The end_time IS NULL predicate is the single-flight gate:
// whichever caller commits first (student submit, timer expiry, proctor
// force-submit, violation auto-submit) wins and everyone else observes a
// completed attempt. Returns false when the attempt was already finalized.
func (r *AttemptRepository) FinalizeScored(ctx context.Context, attemptID uuid.UUID, endTime time.Time, remainingMs int64, totals scoring.Totals, gradeStatus model.GradeStatus, updates []AnswerScoreUpdate) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, end_time = $2, duration_remaining_ms = $3,
		     is_paused = FALSE, paused_at = NULL, pause_reason = NULL,
		     total_correct = $4, points_possible = $5, points_earned = $6,
		     grade = $7, grade_status = $8, updated_at = NOW()
		 WHERE id = $9 AND end_time IS NULL`,
		model.AttemptStatusCompleted, endTime, remainingMs,
		totals.TotalCorrect, totals.PointsPossible, totals.PointsEarned,
		totals.Grade, gradeStatus, attemptID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Lost the race; another finalizer already committed.
		return false, nil
	}

	if len(updates) > 0 {
		if err := bulkUpdateAnswerScores(ctx, tx, updates); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateTotals rewrites the aggregate scoring columns of a completed
// attempt after manual grading. Scores on individual answers are not
// touched here.
func (r *AttemptRepository) UpdateTotals(ctx context.Context, attemptID uuid.UUID, totals scoring.Totals, gradeStatus model.GradeStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET total_correct = $1, points_possible = $2, points_earned = $3,
		     grade = $4, grade_status = $5, updated_at = NOW()
		 WHERE id = $6`,
		totals.TotalCorrect, totals.PointsPossible, totals.PointsEarned,
		totals.Grade, gradeStatus, attemptID)
	return err
}

// ResetForRetry wipes an attempt back to NOT_STARTED for a remedial retry.
// Answer and violation rows belong to the previous run and are removed in
// the same transaction that resets the counters they back.
func (r *AttemptRepository) ResetForRetry(ctx context.Context, a *model.Attempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM violations WHERE attempt_id = $1`, a.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE attempt_id = $1`, a.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, start_time = NULL, end_time = NULL,
		     duration_allowed_ms = 0, duration_remaining_ms = 0, time_extension_ms = 0,
		     is_paused = FALSE, paused_at = NULL, pause_reason = NULL, pause_total_ms = 0,
		     attempt_number = $2,
		     total_correct = 0, points_possible = 0, points_earned = 0,
		     grade = 0, grade_status = $3,
		     violation_count = 0, is_flagged = FALSE,
		     updated_at = NOW()
		 WHERE id = $4`,
		model.AttemptStatusNotStarted, a.AttemptNumber, model.GradeStatusPending, a.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListBySession retrieves the live monitor rows for every attempt in a
// session window, ordered by student name.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]MonitorRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, s.id, s.name, a.status, a.start_time, a.is_paused,
		        a.violation_count, a.is_flagged,
		        COUNT(ans.id) FILTER (WHERE ans.submission IS NOT NULL) AS answered_count
		 FROM attempts a
		 JOIN students s ON a.student_id = s.id
		 LEFT JOIN answers ans ON ans.attempt_id = a.id
		 WHERE a.session_id = $1
		 GROUP BY a.id, s.id, s.name
		 ORDER BY s.name`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MonitorRow
	for rows.Next() {
		var m MonitorRow
		if err := rows.Scan(&m.AttemptID, &m.StudentID, &m.StudentName, &m.Status, &m.StartTime,
			&m.IsPaused, &m.ViolationCount, &m.IsFlagged, &m.AnsweredCount); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

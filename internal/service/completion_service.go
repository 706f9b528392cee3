package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/config"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/repository"
	"github.com/provalab/examguard-backend/internal/scoring"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// FinalizeReason records which path completed an attempt. Logged and shown
// on proctor dashboards; never changes the scoring outcome.
type FinalizeReason string

const (
	FinalizeReasonStudent    FinalizeReason = "student_submit"
	FinalizeReasonTimer      FinalizeReason = "time_expired"
	FinalizeReasonViolations FinalizeReason = "violation_limit"
	FinalizeReasonProctor    FinalizeReason = "proctor_force"
)

// Completion and grading errors.
var (
	ErrAttemptNotCompleted = errors.New("attempt is not completed yet")
	ErrNotManuallyGradable = errors.New("answer is not awaiting manual review")
	ErrPointsExceedMax     = errors.New("points exceed the question maximum")
)

// CompletionService owns attempt finalization and post-completion grading.
// Finalization may be triggered by four concurrent paths (student submit,
// timer expiry, violation auto-submit, proctor force-submit); the CAS on
// end_time inside the repository guarantees exactly one of them scores and
// completes the attempt.
type CompletionService struct {
	attemptRepo *repository.AttemptRepository
	answerRepo  *repository.AnswerRepository
	examRepo    *repository.ExamRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewCompletionService creates a new CompletionService.
func NewCompletionService(
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	examRepo *repository.ExamRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *CompletionService {
	return &CompletionService{
		attemptRepo: attemptRepo,
		answerRepo:  answerRepo,
		examRepo:    examRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "completion_service").Logger(),
	}
}

// Finalize scores every stored submission and completes the attempt.
// Idempotent: losing the finalization race is not an error, the caller gets
// the state the winner committed.
func (s *CompletionService) Finalize(ctx context.Context, attempt *model.Attempt, exam *model.Exam, endTime time.Time, remainingMs int64, reason FinalizeReason) (*model.Attempt, error) {
	if attempt.Completed() {
		return attempt, nil
	}
	if remainingMs < 0 {
		remainingMs = 0
	}

	rows, err := s.answerRepo.ListForScoring(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	pol := exam.ScoringPolicy()
	updates := make([]repository.AnswerScoreUpdate, 0, len(rows))
	tallyRows := make([]scoring.AnswerScore, 0, len(rows))
	pendingReview := false

	for _, row := range rows {
		res := scoring.Score(scoring.Input{
			QuestionType: string(row.QuestionType),
			AnswerKey:    row.AnswerKey,
			Submission:   row.Answer.Submission,
			Points:       row.Answer.Points,
		}, pol)

		// A blank essay needs no grader; only answered ones wait for review.
		needsReview := res.NeedsManualReview && res.Answered
		if needsReview {
			pendingReview = true
		}

		updates = append(updates, repository.AnswerScoreUpdate{
			AnswerID:          row.Answer.ID,
			IsCorrect:         res.IsCorrect,
			PointsAwarded:     res.PointsAwarded,
			NeedsManualReview: needsReview,
		})
		tallyRows = append(tallyRows, scoring.AnswerScore{
			Points:        row.Answer.Points,
			PointsAwarded: res.PointsAwarded,
			IsCorrect:     res.IsCorrect,
		})
	}

	totals := scoring.Tally(tallyRows)
	gradeStatus := s.gradeStatus(totals.Grade, exam.PassingGrade, pendingReview)

	won, err := s.attemptRepo.FinalizeScored(ctx, attempt.ID, endTime, remainingMs, totals, gradeStatus, updates)
	if err != nil {
		return nil, err
	}

	final, err := s.attemptRepo.GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	if won {
		s.invalidateCaches(ctx, attempt.ID)
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Int("student_id", attempt.StudentID).
			Str("reason", string(reason)).
			Float64("grade", final.Grade).
			Str("grade_status", string(final.GradeStatus)).
			Msg("attempt finalized")
	}
	return final, nil
}

// ManualGrade records a grader's points for an essay answer and then
// recalculates the attempt's totals from the updated rows.
func (s *CompletionService) ManualGrade(ctx context.Context, answerID uuid.UUID, graderID int, points float64) (*model.Attempt, error) {
	ans, err := s.answerRepo.GetByID(ctx, answerID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.GetByID(ctx, ans.AttemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Completed() {
		return nil, ErrAttemptNotCompleted
	}

	maxPoints := ans.Points
	if maxPoints == 0 {
		maxPoints = 1
	}
	if points > maxPoints {
		return nil, ErrPointsExceedMax
	}
	isCorrect := points >= maxPoints

	ok, err := s.answerRepo.UpdateManualGrade(ctx, answerID, points, isCorrect, graderID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotManuallyGradable
	}

	return s.Recalculate(ctx, ans.AttemptID)
}

// Recalculate re-derives the aggregate totals of a completed attempt from
// its stored answer rows. Individual answer scores are not re-run; manual
// grades must survive recalculation.
func (s *CompletionService) Recalculate(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Completed() {
		return nil, ErrAttemptNotCompleted
	}

	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	tallyRows := make([]scoring.AnswerScore, 0, len(answers))
	pendingReview := false
	for _, a := range answers {
		if a.NeedsManualReview {
			pendingReview = true
		}
		tallyRows = append(tallyRows, scoring.AnswerScore{
			Points:        a.Points,
			PointsAwarded: a.PointsAwarded,
			IsCorrect:     a.IsCorrect,
		})
	}

	totals := scoring.Tally(tallyRows)
	gradeStatus := s.gradeStatus(totals.Grade, exam.PassingGrade, pendingReview)

	if err := s.attemptRepo.UpdateTotals(ctx, attemptID, totals, gradeStatus); err != nil {
		return nil, err
	}
	return s.attemptRepo.GetByID(ctx, attemptID)
}

// gradeStatus derives the outcome once no answer awaits a grader. Passing
// requires a positive passing grade on the exam; with the threshold unset
// (zero) nothing passes, it does not mean everything does.
func (s *CompletionService) gradeStatus(grade, passingGrade float64, pendingReview bool) model.GradeStatus {
	if pendingReview {
		return model.GradeStatusPending
	}
	if passingGrade > 0 && grade >= passingGrade {
		return model.GradeStatusPassed
	}
	return model.GradeStatusFailed
}

// invalidateCaches drops the attempt's Redis entries after completion.
func (s *CompletionService) invalidateCaches(ctx context.Context, attemptID uuid.UUID) {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AttemptPaperKey(attemptID.String()))
	pipe.Del(ctx, config.CacheKey.AttemptRemainingKey(attemptID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("cache invalidation failed")
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/provalab/examguard-backend/internal/config"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/repository"
	"github.com/provalab/examguard-backend/internal/scoring"
	"github.com/provalab/examguard-backend/internal/timekeeper"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt lifecycle errors surfaced to handlers.
var (
	ErrNotAttemptOwner   = errors.New("attempt does not belong to this student")
	ErrTimeExpired       = errors.New("attempt time has expired")
	ErrNoQuestionsInExam = errors.New("exam has no questions")
)

// remainingCacheTTL bounds how stale the Redis copy of an attempt's
// remaining time may get. The DB computation is always authoritative.
const remainingCacheTTL = 30 * time.Second

// Resolved bundles everything a request needs to act on an attempt after
// the uniform guard has run.
type Resolved struct {
	Attempt   *model.Attempt
	Exam      *model.Exam
	Window    *model.SessionWindow
	Remaining timekeeper.Result
}

// HeartbeatResponse is the server-authoritative timer state returned on
// every heartbeat.
type HeartbeatResponse struct {
	Status      model.AttemptStatus `json:"status"`
	RemainingMs int64               `json:"remaining_ms"`
	Deadline    time.Time           `json:"deadline"`
	IsPaused    bool                `json:"is_paused"`
	Ended       bool                `json:"ended"`
}

// AttemptService orchestrates the attempt lifecycle: joining a session,
// the frozen paper, heartbeats, answer submission and proctor controls.
// Every entry point funnels through Resolve so the expiry check can never
// be bypassed.
type AttemptService struct {
	attemptRepo  *repository.AttemptRepository
	answerRepo   *repository.AnswerRepository
	examRepo     *repository.ExamRepository
	sessionRepo  *repository.SessionRepository
	questionRepo *repository.QuestionRepository
	completion   *CompletionService
	monitor      *MonitorService
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	examRepo *repository.ExamRepository,
	sessionRepo *repository.SessionRepository,
	questionRepo *repository.QuestionRepository,
	completion *CompletionService,
	monitor *MonitorService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo:  attemptRepo,
		answerRepo:   answerRepo,
		examRepo:     examRepo,
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		completion:   completion,
		monitor:      monitor,
		rdb:          rdb,
		log:          log.With().Str("component", "attempt_service").Logger(),
	}
}

// JoinSession creates (or returns) the student's attempt for a session
// window. Creation is idempotent: re-joining returns the existing attempt
// in whatever state it is in.
func (s *AttemptService) JoinSession(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.Attempt, error) {
	window, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	attempt := &model.Attempt{
		StudentID: studentID,
		ExamID:    window.ExamID,
		SessionID: sessionID,
		Status:    model.AttemptStatusNotStarted,
	}
	err = s.attemptRepo.Create(ctx, attempt)
	if err == nil {
		attempt.AttemptNumber = 1
		attempt.GradeStatus = model.GradeStatusPending
		return attempt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Conflict: the attempt already exists.
	return s.attemptRepo.GetForStudent(ctx, sessionID, studentID)
}

// Resolve loads the attempt with its exam and session window, verifies
// ownership and reconciles the timer. A detected expiry finalizes the
// attempt before this returns, so no caller ever operates on an attempt
// that should already be over.
//
// studentID 0 skips the ownership check (proctor paths).
func (s *AttemptService) Resolve(ctx context.Context, attemptID uuid.UUID, studentID int) (*Resolved, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if studentID != 0 && attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}

	window, err := s.sessionRepo.GetByID(ctx, attempt.SessionID)
	if err != nil {
		return nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	remaining, err := timekeeper.Remaining(attempt, window, time.Now())
	if err != nil {
		return nil, err
	}

	if remaining.Expired && !attempt.Completed() {
		attempt, err = s.completion.Finalize(ctx, attempt, exam, remaining.Deadline, 0, FinalizeReasonTimer)
		if err != nil {
			return nil, err
		}
		s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
			Type:      MonitorEventCompleted,
			AttemptID: attempt.ID,
			StudentID: attempt.StudentID,
			Detail:    string(FinalizeReasonTimer),
		})
	}

	return &Resolved{Attempt: attempt, Exam: exam, Window: window, Remaining: remaining}, nil
}

// Start performs the first-touch transition and freezes the question set.
// Safe to call repeatedly: later calls (including reconnects) return the
// already-frozen paper.
func (s *AttemptService) Start(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.AttemptPaper, *HeartbeatResponse, error) {
	res, err := s.Resolve(ctx, attemptID, studentID)
	if err != nil {
		return nil, nil, err
	}
	attempt := res.Attempt
	if attempt.Completed() {
		return nil, nil, model.ErrAttemptCompleted
	}

	now := time.Now()
	allowedMs := int64(res.Exam.DurationMinutes) * 60_000
	if attempt.BeginIfFirstTouch(now, allowedMs) {
		// The question set is verified up front and frozen in the same
		// transaction that starts the clock: either both commit or the
		// attempt stays untouched.
		questions, err := s.questionRepo.ListByExam(ctx, res.Exam.ID)
		if err != nil {
			return nil, nil, err
		}
		if len(questions) == 0 {
			return nil, nil, ErrNoQuestionsInExam
		}

		won, err := s.attemptRepo.StartWithPaper(ctx, attempt, frozenAnswers(attempt, questions))
		if err != nil {
			return nil, nil, err
		}
		if won {
			s.cachePaper(ctx, buildPaper(attempt, res.Exam, questions))
			s.log.Info().
				Str("attempt_id", attempt.ID.String()).
				Int("student_id", attempt.StudentID).
				Int("questions", len(questions)).
				Msg("attempt started, paper frozen")
		} else {
			// A concurrent first touch beat us; use its state.
			attempt, err = s.attemptRepo.GetByID(ctx, attemptID)
			if err != nil {
				return nil, nil, err
			}
			res.Attempt = attempt
		}
		res.Remaining, err = timekeeper.Remaining(attempt, res.Window, time.Now())
		if err != nil {
			return nil, nil, err
		}
	}

	paper, err := s.paper(ctx, attempt, res.Exam)
	if err != nil {
		return nil, nil, err
	}
	return paper, s.heartbeat(ctx, res), nil
}

// GetPaper returns the frozen question set for a running attempt.
func (s *AttemptService) GetPaper(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.AttemptPaper, error) {
	res, err := s.Resolve(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if res.Attempt.Completed() {
		return nil, model.ErrAttemptCompleted
	}
	if res.Attempt.StartTime == nil {
		return nil, model.ErrAttemptNotRunning
	}
	return s.paper(ctx, res.Attempt, res.Exam)
}

// Heartbeat reconciles and returns the authoritative remaining time.
func (s *AttemptService) Heartbeat(ctx context.Context, attemptID uuid.UUID, studentID int) (*HeartbeatResponse, error) {
	res, err := s.Resolve(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	return s.heartbeat(ctx, res), nil
}

// SubmitAnswer stores and immediately scores one submission. Correctness
// is never revealed to the student while the attempt runs.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID uuid.UUID, studentID int, questionID uuid.UUID, submission json.RawMessage) error {
	res, err := s.Resolve(ctx, attemptID, studentID)
	if err != nil {
		return err
	}
	attempt := res.Attempt
	if res.Remaining.Expired {
		return ErrTimeExpired
	}
	if err := attempt.GuardMutation(); err != nil {
		return err
	}
	if attempt.StartTime == nil {
		return model.ErrAttemptNotRunning
	}

	// The answer row must be part of the frozen set.
	ans, err := s.answerRepo.GetByAttemptAndQuestion(ctx, attemptID, questionID)
	if err != nil {
		return err
	}
	question, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return err
	}

	scored := scoring.Score(scoring.Input{
		QuestionType: string(question.Type),
		AnswerKey:    question.AnswerKey,
		Submission:   submission,
		Points:       ans.Points,
	}, res.Exam.ScoringPolicy())

	ans.Submission = submission
	ans.IsCorrect = scored.IsCorrect
	ans.PointsAwarded = scored.PointsAwarded
	ans.NeedsManualReview = scored.NeedsManualReview && scored.Answered

	_, err = s.answerRepo.SaveSubmission(ctx, ans)
	return err
}

// Submit is the student's explicit finish action.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, error) {
	res, err := s.Resolve(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if res.Attempt.Completed() {
		// Resolve finalized an expired attempt, or it was already done.
		return res.Attempt, nil
	}
	if res.Attempt.IsPaused {
		return nil, model.ErrAttemptPaused
	}

	final, err := s.completion.Finalize(ctx, res.Attempt, res.Exam, time.Now(), res.Remaining.RemainingMs, FinalizeReasonStudent)
	if err != nil {
		return nil, err
	}
	s.monitor.Publish(ctx, final.SessionID, MonitorEvent{
		Type:      MonitorEventCompleted,
		AttemptID: final.ID,
		StudentID: final.StudentID,
		Detail:    string(FinalizeReasonStudent),
	})
	return final, nil
}

// Results returns the completed attempt with its per-answer breakdown.
func (s *AttemptService) Results(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.Attempt, []model.Answer, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if studentID != 0 && attempt.StudentID != studentID {
		return nil, nil, ErrNotAttemptOwner
	}
	if !attempt.Completed() {
		return nil, nil, ErrAttemptNotCompleted
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, answers, nil
}

// ─── Proctor controls ───────────────────────────────────────────────

// Pause stops one attempt's clock.
func (s *AttemptService) Pause(ctx context.Context, attemptID uuid.UUID, reason string) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := attempt.Pause(time.Now(), reason); err != nil {
		return nil, err
	}
	if err := s.attemptRepo.SavePauseState(ctx, attempt); err != nil {
		return nil, err
	}
	s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
		Type:      MonitorEventPaused,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		Detail:    reason,
	})
	return attempt, nil
}

// Resume restarts one attempt's clock.
func (s *AttemptService) Resume(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := attempt.Resume(time.Now()); err != nil {
		return nil, err
	}
	if err := s.attemptRepo.SavePauseState(ctx, attempt); err != nil {
		return nil, err
	}
	s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
		Type:      MonitorEventResumed,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
	})
	return attempt, nil
}

// PauseSession pauses every running attempt in a session window at once
// (e.g. fire alarm, power outage). Returns the number of attempts paused.
func (s *AttemptService) PauseSession(ctx context.Context, sessionID uuid.UUID, reason string) (int64, error) {
	return s.attemptRepo.PauseBySession(ctx, sessionID, reason, time.Now())
}

// ResumeSession resumes every paused attempt in a session window.
func (s *AttemptService) ResumeSession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return s.attemptRepo.ResumeBySession(ctx, sessionID, time.Now())
}

// Extend grants extra minutes to a running attempt.
func (s *AttemptService) Extend(ctx context.Context, attemptID uuid.UUID, minutes int, reason string) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := attempt.ExtendTime(minutes); err != nil {
		return nil, err
	}

	ok, err := s.attemptRepo.GrantExtension(ctx, attemptID, int64(minutes)*60_000)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Raced a pause, finalize or retry reset between read and write.
		return nil, model.ErrAttemptNotRunning
	}

	s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
		Type:      MonitorEventTimeExtended,
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		Detail:    reason,
	})
	return s.attemptRepo.GetByID(ctx, attemptID)
}

// ForceSubmit finalizes an attempt on a proctor's order.
func (s *AttemptService) ForceSubmit(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	res, err := s.Resolve(ctx, attemptID, 0)
	if err != nil {
		return nil, err
	}
	if res.Attempt.Completed() {
		return res.Attempt, nil
	}

	final, err := s.completion.Finalize(ctx, res.Attempt, res.Exam, time.Now(), res.Remaining.RemainingMs, FinalizeReasonProctor)
	if err != nil {
		return nil, err
	}
	s.monitor.Publish(ctx, final.SessionID, MonitorEvent{
		Type:      MonitorEventCompleted,
		AttemptID: final.ID,
		StudentID: final.StudentID,
		Detail:    string(FinalizeReasonProctor),
	})
	return final, nil
}

// ResetForRetry wipes a completed attempt for a proctor-granted remedial
// retry. The next Start freezes a fresh paper.
func (s *AttemptService) ResetForRetry(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Completed() {
		return nil, ErrAttemptNotCompleted
	}

	attempt.ResetForRetry()
	if err := s.attemptRepo.ResetForRetry(ctx, attempt); err != nil {
		return nil, err
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AttemptPaperKey(attemptID.String()))
	pipe.Del(ctx, config.CacheKey.AttemptRemainingKey(attemptID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("cache invalidation failed")
	}

	return s.attemptRepo.GetByID(ctx, attemptID)
}

// PrewarmOpenSessions rewarms the paper cache for every running attempt
// in a currently open window. After a restart Redis may be cold; warming
// before accepting traffic avoids a herd of per-request rebuilds when
// clients reconnect.
func (s *AttemptService) PrewarmOpenSessions(ctx context.Context) error {
	windows, err := s.sessionRepo.ListOpen(ctx, time.Now())
	if err != nil {
		return err
	}

	warmed := 0
	for i := range windows {
		window := &windows[i]
		exam, err := s.examRepo.GetByID(ctx, window.ExamID)
		if err != nil {
			return err
		}
		attempts, err := s.attemptRepo.ListRunningBySession(ctx, window.ID)
		if err != nil {
			return err
		}
		for j := range attempts {
			if _, err := s.paper(ctx, &attempts[j], exam); err != nil {
				s.log.Warn().Err(err).
					Str("attempt_id", attempts[j].ID.String()).
					Msg("paper prewarm failed")
				continue
			}
			warmed++
		}
	}

	s.log.Info().Int("sessions", len(windows)).Int("papers", warmed).Msg("cache prewarm complete")
	return nil
}

// ─── Internals ──────────────────────────────────────────────────────

// frozenAnswers builds the attempt's answer rows from the exam's current
// questions, freezing point values and order for the run.
func frozenAnswers(attempt *model.Attempt, questions []model.Question) []model.Answer {
	answers := make([]model.Answer, 0, len(questions))
	for _, q := range questions {
		answers = append(answers, model.Answer{
			ID:         uuid.New(),
			AttemptID:  attempt.ID,
			QuestionID: q.ID,
			Points:     q.Points,
			OrderNum:   q.OrderNum,
		})
	}
	return answers
}

// paper serves the frozen paper from Redis, rebuilding and re-caching it
// from the answer rows on a miss.
func (s *AttemptService) paper(ctx context.Context, attempt *model.Attempt, exam *model.Exam) (*model.AttemptPaper, error) {
	key := config.CacheKey.AttemptPaperKey(attempt.ID.String())
	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var paper model.AttemptPaper
		if jsonErr := json.Unmarshal([]byte(cached), &paper); jsonErr == nil {
			return &paper, nil
		}
		// Corrupted cache entry: fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("paper cache read failed, rebuilding from DB")
	}

	answers, err := s.answerRepo.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	// Rebuild in frozen order from the answer rows, not the live exam.
	byID := make(map[uuid.UUID]model.Question)
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		byID[q.ID] = q
	}

	frozen := make([]model.Question, 0, len(answers))
	for _, a := range answers {
		if q, ok := byID[a.QuestionID]; ok {
			q.Points = a.Points
			q.OrderNum = a.OrderNum
			frozen = append(frozen, q)
		}
	}

	paper := buildPaper(attempt, exam, frozen)
	s.cachePaper(ctx, paper)
	return paper, nil
}

func (s *AttemptService) cachePaper(ctx context.Context, paper *model.AttemptPaper) {
	data, err := json.Marshal(paper)
	if err != nil {
		return
	}
	key := config.CacheKey.AttemptPaperKey(paper.AttemptID.String())
	if err := s.rdb.Set(ctx, key, data, 12*time.Hour).Err(); err != nil {
		s.log.Warn().Err(err).Msg("paper cache write failed")
	}
}

// heartbeat shapes the timer result and best-effort mirrors it to Redis
// for the monitor dashboards.
func (s *AttemptService) heartbeat(ctx context.Context, res *Resolved) *HeartbeatResponse {
	hb := &HeartbeatResponse{
		Status:      res.Attempt.Status,
		RemainingMs: res.Remaining.RemainingMs,
		Deadline:    res.Remaining.Deadline,
		IsPaused:    res.Attempt.IsPaused,
		Ended:       res.Attempt.Completed(),
	}

	key := config.CacheKey.AttemptRemainingKey(res.Attempt.ID.String())
	if err := s.rdb.Set(ctx, key, hb.RemainingMs, remainingCacheTTL).Err(); err != nil {
		s.log.Debug().Err(err).Msg("remaining cache write failed")
	}
	return hb
}

func buildPaper(attempt *model.Attempt, exam *model.Exam, questions []model.Question) *model.AttemptPaper {
	forStudent := make([]model.QuestionForStudent, 0, len(questions))
	for _, q := range questions {
		forStudent = append(forStudent, model.QuestionForStudent{
			ID:       q.ID,
			Type:     q.Type,
			Prompt:   q.Prompt,
			Options:  q.Options,
			Points:   q.Points,
			OrderNum: q.OrderNum,
		})
	}
	return &model.AttemptPaper{
		AttemptID: attempt.ID,
		ExamID:    exam.ID,
		Title:     exam.Title,
		Questions: forStudent,
	}
}

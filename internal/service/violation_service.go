package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/config"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrInvalidViolationType rejects a batch containing any unknown type.
var ErrInvalidViolationType = errors.New("unknown violation type")

// telemetryPayload is the raw signal pushed to the persistence queue for
// the telemetry worker. Advisory data, separate from the authoritative
// violation rows.
type telemetryPayload struct {
	AttemptID string          `json:"attempt_id"`
	StudentID int             `json:"student_id"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ViolationService is the violation recording engine. Validation is
// fail-closed: one bad event rejects the whole batch before any write.
// Accepted batches persist rows and counter in a single transaction, then
// the enforcement thresholds are evaluated on the durable count.
type ViolationService struct {
	attempts      *AttemptService
	violationRepo *repository.ViolationRepository
	studentRepo   *repository.StudentRepository
	snapshot      *SnapshotService
	completion    *CompletionService
	auth          *AuthService
	monitor       *MonitorService
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(
	attempts *AttemptService,
	violationRepo *repository.ViolationRepository,
	studentRepo *repository.StudentRepository,
	snapshot *SnapshotService,
	completion *CompletionService,
	auth *AuthService,
	monitor *MonitorService,
	rdb *redis.Client,
	log zerolog.Logger,
) *ViolationService {
	return &ViolationService{
		attempts:      attempts,
		violationRepo: violationRepo,
		studentRepo:   studentRepo,
		snapshot:      snapshot,
		completion:    completion,
		auth:          auth,
		monitor:       monitor,
		rdb:           rdb,
		log:           log.With().Str("component", "violation_service").Logger(),
	}
}

// Record validates and persists a batch of client-reported violations for
// a running attempt and returns the enforcement decision.
func (s *ViolationService) Record(ctx context.Context, attemptID uuid.UUID, studentID int, req *model.ViolationBatchRequest) (*model.Enforcement, error) {
	// 1. Fail-closed validation before anything is written or counted.
	types := make([]model.ViolationType, 0, len(req.Events))
	for _, ev := range req.Events {
		vt := model.ViolationType(strings.ToUpper(strings.TrimSpace(ev.Type)))
		if !vt.Valid() {
			return nil, ErrInvalidViolationType
		}
		types = append(types, vt)
	}

	// 2. Uniform attempt guard: ownership, window, expiry, pause.
	res, err := s.attempts.Resolve(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	attempt := res.Attempt
	if res.Remaining.Expired {
		return nil, ErrTimeExpired
	}
	if err := attempt.GuardMutation(); err != nil {
		return nil, err
	}
	if attempt.StartTime == nil {
		return nil, model.ErrAttemptNotRunning
	}

	// 3. Snapshots are advisory: a failed store degrades the record, it
	// never drops the violation.
	violations := make([]model.Violation, 0, len(req.Events))
	for i, ev := range req.Events {
		v := model.Violation{
			ID:          uuid.New(),
			AttemptID:   attemptID,
			Type:        types[i],
			Description: ev.Description,
			Metadata:    ev.Metadata,
		}
		if ev.Snapshot != "" {
			path, snapErr := s.snapshot.Store(ev.Snapshot)
			if snapErr != nil {
				s.log.Warn().Err(snapErr).
					Str("attempt_id", attemptID.String()).
					Str("violation_type", string(v.Type)).
					Msg("snapshot store failed, recording violation without it")
			} else {
				v.SnapshotPath = &path
			}
		}
		violations = append(violations, v)
	}

	// 4. Rows + counter in one transaction.
	newCount, err := s.violationRepo.RecordBatch(ctx, attemptID, violations)
	if err != nil {
		return nil, err
	}

	s.enqueueTelemetry(ctx, attempt, req.Events)

	for _, v := range violations {
		s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
			Type:           MonitorEventViolation,
			AttemptID:      attempt.ID,
			StudentID:      attempt.StudentID,
			ViolationType:  string(v.Type),
			ViolationCount: newCount,
		})
	}

	// 5. Enforcement on the durable count.
	enforcement := model.EvaluateEnforcement(res.Exam, newCount)

	if enforcement.WarningReached {
		s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
			Type:           MonitorEventWarning,
			AttemptID:      attempt.ID,
			StudentID:      attempt.StudentID,
			ViolationCount: newCount,
		})
	}

	if enforcement.ShouldAutoSubmit {
		if _, err := s.completion.Finalize(ctx, attempt, res.Exam, time.Now(), res.Remaining.RemainingMs, FinalizeReasonViolations); err != nil {
			return nil, err
		}
		s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
			Type:           MonitorEventAutoSubmit,
			AttemptID:      attempt.ID,
			StudentID:      attempt.StudentID,
			ViolationCount: newCount,
		})
	}

	if enforcement.ShouldBlock {
		if err := s.blockStudent(ctx, attempt); err != nil {
			// The violation batch is already durable; report the block
			// failure without undoing it.
			s.log.Error().Err(err).
				Int("student_id", attempt.StudentID).
				Msg("blocking student failed")
		} else {
			enforcement.IsBlocked = true
			s.monitor.Publish(ctx, attempt.SessionID, MonitorEvent{
				Type:           MonitorEventBlocked,
				AttemptID:      attempt.ID,
				StudentID:      attempt.StudentID,
				ViolationCount: newCount,
			})
		}
	}

	return &enforcement, nil
}

// ListByAttempt returns an attempt's violation log for proctor review.
func (s *ViolationService) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Violation, error) {
	violations, err := s.violationRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if violations == nil {
		violations = []model.Violation{}
	}
	return violations, nil
}

// blockStudent blocks the account and kicks its active device.
func (s *ViolationService) blockStudent(ctx context.Context, attempt *model.Attempt) error {
	if err := s.studentRepo.SetBlocked(ctx, attempt.StudentID, true); err != nil {
		return err
	}
	if err := s.auth.ResetStudentSession(ctx, attempt.StudentID); err != nil {
		s.log.Warn().Err(err).Int("student_id", attempt.StudentID).Msg("session reset after block failed")
	}
	return nil
}

// enqueueTelemetry pushes the raw signals to the persistence queue. Best
// effort: losing telemetry never affects the authoritative record.
func (s *ViolationService) enqueueTelemetry(ctx context.Context, attempt *model.Attempt, events []model.ViolationEvent) {
	now := time.Now().Unix()
	pipe := s.rdb.Pipeline()
	for _, ev := range events {
		payload := telemetryPayload{
			AttemptID: attempt.ID.String(),
			StudentID: attempt.StudentID,
			Type:      strings.ToUpper(strings.TrimSpace(ev.Type)),
			Metadata:  ev.Metadata,
			Timestamp: now,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, config.WorkerKey.PersistTelemetryQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("telemetry enqueue failed")
	}
}

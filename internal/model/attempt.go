package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusPaused     AttemptStatus = "PAUSED"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
)

// GradeStatus enumerates the pass/fail outcome of a completed attempt.
type GradeStatus string

const (
	GradeStatusPending GradeStatus = "PENDING"
	GradeStatusPassed  GradeStatus = "PASSED"
	GradeStatusFailed  GradeStatus = "FAILED"
)

// State machine errors shared by every entry point.
var (
	ErrAttemptCompleted  = errors.New("attempt is already completed")
	ErrAttemptPaused     = errors.New("attempt is paused")
	ErrAttemptNotRunning = errors.New("attempt is not running")
	ErrAlreadyPaused     = errors.New("attempt is already paused")
	ErrNotPaused         = errors.New("attempt is not paused")
)

// Attempt is one student's timed instance of taking one exam in one
// session window. It owns the authoritative timer state, the pause state,
// the violation counters and the scoring outputs. All transitions happen
// through the methods below so the guard order is identical everywhere.
type Attempt struct {
	ID        uuid.UUID `json:"id"`
	StudentID int       `json:"student_id"`
	ExamID    uuid.UUID `json:"exam_id"`
	SessionID uuid.UUID `json:"session_id"`

	Status    AttemptStatus `json:"status"`
	StartTime *time.Time    `json:"start_time,omitempty"`
	EndTime   *time.Time    `json:"end_time,omitempty"`

	// DurationAllowedMs is frozen from the exam at first touch so a later
	// exam edit cannot alter an in-progress attempt.
	DurationAllowedMs   int64 `json:"duration_allowed_ms"`
	DurationRemainingMs int64 `json:"duration_remaining_ms"`
	TimeExtensionMs     int64 `json:"time_extension_ms"`

	IsPaused     bool       `json:"is_paused"`
	PausedAt     *time.Time `json:"paused_at,omitempty"`
	PauseReason  *string    `json:"pause_reason,omitempty"`
	PauseTotalMs int64      `json:"pause_total_ms"`

	AttemptCount  int `json:"attempt_count"`
	AttemptNumber int `json:"attempt_number"`

	TotalCorrect   int         `json:"total_correct"`
	PointsPossible float64     `json:"points_possible"`
	PointsEarned   float64     `json:"points_earned"`
	Grade          float64     `json:"grade"`
	GradeStatus    GradeStatus `json:"grade_status"`

	ViolationCount int  `json:"violation_count"`
	IsFlagged      bool `json:"is_flagged"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Completed reports whether the attempt has reached its terminal state.
// end_time set implies completed; the two are written together.
func (a *Attempt) Completed() bool {
	return a.EndTime != nil || a.Status == AttemptStatusCompleted
}

// GuardMutation applies the uniform entry-point guard: a completed attempt
// short-circuits, a paused attempt rejects every mutation except resume.
func (a *Attempt) GuardMutation() error {
	if a.Completed() {
		return ErrAttemptCompleted
	}
	if a.IsPaused {
		return ErrAttemptPaused
	}
	return nil
}

// BeginIfFirstTouch transitions NOT_STARTED → IN_PROGRESS on the first
// request that touches the attempt. Stamps start_time once and increments
// attempt_count once per genuine start. Returns true if the transition fired.
func (a *Attempt) BeginIfFirstTouch(now time.Time, allowedMs int64) bool {
	if a.Status != AttemptStatusNotStarted {
		return false
	}
	t := now
	a.Status = AttemptStatusInProgress
	a.StartTime = &t
	a.DurationAllowedMs = allowedMs
	a.DurationRemainingMs = allowedMs
	a.AttemptCount++
	return true
}

// Pause stops the clock. Only a running attempt can be paused; paused
// wall-clock time is accumulated on resume and never charged against the
// remaining duration.
func (a *Attempt) Pause(now time.Time, reason string) error {
	if a.Completed() {
		return ErrAttemptCompleted
	}
	if a.IsPaused {
		return ErrAlreadyPaused
	}
	if a.Status != AttemptStatusInProgress {
		return ErrAttemptNotRunning
	}
	t := now
	a.IsPaused = true
	a.PausedAt = &t
	a.PauseReason = &reason
	a.Status = AttemptStatusPaused
	return nil
}

// Resume restarts the clock and credits the paused interval to pause_total_ms.
func (a *Attempt) Resume(now time.Time) error {
	if a.Completed() {
		return ErrAttemptCompleted
	}
	if !a.IsPaused {
		return ErrNotPaused
	}
	if a.PausedAt != nil {
		a.PauseTotalMs += now.Sub(*a.PausedAt).Milliseconds()
	}
	a.IsPaused = false
	a.PausedAt = nil
	a.PauseReason = nil
	a.Status = AttemptStatusInProgress
	return nil
}

// ExtendTime grants extra minutes. Only a running attempt is eligible: a
// paused one gets its time back through the pause credit, and an untouched
// one has no clock to extend. Grants are additive and never negative.
func (a *Attempt) ExtendTime(minutes int) error {
	if a.Completed() {
		return ErrAttemptCompleted
	}
	if a.Status != AttemptStatusInProgress {
		return ErrAttemptNotRunning
	}
	if minutes <= 0 {
		return errors.New("extension must be positive")
	}
	a.TimeExtensionMs += int64(minutes) * 60_000
	return nil
}

// ResetForRetry wipes the attempt back to NOT_STARTED for an explicit
// remedial retry. attempt_number increases; attempt_count is preserved and
// will increment again on the next genuine start.
func (a *Attempt) ResetForRetry() {
	a.Status = AttemptStatusNotStarted
	a.StartTime = nil
	a.EndTime = nil
	a.DurationAllowedMs = 0
	a.DurationRemainingMs = 0
	a.TimeExtensionMs = 0
	a.IsPaused = false
	a.PausedAt = nil
	a.PauseReason = nil
	a.PauseTotalMs = 0
	a.AttemptNumber++
	a.TotalCorrect = 0
	a.PointsPossible = 0
	a.PointsEarned = 0
	a.Grade = 0
	a.GradeStatus = GradeStatusPending
	a.ViolationCount = 0
	a.IsFlagged = false
}

// ─── Requests ───────────────────────────────────────────────────────

// PauseAttemptRequest carries the mandatory reason for a pause action.
type PauseAttemptRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=255"`
}

// ExtendTimeRequest grants extra minutes to a running attempt.
type ExtendTimeRequest struct {
	Minutes int    `json:"minutes" binding:"required,min=1,max=240"`
	Reason  string `json:"reason" binding:"required,min=3,max=255"`
}

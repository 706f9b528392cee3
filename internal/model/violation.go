package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ViolationType enumerates the anti-cheat signals the server accepts.
// Anything else is rejected before any counter mutation.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "TAB_SWITCH"
	ViolationWindowBlur     ViolationType = "WINDOW_BLUR"
	ViolationFullscreenExit ViolationType = "FULLSCREEN_EXIT"
	ViolationCopyPaste      ViolationType = "COPY_PASTE"
	ViolationDevtoolsOpen   ViolationType = "DEVTOOLS_OPEN"
	ViolationMultiMonitor   ViolationType = "MULTI_MONITOR"
	ViolationVMDetected     ViolationType = "VM_DETECTED"
	ViolationRemoteDesktop  ViolationType = "REMOTE_DESKTOP"
)

var knownViolationTypes = map[ViolationType]struct{}{
	ViolationTabSwitch:      {},
	ViolationWindowBlur:     {},
	ViolationFullscreenExit: {},
	ViolationCopyPaste:      {},
	ViolationDevtoolsOpen:   {},
	ViolationMultiMonitor:   {},
	ViolationVMDetected:     {},
	ViolationRemoteDesktop:  {},
}

// Valid reports whether the type is one the server accepts.
func (t ViolationType) Valid() bool {
	_, ok := knownViolationTypes[t]
	return ok
}

// Violation is one accepted anti-cheat event. Rows are append-only and are
// the source of truth for Attempt.ViolationCount; the counter on the
// attempt is a write-through cache updated in the same transaction.
type Violation struct {
	ID           uuid.UUID       `json:"id"`
	AttemptID    uuid.UUID       `json:"attempt_id"`
	Type         ViolationType   `json:"type"`
	Description  string          `json:"description,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	SnapshotPath *string         `json:"snapshot_path,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Enforcement is the engine's decision after a durable counter increment.
// The engine signals; the caller acts (auto-submit goes through the
// completion service, blocking through the student store).
type Enforcement struct {
	TotalViolations  int  `json:"total_violations"`
	Remaining        int  `json:"remaining"`
	WarningReached   bool `json:"warning_reached"`
	ShouldAutoSubmit bool `json:"should_auto_submit"`
	ShouldBlock      bool `json:"-"`
	IsBlocked        bool `json:"is_blocked"`
}

// EvaluateEnforcement derives threshold decisions from the exam policy and
// the durable violation count. A threshold of 0 disables that threshold.
func EvaluateEnforcement(exam *Exam, count int) Enforcement {
	e := Enforcement{TotalViolations: count}

	if exam.WarningThreshold > 0 && count >= exam.WarningThreshold {
		e.WarningReached = true
	}

	limitExceeded := exam.MaxViolations > 0 && count >= exam.MaxViolations
	if exam.MaxViolations > 0 {
		e.Remaining = exam.MaxViolations - count
		if e.Remaining < 0 {
			e.Remaining = 0
		}
	}
	if limitExceeded {
		e.ShouldAutoSubmit = exam.AutoSubmitOnMaxViolations
		e.ShouldBlock = exam.BlockOnMaxViolations
	}
	return e
}

// ─── Requests ───────────────────────────────────────────────────────

// ViolationEvent is one client-reported signal. Snapshot is an optional
// base64-encoded image; it is advisory and failures to store it never fail
// the violation record.
type ViolationEvent struct {
	Type        string          `json:"type" binding:"required,min=3,max=40"`
	Description string          `json:"description" binding:"omitempty,max=500"`
	Metadata    json.RawMessage `json:"metadata" binding:"omitempty"`
	Snapshot    string          `json:"snapshot" binding:"omitempty"`
}

// ViolationBatchRequest is an ordered list of events processed atomically.
type ViolationBatchRequest struct {
	Events []ViolationEvent `json:"events" binding:"required,min=1,max=50,dive"`
}

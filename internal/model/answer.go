package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Answer is one attempt × question row. The full set is created in bulk at
// attempt start, freezing the question set and point values at that moment.
type Answer struct {
	ID         uuid.UUID `json:"id"`
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`

	// Points is the question's point value frozen at attempt start.
	Points   float64 `json:"points"`
	OrderNum int     `json:"order_num"`

	Submission        json.RawMessage `json:"submission,omitempty"`
	IsCorrect         bool            `json:"is_correct"`
	PointsAwarded     float64         `json:"points_awarded"`
	NeedsManualReview bool            `json:"needs_manual_review"`

	GradedBy  *int       `json:"graded_by,omitempty"`
	GradedAt  *time.Time `json:"graded_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SubmitAnswerRequest carries a student's submission payload for one question.
// The payload shape depends on the question type and is parsed by the
// scoring engine, not the transport layer.
type SubmitAnswerRequest struct {
	Submission json.RawMessage `json:"submission" binding:"required"`
}

// GradeAnswerRequest is a grader's manual points for an essay answer.
// Points are clamped to [0, P] server-side.
type GradeAnswerRequest struct {
	Points float64 `json:"points" binding:"min=0"`
}

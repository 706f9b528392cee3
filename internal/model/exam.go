package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/scoring"
)

// Exam represents an exam definition together with its scoring and
// proctoring policy. The policy columns are immutable once grading starts;
// this service only ever reads them.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	PassingGrade    float64   `json:"passing_grade"`

	// Scoring policy
	NegativeMarking        bool    `json:"negative_marking"`
	NegativeMarkingPercent float64 `json:"negative_marking_percent"`
	PartialCredit          bool    `json:"partial_credit"`

	// Proctoring policy
	MaxViolations             int  `json:"max_violations"`
	WarningThreshold          int  `json:"warning_threshold"`
	AutoSubmitOnMaxViolations bool `json:"auto_submit_on_max_violations"`
	BlockOnMaxViolations      bool `json:"block_on_max_violations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoringPolicy converts the exam's policy columns into the scoring engine's input.
func (e *Exam) ScoringPolicy() scoring.Policy {
	return scoring.Policy{
		NegativeMarking:        e.NegativeMarking,
		NegativeMarkingPercent: e.NegativeMarkingPercent,
		PartialCredit:          e.PartialCredit,
	}
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds. The string values
// double as scoring engine inputs.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
	QuestionTypeMatching       QuestionType = "MATCHING"
)

// Question is one exam question. AnswerKey is the per-type JSON key
// consumed by the scoring engine and is never sent to students.
type Question struct {
	ID        uuid.UUID       `json:"id"`
	ExamID    uuid.UUID       `json:"exam_id"`
	Type      QuestionType    `json:"type"`
	Prompt    string          `json:"prompt"`
	Options   json.RawMessage `json:"options,omitempty"`
	AnswerKey json.RawMessage `json:"-"`
	Points    float64         `json:"points"`
	OrderNum  int             `json:"order_num"`
	CreatedAt time.Time       `json:"created_at"`
}

// QuestionForStudent is a question stripped of its answer key, as served
// in the frozen paper payload.
type QuestionForStudent struct {
	ID       uuid.UUID       `json:"id"`
	Type     QuestionType    `json:"type"`
	Prompt   string          `json:"prompt"`
	Options  json.RawMessage `json:"options,omitempty"`
	Points   float64         `json:"points"`
	OrderNum int             `json:"order_num"`
}

// AttemptPaper is the frozen question set served to a student for one
// attempt. Cached in Redis; rebuilt from the answer rows on a cache miss.
type AttemptPaper struct {
	AttemptID uuid.UUID            `json:"attempt_id"`
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Questions []QuestionForStudent `json:"questions"`
}

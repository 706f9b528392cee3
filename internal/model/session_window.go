package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionWindow is the admin-scheduled start/end window shared by all
// students taking an exam together. Attempts can never run past EndsAt,
// no matter how much paused time or extension they have accumulated.
type SessionWindow struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	Label     string    `json:"label"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Open reports whether the window is open at the given instant.
func (w *SessionWindow) Open(now time.Time) bool {
	return !now.Before(w.StartsAt) && now.Before(w.EndsAt)
}

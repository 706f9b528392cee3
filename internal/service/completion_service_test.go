package service

import (
	"testing"

	"github.com/provalab/examguard-backend/internal/model"
)

func TestGradeStatus(t *testing.T) {
	s := &CompletionService{}

	tests := []struct {
		name          string
		grade         float64
		passingGrade  float64
		pendingReview bool
		want          model.GradeStatus
	}{
		{"above threshold passes", 75, 60, false, model.GradeStatusPassed},
		{"exactly threshold passes", 60, 60, false, model.GradeStatusPassed},
		{"below threshold fails", 59.99, 60, false, model.GradeStatusFailed},
		{"pending review wins over passing score", 100, 60, true, model.GradeStatusPending},
		{"zero passing grade never passes", 0, 0, false, model.GradeStatusFailed},
		{"zero passing grade fails even a perfect score", 100, 0, false, model.GradeStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.gradeStatus(tt.grade, tt.passingGrade, tt.pendingReview)
			if got != tt.want {
				t.Errorf("gradeStatus(%v, %v, %v) = %s, want %s",
					tt.grade, tt.passingGrade, tt.pendingReview, got, tt.want)
			}
		})
	}
}

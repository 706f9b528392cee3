package scoring

// AnswerScore is the minimal per-answer view the summation needs.
type AnswerScore struct {
	Points        float64
	PointsAwarded float64
	IsCorrect     bool
}

// Totals is the attempt-level aggregate written at finalize and rewritten
// at recalculate. Both paths use the identical formula.
type Totals struct {
	TotalCorrect   int
	PointsPossible float64
	PointsEarned   float64
	Grade          float64
}

// Tally sums per-answer results into attempt totals. Negative per-answer
// contributions (negative marking) are allowed in points_earned; the final
// grade is clamped to [0, 100].
func Tally(rows []AnswerScore) Totals {
	var t Totals
	for _, r := range rows {
		p := r.Points
		if p == 0 {
			p = 1
		}
		t.PointsPossible += p
		t.PointsEarned += r.PointsAwarded
		if r.IsCorrect {
			t.TotalCorrect++
		}
	}
	if t.PointsPossible > 0 {
		t.Grade = round2(t.PointsEarned / t.PointsPossible * 100)
		if t.Grade < 0 {
			t.Grade = 0
		}
		if t.Grade > 100 {
			t.Grade = 100
		}
	}
	t.PointsEarned = round2(t.PointsEarned)
	return t
}

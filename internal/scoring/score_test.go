package scoring

import "testing"

func TestScore_SingleChoice(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		sub       string
		points    float64
		pol       Policy
		answered  bool
		isCorrect bool
		awarded   float64
	}{
		{name: "correct", key: `{"correct":2}`, sub: `{"selected":2}`, points: 4, answered: true, isCorrect: true, awarded: 4},
		{name: "wrong no negative marking", key: `{"correct":2}`, sub: `{"selected":1}`, points: 4, answered: true, awarded: 0},
		{name: "wrong with negative marking", key: `{"correct":2}`, sub: `{"selected":1}`, points: 4, pol: Policy{NegativeMarking: true, NegativeMarkingPercent: 25}, answered: true, awarded: -1},
		{name: "blank never penalized", key: `{"correct":2}`, sub: ``, points: 4, pol: Policy{NegativeMarking: true, NegativeMarkingPercent: 25}, answered: false, awarded: 0},
		{name: "missing selected is blank", key: `{"correct":2}`, sub: `{}`, points: 4, pol: Policy{NegativeMarking: true, NegativeMarkingPercent: 100}, answered: false, awarded: 0},
		{name: "zero index option", key: `{"correct":0}`, sub: `{"selected":0}`, points: 1, answered: true, isCorrect: true, awarded: 1},
		{name: "default point value", key: `{"correct":1}`, sub: `{"selected":1}`, points: 0, answered: true, isCorrect: true, awarded: 1},
		{name: "malformed submission", key: `{"correct":1}`, sub: `{"selected":`, points: 2, answered: false, awarded: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(Input{
				QuestionType: TypeSingleChoice,
				AnswerKey:    []byte(tc.key),
				Submission:   []byte(tc.sub),
				Points:       tc.points,
			}, tc.pol)
			assertResult(t, got, tc.answered, tc.isCorrect, tc.awarded, false)
		})
	}
}

func TestScore_TrueFalse(t *testing.T) {
	got := Score(Input{
		QuestionType: TypeTrueFalse,
		AnswerKey:    []byte(`{"correct":1}`),
		Submission:   []byte(`{"selected":0}`),
		Points:       2,
	}, Policy{NegativeMarking: true, NegativeMarkingPercent: 50})
	assertResult(t, got, true, false, -1, false)
}

func TestScore_MultipleChoice(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		sub       string
		points    float64
		pol       Policy
		answered  bool
		isCorrect bool
		awarded   float64
	}{
		{name: "exact match full credit", key: `{"correct":[1,2,3]}`, sub: `{"selected":[3,1,2]}`, points: 10, pol: Policy{PartialCredit: true}, answered: true, isCorrect: true, awarded: 10},
		{name: "partial two of three", key: `{"correct":[1,2,3]}`, sub: `{"selected":[1,2]}`, points: 10, pol: Policy{PartialCredit: true}, answered: true, awarded: 6.67},
		{name: "partial with wrong extra", key: `{"correct":[1,2,3]}`, sub: `{"selected":[1,2,5]}`, points: 10, pol: Policy{PartialCredit: true}, answered: true, awarded: 3.33},
		{name: "more wrong than right floors at zero", key: `{"correct":[1,2,3]}`, sub: `{"selected":[1,5,6,7]}`, points: 10, pol: Policy{PartialCredit: true}, answered: true, awarded: 0},
		{name: "partial credit disabled all or nothing", key: `{"correct":[1,2,3]}`, sub: `{"selected":[1,2]}`, points: 10, answered: true, awarded: 0},
		{name: "partial credit disabled exact still full", key: `{"correct":[1,2,3]}`, sub: `{"selected":[1,2,3]}`, points: 10, answered: true, isCorrect: true, awarded: 10},
		{name: "empty selection is blank", key: `{"correct":[1,2]}`, sub: `{"selected":[]}`, points: 10, pol: Policy{PartialCredit: true}, answered: false, awarded: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(Input{
				QuestionType: TypeMultipleChoice,
				AnswerKey:    []byte(tc.key),
				Submission:   []byte(tc.sub),
				Points:       tc.points,
			}, tc.pol)
			assertResult(t, got, tc.answered, tc.isCorrect, tc.awarded, false)
		})
	}
}

func TestScore_ShortAnswer(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		sub       string
		answered  bool
		isCorrect bool
		awarded   float64
	}{
		{name: "exact match", key: `{"accepted":["Paris"]}`, sub: `{"text":"Paris"}`, answered: true, isCorrect: true, awarded: 3},
		{name: "case insensitive trimmed", key: `{"accepted":["Paris"]}`, sub: `{"text":"  paris "}`, answered: true, isCorrect: true, awarded: 3},
		{name: "any accepted alternative", key: `{"accepted":["NaCl","sodium chloride"]}`, sub: `{"text":"Sodium Chloride"}`, answered: true, isCorrect: true, awarded: 3},
		{name: "wrong answer no partial", key: `{"accepted":["Paris"]}`, sub: `{"text":"Lyon"}`, answered: true, awarded: 0},
		{name: "whitespace only is blank", key: `{"accepted":["Paris"]}`, sub: `{"text":"   "}`, answered: false, awarded: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(Input{
				QuestionType: TypeShortAnswer,
				AnswerKey:    []byte(tc.key),
				Submission:   []byte(tc.sub),
				Points:       3,
			}, Policy{})
			assertResult(t, got, tc.answered, tc.isCorrect, tc.awarded, false)
		})
	}
}

func TestScore_Matching(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		sub       string
		points    float64
		answered  bool
		isCorrect bool
		awarded   float64
	}{
		{name: "all pairs correct", key: `{"pairs":{"l1":"r1","l2":"r2","l3":"r3"}}`, sub: `{"pairs":{"l1":"r1","l2":"r2","l3":"r3"}}`, points: 9, answered: true, isCorrect: true, awarded: 9},
		{name: "two of three pairs", key: `{"pairs":{"l1":"r1","l2":"r2","l3":"r3"}}`, sub: `{"pairs":{"l1":"r1","l2":"r2","l3":"r1"}}`, points: 9, answered: true, awarded: 6},
		{name: "no pairs correct", key: `{"pairs":{"l1":"r1","l2":"r2"}}`, sub: `{"pairs":{"l1":"r2","l2":"r1"}}`, points: 4, answered: true, awarded: 0},
		{name: "missing mapping counts wrong", key: `{"pairs":{"l1":"r1","l2":"r2"}}`, sub: `{"pairs":{"l1":"r1"}}`, points: 4, answered: true, awarded: 2},
		{name: "empty map is blank", key: `{"pairs":{"l1":"r1"}}`, sub: `{"pairs":{}}`, points: 4, answered: false, awarded: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(Input{
				QuestionType: TypeMatching,
				AnswerKey:    []byte(tc.key),
				Submission:   []byte(tc.sub),
				Points:       tc.points,
			}, Policy{})
			assertResult(t, got, tc.answered, tc.isCorrect, tc.awarded, false)
		})
	}
}

func TestScore_Essay(t *testing.T) {
	got := Score(Input{
		QuestionType: TypeEssay,
		Submission:   []byte(`{"text":"my long answer"}`),
		Points:       10,
	}, Policy{})
	assertResult(t, got, true, false, 0, true)

	blank := Score(Input{QuestionType: TypeEssay, Points: 10}, Policy{})
	assertResult(t, blank, false, false, 0, true)
}

func TestScore_Deterministic(t *testing.T) {
	in := Input{
		QuestionType: TypeMultipleChoice,
		AnswerKey:    []byte(`{"correct":[1,2,3]}`),
		Submission:   []byte(`{"selected":[1,2]}`),
		Points:       10,
	}
	pol := Policy{PartialCredit: true}
	first := Score(in, pol)
	for i := 0; i < 50; i++ {
		if got := Score(in, pol); got != first {
			t.Fatalf("score not deterministic: run %d got %+v, want %+v", i, got, first)
		}
	}
}

func TestTally(t *testing.T) {
	rows := []AnswerScore{
		{Points: 4, PointsAwarded: 4, IsCorrect: true},
		{Points: 4, PointsAwarded: -1},
		{Points: 10, PointsAwarded: 6.67},
		{Points: 2, PointsAwarded: 0},
	}
	got := Tally(rows)

	if got.TotalCorrect != 1 {
		t.Errorf("TotalCorrect = %d, want 1", got.TotalCorrect)
	}
	if got.PointsPossible != 20 {
		t.Errorf("PointsPossible = %v, want 20", got.PointsPossible)
	}
	if got.PointsEarned != 9.67 {
		t.Errorf("PointsEarned = %v, want 9.67", got.PointsEarned)
	}
	if got.Grade != 48.35 {
		t.Errorf("Grade = %v, want 48.35", got.Grade)
	}
}

func TestTally_EmptyAndNegative(t *testing.T) {
	if got := Tally(nil); got.Grade != 0 || got.PointsPossible != 0 {
		t.Fatalf("empty tally = %+v, want zeros", got)
	}

	// Heavy negative marking cannot push the grade below zero.
	got := Tally([]AnswerScore{
		{Points: 2, PointsAwarded: -2},
		{Points: 2, PointsAwarded: -2},
	})
	if got.Grade != 0 {
		t.Fatalf("Grade = %v, want 0", got.Grade)
	}
	if got.PointsEarned != -4 {
		t.Fatalf("PointsEarned = %v, want -4", got.PointsEarned)
	}
}

func assertResult(t *testing.T, got Result, answered, isCorrect bool, awarded float64, manual bool) {
	t.Helper()
	if got.Answered != answered {
		t.Errorf("Answered = %v, want %v", got.Answered, answered)
	}
	if got.IsCorrect != isCorrect {
		t.Errorf("IsCorrect = %v, want %v", got.IsCorrect, isCorrect)
	}
	if got.PointsAwarded != awarded {
		t.Errorf("PointsAwarded = %v, want %v", got.PointsAwarded, awarded)
	}
	if got.NeedsManualReview != manual {
		t.Errorf("NeedsManualReview = %v, want %v", got.NeedsManualReview, manual)
	}
}

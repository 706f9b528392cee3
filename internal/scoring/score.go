// Package scoring is the pure answer-scoring engine. Score is a
// deterministic function of (question, submission, policy): calling it any
// number of times with identical inputs yields identical output, so it can
// run at submit time and again at finalize or after manual re-grading
// without drift.
package scoring

import (
	"encoding/json"
	"math"
	"strings"
)

// Question type strings accepted by the engine. They match the values
// stored on the questions table.
const (
	TypeSingleChoice   = "SINGLE_CHOICE"
	TypeTrueFalse      = "TRUE_FALSE"
	TypeMultipleChoice = "MULTIPLE_CHOICE"
	TypeShortAnswer    = "SHORT_ANSWER"
	TypeEssay          = "ESSAY"
	TypeMatching       = "MATCHING"
)

// Policy is the exam-level scoring policy, read-only input to the engine.
type Policy struct {
	NegativeMarking        bool
	NegativeMarkingPercent float64
	PartialCredit          bool
}

// Input is one question + submission pair.
//
// Answer key formats per type:
//
//	SINGLE_CHOICE / TRUE_FALSE: {"correct": 2}
//	MULTIPLE_CHOICE:            {"correct": [0, 2, 3]}
//	SHORT_ANSWER:               {"accepted": ["paris", "Paris, France"]}
//	MATCHING:                   {"pairs": {"l1": "r2", "l2": "r1"}}
//	ESSAY:                      no key; never auto-scored
//
// Submission formats:
//
//	SINGLE_CHOICE / TRUE_FALSE: {"selected": 2}
//	MULTIPLE_CHOICE:            {"selected": [0, 2]}
//	SHORT_ANSWER / ESSAY:       {"text": "..."}
//	MATCHING:                   {"pairs": {"l1": "r2"}}
type Input struct {
	QuestionType string
	AnswerKey    []byte
	Submission   []byte
	Points       float64
}

// Result is the engine's verdict for one answer.
type Result struct {
	Answered          bool
	IsCorrect         bool
	PointsAwarded     float64
	NeedsManualReview bool
}

// Score applies the per-type semantics. Unset point values default to 1.
func Score(in Input, pol Policy) Result {
	p := in.Points
	if p == 0 {
		p = 1
	}
	if p < 0 {
		p = 0
	}

	switch strings.ToUpper(strings.TrimSpace(in.QuestionType)) {
	case TypeSingleChoice, TypeTrueFalse:
		return scoreSingleChoice(in.AnswerKey, in.Submission, p, pol)
	case TypeMultipleChoice:
		return scoreMultipleChoice(in.AnswerKey, in.Submission, p, pol)
	case TypeShortAnswer:
		return scoreShortAnswer(in.AnswerKey, in.Submission, p)
	case TypeMatching:
		return scoreMatching(in.AnswerKey, in.Submission, p)
	case TypeEssay:
		return scoreEssay(in.Submission)
	default:
		// Unknown types go to manual review rather than silently scoring 0.
		return Result{Answered: len(in.Submission) > 0, NeedsManualReview: true}
	}
}

// scoreSingleChoice handles single choice and true/false. A blank
// submission is never penalized; an incorrect non-empty one is, when
// negative marking is enabled.
func scoreSingleChoice(keyRaw, subRaw []byte, p float64, pol Policy) Result {
	correct, okKey := parseCorrectIndex(keyRaw)
	selected, answered := parseSelectedIndex(subRaw)
	if !answered {
		return Result{}
	}
	if okKey && selected == correct {
		return Result{Answered: true, IsCorrect: true, PointsAwarded: p}
	}
	res := Result{Answered: true}
	if pol.NegativeMarking && pol.NegativeMarkingPercent > 0 {
		penalty := round2(p * pol.NegativeMarkingPercent / 100)
		res.PointsAwarded = clamp(-penalty, -penalty, p)
	}
	return res
}

// scoreMultipleChoice compares option sets. With partial credit:
// points = P × (|correct ∩ submitted| − |submitted ∖ correct|) / |correct|,
// floored at 0 and rounded to 2 decimals. Without: all-or-nothing.
func scoreMultipleChoice(keyRaw, subRaw []byte, p float64, pol Policy) Result {
	correct, okKey := parseCorrectSet(keyRaw)
	submitted, answered := parseSelectedSet(subRaw)
	if !answered {
		return Result{}
	}
	if !okKey || len(correct) == 0 {
		return Result{Answered: true}
	}

	hits, extras := 0, 0
	for opt := range submitted {
		if _, ok := correct[opt]; ok {
			hits++
		} else {
			extras++
		}
	}
	exact := hits == len(correct) && extras == 0
	if exact {
		return Result{Answered: true, IsCorrect: true, PointsAwarded: p}
	}
	if !pol.PartialCredit {
		return Result{Answered: true}
	}
	pts := p * float64(hits-extras) / float64(len(correct))
	if pts < 0 {
		pts = 0
	}
	return Result{Answered: true, PointsAwarded: clamp(round2(pts), 0, p)}
}

// scoreShortAnswer is a case-insensitive, trimmed match against any
// accepted answer. No partial credit.
func scoreShortAnswer(keyRaw, subRaw []byte, p float64) Result {
	accepted := parseAcceptedAnswers(keyRaw)
	text, answered := parseText(subRaw)
	if !answered {
		return Result{}
	}
	needle := strings.ToLower(strings.TrimSpace(text))
	for _, a := range accepted {
		if strings.ToLower(strings.TrimSpace(a)) == needle {
			return Result{Answered: true, IsCorrect: true, PointsAwarded: p}
		}
	}
	return Result{Answered: true}
}

// scoreMatching awards P × correctPairs/totalPairs; correct only if every
// pair matches.
func scoreMatching(keyRaw, subRaw []byte, p float64) Result {
	keyPairs, okKey := parsePairs(keyRaw)
	subPairs, answered := parsePairs(subRaw)
	if !answered || len(subPairs) == 0 {
		return Result{}
	}
	if !okKey || len(keyPairs) == 0 {
		return Result{Answered: true}
	}

	hits := 0
	for left, right := range keyPairs {
		if subPairs[left] == right {
			hits++
		}
	}
	pts := clamp(round2(p*float64(hits)/float64(len(keyPairs))), 0, p)
	return Result{
		Answered:      true,
		IsCorrect:     hits == len(keyPairs),
		PointsAwarded: pts,
	}
}

// scoreEssay never auto-scores; points stay 0 until a grader supplies them.
func scoreEssay(subRaw []byte) Result {
	_, answered := parseText(subRaw)
	return Result{Answered: answered, NeedsManualReview: true}
}

// ─── Key / submission parsing ───────────────────────────────────────

func parseCorrectIndex(raw []byte) (int, bool) {
	var key struct {
		Correct *int `json:"correct"`
	}
	if err := json.Unmarshal(raw, &key); err != nil || key.Correct == nil {
		return 0, false
	}
	return *key.Correct, true
}

func parseSelectedIndex(raw []byte) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var sub struct {
		Selected *int `json:"selected"`
	}
	if err := json.Unmarshal(raw, &sub); err != nil || sub.Selected == nil {
		return 0, false
	}
	return *sub.Selected, true
}

func parseCorrectSet(raw []byte) (map[int]struct{}, bool) {
	var key struct {
		Correct []int `json:"correct"`
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, false
	}
	return toSet(key.Correct), true
}

func parseSelectedSet(raw []byte) (map[int]struct{}, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var sub struct {
		Selected []int `json:"selected"`
	}
	if err := json.Unmarshal(raw, &sub); err != nil || len(sub.Selected) == 0 {
		return nil, false
	}
	return toSet(sub.Selected), true
}

func parseAcceptedAnswers(raw []byte) []string {
	var key struct {
		Accepted []string `json:"accepted"`
	}
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil
	}
	return key.Accepted
}

func parseText(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var sub struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return "", false
	}
	if strings.TrimSpace(sub.Text) == "" {
		return "", false
	}
	return sub.Text, true
}

func parsePairs(raw []byte) (map[string]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj struct {
		Pairs map[string]string `json:"pairs"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Pairs == nil {
		return nil, false
	}
	return obj.Pairs, true
}

func toSet(in []int) map[int]struct{} {
	set := make(map[int]struct{}, len(in))
	for _, v := range in {
		set[v] = struct{}{}
	}
	return set
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package model

import "testing"

func TestViolationTypeValid(t *testing.T) {
	if !ViolationTabSwitch.Valid() {
		t.Error("TAB_SWITCH should be valid")
	}
	if ViolationType("MOUSE_WIGGLE").Valid() {
		t.Error("unknown type should be invalid")
	}
	if ViolationType("").Valid() {
		t.Error("empty type should be invalid")
	}
}

func TestEvaluateEnforcement(t *testing.T) {
	exam := &Exam{
		MaxViolations:             3,
		WarningThreshold:          2,
		AutoSubmitOnMaxViolations: true,
		BlockOnMaxViolations:      false,
	}

	tests := []struct {
		count          int
		warning        bool
		autoSubmit     bool
		remaining      int
	}{
		{count: 1, warning: false, autoSubmit: false, remaining: 2},
		{count: 2, warning: true, autoSubmit: false, remaining: 1},
		{count: 3, warning: true, autoSubmit: true, remaining: 0},
		{count: 5, warning: true, autoSubmit: true, remaining: 0},
	}

	for _, tc := range tests {
		got := EvaluateEnforcement(exam, tc.count)
		if got.WarningReached != tc.warning {
			t.Errorf("count=%d WarningReached = %v, want %v", tc.count, got.WarningReached, tc.warning)
		}
		if got.ShouldAutoSubmit != tc.autoSubmit {
			t.Errorf("count=%d ShouldAutoSubmit = %v, want %v", tc.count, got.ShouldAutoSubmit, tc.autoSubmit)
		}
		if got.Remaining != tc.remaining {
			t.Errorf("count=%d Remaining = %d, want %d", tc.count, got.Remaining, tc.remaining)
		}
		if got.TotalViolations != tc.count {
			t.Errorf("count=%d TotalViolations = %d", tc.count, got.TotalViolations)
		}
	}
}

func TestEvaluateEnforcement_AutoSubmitDisabled(t *testing.T) {
	exam := &Exam{MaxViolations: 3, WarningThreshold: 2}
	got := EvaluateEnforcement(exam, 3)
	if got.ShouldAutoSubmit {
		t.Error("ShouldAutoSubmit = true with flag disabled")
	}
	if !got.WarningReached {
		t.Error("WarningReached = false, want true")
	}
}

func TestEvaluateEnforcement_BlockPolicy(t *testing.T) {
	exam := &Exam{MaxViolations: 2, BlockOnMaxViolations: true}
	if got := EvaluateEnforcement(exam, 1); got.ShouldBlock {
		t.Error("ShouldBlock before limit")
	}
	if got := EvaluateEnforcement(exam, 2); !got.ShouldBlock {
		t.Error("ShouldBlock = false at limit")
	}
}

func TestEvaluateEnforcement_ZeroDisablesThresholds(t *testing.T) {
	exam := &Exam{}
	got := EvaluateEnforcement(exam, 100)
	if got.WarningReached || got.ShouldAutoSubmit || got.ShouldBlock {
		t.Errorf("thresholds fired with zero config: %+v", got)
	}
}

package model

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func TestBeginIfFirstTouch(t *testing.T) {
	a := &Attempt{Status: AttemptStatusNotStarted}

	if !a.BeginIfFirstTouch(now, 60*60_000) {
		t.Fatal("first touch did not fire")
	}
	if a.Status != AttemptStatusInProgress {
		t.Errorf("Status = %s, want IN_PROGRESS", a.Status)
	}
	if a.StartTime == nil || !a.StartTime.Equal(now) {
		t.Errorf("StartTime = %v, want %v", a.StartTime, now)
	}
	if a.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", a.AttemptCount)
	}

	// Second touch is a no-op: start_time is set once.
	if a.BeginIfFirstTouch(now.Add(time.Minute), 60*60_000) {
		t.Fatal("second touch fired")
	}
	if a.AttemptCount != 1 {
		t.Errorf("AttemptCount after second touch = %d, want 1", a.AttemptCount)
	}
}

func TestGuardMutation(t *testing.T) {
	running := &Attempt{Status: AttemptStatusInProgress}
	if err := running.GuardMutation(); err != nil {
		t.Errorf("running guard = %v, want nil", err)
	}

	end := now
	completed := &Attempt{Status: AttemptStatusCompleted, EndTime: &end}
	if err := completed.GuardMutation(); !errors.Is(err, ErrAttemptCompleted) {
		t.Errorf("completed guard = %v, want ErrAttemptCompleted", err)
	}

	paused := &Attempt{Status: AttemptStatusPaused, IsPaused: true}
	if err := paused.GuardMutation(); !errors.Is(err, ErrAttemptPaused) {
		t.Errorf("paused guard = %v, want ErrAttemptPaused", err)
	}
}

func TestPauseResume(t *testing.T) {
	a := &Attempt{Status: AttemptStatusNotStarted}
	if err := a.Pause(now, "hold"); !errors.Is(err, ErrAttemptNotRunning) {
		t.Fatalf("pause before start = %v, want ErrAttemptNotRunning", err)
	}

	a.BeginIfFirstTouch(now, 60*60_000)
	if err := a.Pause(now.Add(5*time.Minute), "network outage"); err != nil {
		t.Fatal(err)
	}
	if !a.IsPaused || a.Status != AttemptStatusPaused {
		t.Fatal("attempt not paused")
	}
	if err := a.Pause(now.Add(6*time.Minute), "again"); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("double pause = %v, want ErrAlreadyPaused", err)
	}

	if err := a.Resume(now.Add(15 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	if want := int64(10 * 60_000); a.PauseTotalMs != want {
		t.Errorf("PauseTotalMs = %d, want %d", a.PauseTotalMs, want)
	}
	if a.Status != AttemptStatusInProgress || a.IsPaused {
		t.Error("attempt did not return to IN_PROGRESS")
	}
	if err := a.Resume(now.Add(16 * time.Minute)); !errors.Is(err, ErrNotPaused) {
		t.Errorf("double resume = %v, want ErrNotPaused", err)
	}
}

func TestExtendTime(t *testing.T) {
	a := &Attempt{Status: AttemptStatusInProgress}
	if err := a.ExtendTime(15); err != nil {
		t.Fatal(err)
	}
	if want := int64(15 * 60_000); a.TimeExtensionMs != want {
		t.Errorf("TimeExtensionMs = %d, want %d", a.TimeExtensionMs, want)
	}

	// Grants are additive.
	if err := a.ExtendTime(5); err != nil {
		t.Fatal(err)
	}
	if want := int64(20 * 60_000); a.TimeExtensionMs != want {
		t.Errorf("TimeExtensionMs = %d, want %d", a.TimeExtensionMs, want)
	}

	if err := a.ExtendTime(-5); err == nil {
		t.Error("negative extension accepted")
	}

	end := now
	done := &Attempt{Status: AttemptStatusCompleted, EndTime: &end}
	if err := done.ExtendTime(5); !errors.Is(err, ErrAttemptCompleted) {
		t.Errorf("extend completed = %v, want ErrAttemptCompleted", err)
	}

	// Only a running clock can be extended.
	untouched := &Attempt{Status: AttemptStatusNotStarted}
	if err := untouched.ExtendTime(5); !errors.Is(err, ErrAttemptNotRunning) {
		t.Errorf("extend not-started = %v, want ErrAttemptNotRunning", err)
	}
	paused := &Attempt{Status: AttemptStatusPaused, IsPaused: true}
	if err := paused.ExtendTime(5); !errors.Is(err, ErrAttemptNotRunning) {
		t.Errorf("extend paused = %v, want ErrAttemptNotRunning", err)
	}
}

func TestResetForRetry(t *testing.T) {
	end := now.Add(time.Hour)
	a := &Attempt{
		Status:         AttemptStatusCompleted,
		StartTime:      &now,
		EndTime:        &end,
		AttemptCount:   1,
		AttemptNumber:  1,
		Grade:          74.5,
		GradeStatus:    GradeStatusPassed,
		ViolationCount: 2,
		IsFlagged:      true,
	}
	a.ResetForRetry()

	if a.Status != AttemptStatusNotStarted {
		t.Errorf("Status = %s, want NOT_STARTED", a.Status)
	}
	if a.StartTime != nil || a.EndTime != nil {
		t.Error("timing not cleared")
	}
	if a.AttemptNumber != 2 {
		t.Errorf("AttemptNumber = %d, want 2", a.AttemptNumber)
	}
	if a.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1 (preserved)", a.AttemptCount)
	}
	if a.ViolationCount != 0 || a.IsFlagged {
		t.Error("violation bookkeeping not cleared")
	}
	if a.Grade != 0 || a.GradeStatus != GradeStatusPending {
		t.Error("scoring outputs not cleared")
	}
}

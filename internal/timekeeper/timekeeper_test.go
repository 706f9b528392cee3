package timekeeper

import (
	"errors"
	"testing"
	"time"

	"github.com/provalab/examguard-backend/internal/model"
)

var base = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func window(start, end time.Time) *model.SessionWindow {
	return &model.SessionWindow{StartsAt: start, EndsAt: end}
}

func runningAttempt(start time.Time, durationMin int) *model.Attempt {
	s := start
	return &model.Attempt{
		Status:            model.AttemptStatusInProgress,
		StartTime:         &s,
		DurationAllowedMs: int64(durationMin) * 60_000,
		AttemptCount:      1,
	}
}

func TestRemaining_NotYetOpen(t *testing.T) {
	att := &model.Attempt{Status: model.AttemptStatusNotStarted}
	win := window(base, base.Add(2*time.Hour))

	_, err := Remaining(att, win, base.Add(-time.Minute))
	if !errors.Is(err, ErrNotYetOpen) {
		t.Fatalf("err = %v, want ErrNotYetOpen", err)
	}
}

func TestRemaining_NotStartedInsideOpenWindow(t *testing.T) {
	// A joined-but-untouched attempt has no start_time and no frozen
	// duration yet. It must not read as expired, or the first Start or
	// Heartbeat after joining would finalize it at grade zero.
	att := &model.Attempt{Status: model.AttemptStatusNotStarted}
	win := window(base, base.Add(2*time.Hour))

	got, err := Remaining(att, win, base.Add(15*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got.Expired {
		t.Error("Expired = true, want false for not-started attempt in open window")
	}
	if want := int64(105 * 60_000); got.RemainingMs != want {
		t.Errorf("RemainingMs = %d, want window remainder %d", got.RemainingMs, want)
	}
	if !got.Deadline.Equal(win.EndsAt) {
		t.Errorf("Deadline = %v, want window end %v", got.Deadline, win.EndsAt)
	}
}

func TestRemaining_NotStartedAfterWindowCloses(t *testing.T) {
	// Never started and the window is over: the attempt is expired and the
	// caller finalizes it with whatever (nothing) was answered.
	att := &model.Attempt{Status: model.AttemptStatusNotStarted}
	win := window(base, base.Add(time.Hour))

	got, err := Remaining(att, win, base.Add(61*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Expired {
		t.Error("Expired = false, want true once the window has closed")
	}
}

func TestRemaining_SimpleCountdown(t *testing.T) {
	att := runningAttempt(base, 60)
	win := window(base, base.Add(3*time.Hour))

	got, err := Remaining(att, win, base.Add(20*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(40 * 60_000); got.RemainingMs != want {
		t.Errorf("RemainingMs = %d, want %d", got.RemainingMs, want)
	}
	if got.Expired {
		t.Error("Expired = true, want false")
	}
}

func TestRemaining_ExpiredPastDuration(t *testing.T) {
	// 60 minute attempt queried at start+61min must report expiry.
	att := runningAttempt(base, 60)
	win := window(base, base.Add(3*time.Hour))

	got, err := Remaining(att, win, base.Add(61*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Expired {
		t.Error("Expired = false, want true")
	}
	if got.RemainingMs != 0 {
		t.Errorf("RemainingMs = %d, want 0", got.RemainingMs)
	}
}

func TestRemaining_ClampedBySessionWindow(t *testing.T) {
	// 120 minutes allowed but the window closes after 30.
	att := runningAttempt(base, 120)
	win := window(base, base.Add(30*time.Minute))

	got, err := Remaining(att, win, base.Add(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(20 * 60_000); got.RemainingMs != want {
		t.Errorf("RemainingMs = %d, want %d", got.RemainingMs, want)
	}
	if !got.Deadline.Equal(win.EndsAt) {
		t.Errorf("Deadline = %v, want window end %v", got.Deadline, win.EndsAt)
	}
}

func TestRemaining_ExtensionAddsTime(t *testing.T) {
	att := runningAttempt(base, 60)
	att.TimeExtensionMs = 15 * 60_000
	win := window(base, base.Add(3*time.Hour))

	got, err := Remaining(att, win, base.Add(60*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(15 * 60_000); got.RemainingMs != want {
		t.Errorf("RemainingMs = %d, want %d", got.RemainingMs, want)
	}
}

func TestRemaining_ExtensionCannotPassWindow(t *testing.T) {
	att := runningAttempt(base, 60)
	att.TimeExtensionMs = 10 * 60 * 60_000
	win := window(base, base.Add(90*time.Minute))

	got, err := Remaining(att, win, base.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(60 * 60_000); got.RemainingMs != want {
		t.Errorf("RemainingMs = %d, want %d", got.RemainingMs, want)
	}
}

func TestRemaining_PauseFreezesClock(t *testing.T) {
	// Pausing for 10 minutes must not reduce remaining by more than the
	// wall-clock time actually spent unpaused.
	att := runningAttempt(base, 60)
	win := window(base, base.Add(5*time.Hour))

	// 20 minutes in, pause.
	if err := att.Pause(base.Add(20*time.Minute), "network outage"); err != nil {
		t.Fatal(err)
	}

	// While paused, remaining stays frozen at 40 minutes.
	got, err := Remaining(att, win, base.Add(25*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(40 * 60_000); got.RemainingMs != want {
		t.Errorf("paused RemainingMs = %d, want %d", got.RemainingMs, want)
	}

	// Resume after 10 paused minutes; 5 more unpaused minutes elapse.
	if err := att.Resume(base.Add(30 * time.Minute)); err != nil {
		t.Fatal(err)
	}
	got, err = Remaining(att, win, base.Add(35*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(35 * 60_000); got.RemainingMs != want {
		t.Errorf("resumed RemainingMs = %d, want %d", got.RemainingMs, want)
	}
}

func TestRemaining_PauseDoesNotExtendPastWindow(t *testing.T) {
	att := runningAttempt(base, 60)
	win := window(base, base.Add(70*time.Minute))

	if err := att.Pause(base.Add(10*time.Minute), "proctor hold"); err != nil {
		t.Fatal(err)
	}
	if err := att.Resume(base.Add(40 * time.Minute)); err != nil {
		t.Fatal(err)
	}

	// 30 paused minutes would push the deadline to start+90min, but the
	// window closes at +70min.
	got, err := Remaining(att, win, base.Add(50*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(20 * 60_000); got.RemainingMs != want {
		t.Errorf("RemainingMs = %d, want %d", got.RemainingMs, want)
	}
}

func TestRemaining_CompletedIsExpired(t *testing.T) {
	att := runningAttempt(base, 60)
	end := base.Add(30 * time.Minute)
	att.EndTime = &end
	win := window(base, base.Add(2*time.Hour))

	got, err := Remaining(att, win, base.Add(31*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Expired {
		t.Error("Expired = false, want true for completed attempt")
	}
}

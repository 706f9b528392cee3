// Package timekeeper computes the server-authoritative remaining duration
// of an attempt. The client clock is never trusted: every request that
// touches an attempt re-runs this computation from server timestamps.
package timekeeper

import (
	"errors"
	"time"

	"github.com/provalab/examguard-backend/internal/model"
)

// ErrNotYetOpen is returned when the session window has not opened yet.
// Distinct from expiry: the caller redirects to a waiting view, not to
// finalize.
var ErrNotYetOpen = errors.New("session window is not yet open")

// Result is the reconciliation outcome. When Expired is true the caller
// MUST finalize the attempt before returning to the client — there is no
// "expired but still open" state.
type Result struct {
	RemainingMs int64
	Deadline    time.Time
	Expired     bool
}

// Remaining reconciles attempt state, session window, extension grants and
// accumulated pauses against the current server time.
//
// Effective deadline = min(start + allowed + extension + paused, window end).
// Pauses stop the clock (the deadline slides forward by the paused wall
// time) but never extend the attempt past the session window.
func Remaining(att *model.Attempt, win *model.SessionWindow, now time.Time) (Result, error) {
	if now.Before(win.StartsAt) {
		return Result{}, ErrNotYetOpen
	}

	if att.Completed() {
		return Result{Expired: true}, nil
	}

	// The clock only starts at first touch. Until then the attempt has no
	// duration of its own and only the window bound applies: an untouched
	// attempt expires when the window closes, never before.
	if att.StartTime == nil {
		remaining := win.EndsAt.Sub(now).Milliseconds()
		if remaining <= 0 {
			return Result{RemainingMs: 0, Deadline: win.EndsAt, Expired: true}, nil
		}
		return Result{RemainingMs: remaining, Deadline: win.EndsAt}, nil
	}
	start := *att.StartTime

	pausedMs := att.PauseTotalMs
	if att.IsPaused && att.PausedAt != nil {
		pausedMs += now.Sub(*att.PausedAt).Milliseconds()
	}

	allowedMs := att.DurationAllowedMs + att.TimeExtensionMs
	deadline := start.Add(time.Duration(allowedMs+pausedMs) * time.Millisecond)
	if deadline.After(win.EndsAt) {
		deadline = win.EndsAt
	}

	remaining := deadline.Sub(now).Milliseconds()
	if remaining <= 0 {
		return Result{RemainingMs: 0, Deadline: deadline, Expired: true}, nil
	}
	return Result{RemainingMs: remaining, Deadline: deadline}, nil
}

package ht

import (
	"time"

	"ht-go/internal/model"
)

// ElapsedSeconds returns how long the session has been running: wall time since
// start minus accumulated paused time, floored at zero.
//
// The reference instant is now for an active session, the pause timestamp for a
// paused one and the end timestamp for a finished one. A session without a start
// timestamp has elapsed nothing.
func ElapsedSeconds(s *model.FocusSession, now time.Time) int64 {
	if s == nil || s.StartTime.IsZero() {
		return 0
	}

	ref := now
	switch {
	case s.Status == model.StatusPaused && s.PauseTime != nil:
		ref = *s.PauseTime
	case !s.Status.IsOpen() && s.EndTime != nil:
		ref = *s.EndTime
	}

	elapsed := int64(ref.Sub(s.StartTime)/time.Second) - s.PausedDurationSeconds
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// TimeLeftSeconds returns the planned duration minus elapsed time, floored at zero.
func TimeLeftSeconds(s *model.FocusSession, now time.Time) int64 {
	if s == nil {
		return 0
	}
	left := PlannedSeconds(s.PlannedDurationMinutes) - ElapsedSeconds(s, now)
	if left < 0 {
		return 0
	}
	return left
}

// ProgressPercent returns how much of total has been consumed, in [0, 100].
func ProgressPercent(timeLeft, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(total-timeLeft) / float64(total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// PlannedSeconds converts a planned duration in minutes to seconds.
// Negative durations count as zero.
func PlannedSeconds(minutes int) int64 {
	if minutes <= 0 {
		return 0
	}
	return int64(minutes) * 60
}

package ht

import (
	"time"

	"ht-go/internal/model"
)

// DefaultPlannedMinutes is the countdown length shown when there is no session
// and nothing else was configured.
const DefaultPlannedMinutes = 25

// Snapshot is the derived view of timer state. It is recomputed from the latest
// session whenever needed and is never authoritative on its own.
type Snapshot struct {
	TimeLeft         int64   `json:"timeLeft" yaml:"time_left"`
	TotalDuration    int64   `json:"totalDuration" yaml:"total_duration"`
	IsRunning        bool    `json:"isRunning" yaml:"is_running"`
	Progress         float64 `json:"progress" yaml:"progress"`
	HasActiveSession bool    `json:"hasActiveSession" yaml:"has_active_session"`
}

// ResolveSnapshot derives the timer snapshot for an optional active session.
// With no session the countdown sits at the full fallback duration.
func ResolveSnapshot(active *model.FocusSession, fallbackPlannedMinutes int, now time.Time) Snapshot {
	if active == nil {
		total := PlannedSeconds(fallbackPlannedMinutes)
		return Snapshot{
			TimeLeft:      total,
			TotalDuration: total,
		}
	}

	total := PlannedSeconds(active.PlannedDurationMinutes)
	left := TimeLeftSeconds(active, now)
	if left > total {
		left = total
	}

	return Snapshot{
		TimeLeft:         left,
		TotalDuration:    total,
		IsRunning:        active.Status == model.StatusActive,
		Progress:         ProgressPercent(left, total),
		HasActiveSession: true,
	}
}

package ht

import (
	"testing"
	"time"

	"ht-go/internal/model"
)

func TestResolveSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		active   *model.FocusSession
		fallback int
		want     Snapshot
	}{
		{
			name:     "no session uses the fallback",
			active:   nil,
			fallback: 25,
			want:     Snapshot{TimeLeft: 1500, TotalDuration: 1500},
		},
		{
			name:     "custom fallback",
			active:   nil,
			fallback: 50,
			want:     Snapshot{TimeLeft: 3000, TotalDuration: 3000},
		},
		{
			name: "active session part-way",
			active: &model.FocusSession{
				Status:                 model.StatusActive,
				PlannedDurationMinutes: 25,
				StartTime:              now.Add(-600 * time.Second),
			},
			fallback: 25,
			want: Snapshot{
				TimeLeft:         900,
				TotalDuration:    1500,
				IsRunning:        true,
				Progress:         40,
				HasActiveSession: true,
			},
		},
		{
			name: "paused session is not running",
			active: &model.FocusSession{
				Status:                 model.StatusPaused,
				PlannedDurationMinutes: 10,
				StartTime:              now.Add(-10 * time.Minute),
				PauseTime:              ptr(now.Add(-5 * time.Minute)),
			},
			fallback: 25,
			want: Snapshot{
				TimeLeft:         300,
				TotalDuration:    600,
				Progress:         50,
				HasActiveSession: true,
			},
		},
		{
			name: "overdue session",
			active: &model.FocusSession{
				Status:                 model.StatusActive,
				PlannedDurationMinutes: 25,
				StartTime:              now.Add(-time.Hour),
			},
			fallback: 25,
			want: Snapshot{
				TimeLeft:         0,
				TotalDuration:    1500,
				IsRunning:        true,
				Progress:         100,
				HasActiveSession: true,
			},
		},
		{
			name: "start in the future is clamped to the planned total",
			active: &model.FocusSession{
				Status:                 model.StatusActive,
				PlannedDurationMinutes: 25,
				StartTime:              now.Add(time.Hour),
			},
			fallback: 25,
			want: Snapshot{
				TimeLeft:         1500,
				TotalDuration:    1500,
				IsRunning:        true,
				HasActiveSession: true,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveSnapshot(tt.active, tt.fallback, now)
			if got != tt.want {
				t.Errorf("ResolveSnapshot() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveSnapshot_Invariants(t *testing.T) {
	t.Parallel()

	for elapsed := 0; elapsed <= 2000; elapsed += 37 {
		s := &model.FocusSession{
			Status:                 model.StatusActive,
			PlannedDurationMinutes: 25,
			StartTime:              now.Add(-time.Duration(elapsed) * time.Second),
		}
		got := ResolveSnapshot(s, 25, now)
		if got.TimeLeft < 0 || got.TimeLeft > got.TotalDuration {
			t.Fatalf("elapsed %d: time left %d outside [0, %d]", elapsed, got.TimeLeft, got.TotalDuration)
		}
		if got.Progress < 0 || got.Progress > 100 {
			t.Fatalf("elapsed %d: progress %v outside [0, 100]", elapsed, got.Progress)
		}
	}
}

package ht

import (
	"context"

	"ht-go/internal/model"
)

// SessionSource returns the signed-in user's open focus session.
// It returns nil, nil when there is no Active or Paused session.
type SessionSource interface {
	ActiveSession(ctx context.Context) (*model.FocusSession, error)
}

// StartSessionRequest holds the parameters for starting a focus session.
type StartSessionRequest struct {
	HabitID                string  `json:"habitId"`
	PlannedDurationMinutes int     `json:"plannedDurationMinutes"`
	Notes                  *string `json:"notes,omitempty"`
}

// SessionAPI is the backend's focus-session surface. Every action returns the
// updated session record.
type SessionAPI interface {
	SessionSource

	StartSession(ctx context.Context, req StartSessionRequest) (*model.FocusSession, error)
	PauseSession(ctx context.Context, id string) (*model.FocusSession, error)
	ResumeSession(ctx context.Context, id string) (*model.FocusSession, error)
	// CompleteSession finishes the session. notes, when non-nil, replaces the session notes.
	CompleteSession(ctx context.Context, id string, notes *string) (*model.FocusSession, error)
	CancelSession(ctx context.Context, id string) (*model.FocusSession, error)

	// ListSessions returns a page of sessions. query is an OData query string
	// as produced by odata.Builder.Build, or empty.
	ListSessions(ctx context.Context, query string) (*model.Page[model.FocusSession], error)
}

// CreateHabitRequest holds the parameters for creating a habit.
type CreateHabitRequest struct {
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	DefaultFocusMinutes int    `json:"defaultFocusMinutes,omitempty"`
}

// HabitAPI is the backend's habit surface.
type HabitAPI interface {
	ListHabits(ctx context.Context, query string) (*model.Page[model.Habit], error)
	GetHabit(ctx context.Context, id string) (*model.Habit, error)
	CreateHabit(ctx context.Context, req CreateHabitRequest) (*model.Habit, error)
	// DeleteHabit archives the habit; its sessions are kept.
	DeleteHabit(ctx context.Context, id string) error
}

package ht

import (
	"context"

	"ht-go/internal/model"
	"ht-go/internal/odata"
)

// Database is the persistence layer behind the local backend. Lifecycle
// methods enforce the session state machine and return ErrNotFound,
// ErrSessionConflict or ErrInvalidTransition (wrapped) when it is violated.
type Database interface {
	ActiveSession(ctx context.Context) (*model.FocusSession, error)
	FindSession(ctx context.Context, id string) (*model.FocusSession, error)
	StartSession(ctx context.Context, req StartSessionRequest) (*model.FocusSession, error)
	PauseSession(ctx context.Context, id string) (*model.FocusSession, error)
	ResumeSession(ctx context.Context, id string) (*model.FocusSession, error)
	CompleteSession(ctx context.Context, id string, notes *string) (*model.FocusSession, error)
	CancelSession(ctx context.Context, id string) (*model.FocusSession, error)
	ListSessions(ctx context.Context, q *odata.Query) (*model.Page[model.FocusSession], error)
	SessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error)

	ListHabits(ctx context.Context, q *odata.Query) (*model.Page[model.Habit], error)
	GetHabit(ctx context.Context, id string) (*model.Habit, error)
	CreateHabit(ctx context.Context, req CreateHabitRequest) (*model.Habit, error)
	ArchiveHabit(ctx context.Context, id string) error

	// BackupTo writes a consistent copy of the whole database to destPath.
	BackupTo(destPath string) error
	CheckMigrations() error
	Close() error
}

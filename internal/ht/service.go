package ht

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ht-go/internal/model"
	"ht-go/internal/odata"
)

// HTService is the orchestration layer between the CLI and the backend API.
// It resolves the open session for lifecycle actions, fills in defaults and
// builds list queries.
type HTService struct {
	sessions        SessionAPI
	habits          HabitAPI
	logger          Logger
	clock           Clock
	loc             *time.Location
	fallbackMinutes int
}

// NewHTService creates a new HTService. fallbackMinutes is the planned
// duration used when neither the caller nor the habit specifies one.
func NewHTService(sessions SessionAPI, habits HabitAPI, logger Logger, clock Clock, fallbackMinutes int) *HTService {
	if fallbackMinutes <= 0 {
		fallbackMinutes = DefaultPlannedMinutes
	}
	return &HTService{
		sessions:        sessions,
		habits:          habits,
		logger:          logger,
		clock:           clock,
		loc:             time.Local,
		fallbackMinutes: fallbackMinutes,
	}
}

// SetLocation sets the time zone used for calendar days. The default is time.Local.
func (s *HTService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// FallbackMinutes returns the planned duration used when nothing else applies.
func (s *HTService) FallbackMinutes() int {
	return s.fallbackMinutes
}

// ActiveSession returns the open session, or nil if there is none.
func (s *HTService) ActiveSession(ctx context.Context) (*model.FocusSession, error) {
	session, err := s.sessions.ActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching active session: %w", err)
	}
	return session, nil
}

// Status returns the open session (possibly nil) together with its resolved snapshot.
func (s *HTService) Status(ctx context.Context) (*model.FocusSession, Snapshot, error) {
	session, err := s.ActiveSession(ctx)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return session, ResolveSnapshot(session, s.fallbackMinutes, s.clock.Now()), nil
}

// Start begins a focus session on a habit. A non-positive minutes falls back
// to the habit's default focus length and then to the configured fallback.
func (s *HTService) Start(ctx context.Context, habitID string, minutes int, notes *string) (*model.FocusSession, error) {
	habitID = strings.TrimSpace(habitID)
	if habitID == "" {
		return nil, fmt.Errorf("%w: habit id is required", ErrInvalidInput)
	}

	if minutes <= 0 {
		habit, err := s.habits.GetHabit(ctx, habitID)
		if err != nil {
			return nil, fmt.Errorf("fetching habit: %w", err)
		}
		minutes = habit.DefaultFocusMinutes
		if minutes <= 0 {
			minutes = s.fallbackMinutes
		}
	}

	session, err := s.sessions.StartSession(ctx, StartSessionRequest{
		HabitID:                habitID,
		PlannedDurationMinutes: minutes,
		Notes:                  notes,
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	s.logger.Info("focus session started", "session", session.ID, "habit", habitID, "minutes", minutes)
	return session, nil
}

// Pause pauses the open session. It must be Active.
func (s *HTService) Pause(ctx context.Context) (*model.FocusSession, error) {
	return s.transition(ctx, model.ActionPause, s.sessions.PauseSession, model.StatusActive)
}

// Resume resumes the open session. It must be Paused.
func (s *HTService) Resume(ctx context.Context) (*model.FocusSession, error) {
	return s.transition(ctx, model.ActionResume, s.sessions.ResumeSession, model.StatusPaused)
}

// Complete finishes the open session, optionally replacing its notes.
func (s *HTService) Complete(ctx context.Context, notes *string) (*model.FocusSession, error) {
	complete := func(ctx context.Context, id string) (*model.FocusSession, error) {
		return s.sessions.CompleteSession(ctx, id, notes)
	}
	return s.transition(ctx, model.ActionComplete, complete, model.StatusActive, model.StatusPaused)
}

// Cancel interrupts the open session.
func (s *HTService) Cancel(ctx context.Context) (*model.FocusSession, error) {
	return s.transition(ctx, model.ActionCancel, s.sessions.CancelSession, model.StatusActive, model.StatusPaused)
}

// transition applies action to the open session after checking its status
// locally, so the common mistakes fail without a round trip.
func (s *HTService) transition(
	ctx context.Context,
	action model.SessionAction,
	apply func(ctx context.Context, id string) (*model.FocusSession, error),
	from ...model.SessionStatus,
) (*model.FocusSession, error) {
	active, err := s.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveSession
	}

	allowed := false
	for _, st := range from {
		if active.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: cannot %s a %s session", ErrInvalidTransition, action, active.Status)
	}

	updated, err := apply(ctx, active.ID)
	if err != nil {
		return nil, fmt.Errorf("%s session %s: %w", action, active.ID, err)
	}

	s.logger.Info("focus session updated", "session", updated.ID, "action", string(action), "status", string(updated.Status))
	return updated, nil
}

// Habits lists habits by name. Archived habits are left out unless includeArchived is set.
func (s *HTService) Habits(ctx context.Context, includeArchived bool) ([]model.Habit, error) {
	b := odata.NewBuilder(odata.WithLocation(s.loc)).OrderBy("name asc")
	if !includeArchived {
		b.FilterConditions([]odata.Condition{{Field: "archivedAt", Operator: odata.Eq, Value: nil}}, odata.And)
	}
	query, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building habit query: %w", err)
	}

	page, err := s.habits.ListHabits(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing habits: %w", err)
	}
	return page.Value, nil
}

// Habit returns one habit.
func (s *HTService) Habit(ctx context.Context, id string) (*model.Habit, error) {
	habit, err := s.habits.GetHabit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching habit %s: %w", id, err)
	}
	return habit, nil
}

// AddHabit creates a habit.
func (s *HTService) AddHabit(ctx context.Context, req CreateHabitRequest) (*model.Habit, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: habit name is required", ErrInvalidInput)
	}
	if req.DefaultFocusMinutes < 0 {
		return nil, fmt.Errorf("%w: default focus minutes must not be negative: %d", ErrInvalidInput, req.DefaultFocusMinutes)
	}

	habit, err := s.habits.CreateHabit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating habit: %w", err)
	}

	s.logger.Info("habit created", "habit", habit.ID, "name", habit.Name)
	return habit, nil
}

// ArchiveHabit archives a habit. Its sessions are kept.
func (s *HTService) ArchiveHabit(ctx context.Context, id string) error {
	if err := s.habits.DeleteHabit(ctx, id); err != nil {
		return fmt.Errorf("archiving habit %s: %w", id, err)
	}
	s.logger.Info("habit archived", "habit", id)
	return nil
}

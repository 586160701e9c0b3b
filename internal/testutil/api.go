package testutil

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/odata"
)

// FakeAPI is an in-memory ht.SessionAPI and ht.HabitAPI. List calls ignore
// $filter but honour $top and $skip, and every query string is recorded.
type FakeAPI struct {
	mu    sync.Mutex
	clock ht.Clock
	idgen ht.IDGenerator

	Sessions []model.FocusSession
	Habits   []model.Habit

	// Err, when set, is returned by every call.
	Err error

	SessionQueries []string
	HabitQueries   []string
}

var (
	_ ht.SessionAPI = (*FakeAPI)(nil)
	_ ht.HabitAPI   = (*FakeAPI)(nil)
)

// NewFakeAPI creates an empty FakeAPI stamping times from clock.
func NewFakeAPI(clock ht.Clock) *FakeAPI {
	return &FakeAPI{clock: clock, idgen: NewStubIDGenerator()}
}

func (f *FakeAPI) ActiveSession(context.Context) (*model.FocusSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := range f.Sessions {
		if f.Sessions[i].Status.IsOpen() {
			s := f.Sessions[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (f *FakeAPI) StartSession(_ context.Context, req ht.StartSessionRequest) (*model.FocusSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for _, s := range f.Sessions {
		if s.Status.IsOpen() {
			return nil, ht.ErrSessionConflict
		}
	}
	s := model.FocusSession{
		ID:                     f.idgen.New(),
		HabitID:                req.HabitID,
		Status:                 model.StatusActive,
		PlannedDurationMinutes: req.PlannedDurationMinutes,
		StartTime:              f.clock.Now(),
		Notes:                  req.Notes,
	}
	f.Sessions = append(f.Sessions, s)
	return &s, nil
}

func (f *FakeAPI) PauseSession(_ context.Context, id string) (*model.FocusSession, error) {
	return f.apply(id, model.ActionPause, nil)
}

func (f *FakeAPI) ResumeSession(_ context.Context, id string) (*model.FocusSession, error) {
	return f.apply(id, model.ActionResume, nil)
}

func (f *FakeAPI) CompleteSession(_ context.Context, id string, notes *string) (*model.FocusSession, error) {
	return f.apply(id, model.ActionComplete, notes)
}

func (f *FakeAPI) CancelSession(_ context.Context, id string) (*model.FocusSession, error) {
	return f.apply(id, model.ActionCancel, nil)
}

func (f *FakeAPI) apply(id string, action model.SessionAction, notes *string) (*model.FocusSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := range f.Sessions {
		if f.Sessions[i].ID != id {
			continue
		}
		if err := ht.ApplyAction(&f.Sessions[i], action, f.clock.Now()); err != nil {
			return nil, err
		}
		if notes != nil {
			f.Sessions[i].Notes = notes
		}
		s := f.Sessions[i]
		return &s, nil
	}
	return nil, fmt.Errorf("session %s: %w", id, ht.ErrNotFound)
}

func (f *FakeAPI) ListSessions(_ context.Context, query string) (*model.Page[model.FocusSession], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SessionQueries = append(f.SessionQueries, query)
	if f.Err != nil {
		return nil, f.Err
	}
	value, count, err := paginate(f.Sessions, query)
	if err != nil {
		return nil, err
	}
	return &model.Page[model.FocusSession]{Value: value, Count: &count}, nil
}

func (f *FakeAPI) ListHabits(_ context.Context, query string) (*model.Page[model.Habit], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HabitQueries = append(f.HabitQueries, query)
	if f.Err != nil {
		return nil, f.Err
	}
	value, count, err := paginate(f.Habits, query)
	if err != nil {
		return nil, err
	}
	return &model.Page[model.Habit]{Value: value, Count: &count}, nil
}

func (f *FakeAPI) GetHabit(_ context.Context, id string) (*model.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for _, h := range f.Habits {
		if h.ID == id {
			return &h, nil
		}
	}
	return nil, fmt.Errorf("habit %s: %w", id, ht.ErrNotFound)
}

func (f *FakeAPI) CreateHabit(_ context.Context, req ht.CreateHabitRequest) (*model.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	h := model.Habit{
		ID:                  f.idgen.New(),
		Name:                req.Name,
		Description:         req.Description,
		DefaultFocusMinutes: req.DefaultFocusMinutes,
		CreatedAt:           f.clock.Now(),
	}
	f.Habits = append(f.Habits, h)
	return &h, nil
}

func (f *FakeAPI) DeleteHabit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := range f.Habits {
		if f.Habits[i].ID == id {
			now := f.clock.Now()
			f.Habits[i].ArchivedAt = &now
			return nil
		}
	}
	return fmt.Errorf("habit %s: %w", id, ht.ErrNotFound)
}

func paginate[T any](all []T, query string) ([]T, int64, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return nil, 0, err
	}
	q, err := odata.ParseQuery(values)
	if err != nil {
		return nil, 0, err
	}

	count := int64(len(all))
	start := min(q.Skip, len(all))
	end := len(all)
	if q.Top > 0 {
		end = min(start+q.Top, len(all))
	}
	out := make([]T, end-start)
	copy(out, all[start:end])
	return out, count, nil
}

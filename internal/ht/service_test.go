package ht_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/testutil"
)

func newService(t *testing.T) (*ht.HTService, *testutil.FakeAPI, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	api := testutil.NewFakeAPI(clock)
	svc := ht.NewHTService(api, api, ht.NewNopLogger(), clock, 25)
	svc.SetLocation(time.UTC)
	return svc, api, clock
}

func TestHTService_Start(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("explicit minutes", func(t *testing.T) {
		t.Parallel()
		svc, api, clock := newService(t)
		api.Habits = []model.Habit{{ID: "h-1", Name: "Write", DefaultFocusMinutes: 50}}

		s, err := svc.Start(ctx, "h-1", 10, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if s.PlannedDurationMinutes != 10 {
			t.Errorf("PlannedDurationMinutes = %d, want 10", s.PlannedDurationMinutes)
		}
		if s.Status != model.StatusActive {
			t.Errorf("Status = %q, want %q", s.Status, model.StatusActive)
		}
		if !s.StartTime.Equal(clock.Now()) {
			t.Errorf("StartTime = %v, want %v", s.StartTime, clock.Now())
		}
	})

	t.Run("defaults to the habit's focus length", func(t *testing.T) {
		t.Parallel()
		svc, api, _ := newService(t)
		api.Habits = []model.Habit{{ID: "h-1", Name: "Write", DefaultFocusMinutes: 50}}

		s, err := svc.Start(ctx, "h-1", 0, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if s.PlannedDurationMinutes != 50 {
			t.Errorf("PlannedDurationMinutes = %d, want 50", s.PlannedDurationMinutes)
		}
	})

	t.Run("falls back when the habit has no default", func(t *testing.T) {
		t.Parallel()
		svc, api, _ := newService(t)
		api.Habits = []model.Habit{{ID: "h-1", Name: "Write"}}

		s, err := svc.Start(ctx, "h-1", 0, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if s.PlannedDurationMinutes != 25 {
			t.Errorf("PlannedDurationMinutes = %d, want 25", s.PlannedDurationMinutes)
		}
	})

	t.Run("unknown habit", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		_, err := svc.Start(ctx, "missing", 0, nil)
		if !errors.Is(err, ht.ErrNotFound) {
			t.Errorf("Start() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("blank habit", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		if _, err := svc.Start(ctx, "  ", 10, nil); err == nil {
			t.Error("expected error for blank habit id")
		}
	})

	t.Run("conflicts with an open session", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newService(t)

		if _, err := svc.Start(ctx, "h-1", 10, nil); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		_, err := svc.Start(ctx, "h-1", 10, nil)
		if !errors.Is(err, ht.ErrSessionConflict) {
			t.Errorf("second Start() error = %v, want ErrSessionConflict", err)
		}
	})
}

func TestHTService_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, clock := newService(t)

	if _, err := svc.Start(ctx, "h-1", 25, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clock.Advance(10 * time.Minute)
	paused, err := svc.Pause(ctx)
	if err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if paused.Status != model.StatusPaused {
		t.Errorf("Status = %q, want %q", paused.Status, model.StatusPaused)
	}

	if _, err := svc.Pause(ctx); !errors.Is(err, ht.ErrInvalidTransition) {
		t.Errorf("second Pause() error = %v, want ErrInvalidTransition", err)
	}

	clock.Advance(5 * time.Minute)
	resumed, err := svc.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.PausedDurationSeconds != 300 {
		t.Errorf("PausedDurationSeconds = %d, want 300", resumed.PausedDurationSeconds)
	}

	_, snap, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if snap.TimeLeft != 900 || !snap.IsRunning || !snap.HasActiveSession {
		t.Errorf("Status() snapshot = %+v, want 900s left and running", snap)
	}

	clock.Advance(15 * time.Minute)
	notes := "done"
	done, err := svc.Complete(ctx, &notes)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if done.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", done.Status, model.StatusCompleted)
	}
	if done.ActualDurationSeconds == nil || *done.ActualDurationSeconds != 1500 {
		t.Errorf("ActualDurationSeconds = %v, want 1500", done.ActualDurationSeconds)
	}
	if done.Notes == nil || *done.Notes != "done" {
		t.Errorf("Notes = %v, want %q", done.Notes, "done")
	}

	if _, err := svc.Cancel(ctx); !errors.Is(err, ht.ErrNoActiveSession) {
		t.Errorf("Cancel() after complete error = %v, want ErrNoActiveSession", err)
	}
}

func TestHTService_ResumeRequiresPaused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newService(t)

	if _, err := svc.Start(ctx, "h-1", 25, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.Resume(ctx); !errors.Is(err, ht.ErrInvalidTransition) {
		t.Errorf("Resume() error = %v, want ErrInvalidTransition", err)
	}

	cancelled, err := svc.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != model.StatusInterrupted {
		t.Errorf("Status = %q, want %q", cancelled.Status, model.StatusInterrupted)
	}
}

func TestHTService_StatusWithoutSession(t *testing.T) {
	t.Parallel()
	svc, _, _ := newService(t)

	session, snap, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if session != nil {
		t.Errorf("session = %+v, want nil", session)
	}
	want := ht.Snapshot{TimeLeft: 1500, TotalDuration: 1500}
	if snap != want {
		t.Errorf("snapshot = %+v, want %+v", snap, want)
	}
}

func TestHTService_BackendErrorsAreWrapped(t *testing.T) {
	t.Parallel()
	svc, api, _ := newService(t)
	boom := errors.New("connection refused")
	api.Err = boom

	if _, err := svc.ActiveSession(context.Background()); !errors.Is(err, boom) {
		t.Errorf("ActiveSession() error = %v, want wrapped %v", err, boom)
	}
	if _, err := svc.Pause(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Pause() error = %v, want wrapped %v", err, boom)
	}
}

func TestHTService_Habits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, api, _ := newService(t)

	h, err := svc.AddHabit(ctx, ht.CreateHabitRequest{Name: "  Read  ", DefaultFocusMinutes: 30})
	if err != nil {
		t.Fatalf("AddHabit() error = %v", err)
	}
	if h.Name != "Read" {
		t.Errorf("Name = %q, want %q", h.Name, "Read")
	}

	if _, err := svc.AddHabit(ctx, ht.CreateHabitRequest{Name: ""}); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := svc.AddHabit(ctx, ht.CreateHabitRequest{Name: "x", DefaultFocusMinutes: -1}); err == nil {
		t.Error("expected error for negative minutes")
	}

	if _, err := svc.Habits(ctx, false); err != nil {
		t.Fatalf("Habits() error = %v", err)
	}
	if _, err := svc.Habits(ctx, true); err != nil {
		t.Fatalf("Habits(true) error = %v", err)
	}
	wantQueries := []string{
		"?$filter=archivedAt%20eq%20null&$orderby=name%20asc",
		"?$orderby=name%20asc",
	}
	if len(api.HabitQueries) != len(wantQueries) {
		t.Fatalf("got %d habit queries, want %d", len(api.HabitQueries), len(wantQueries))
	}
	for i, want := range wantQueries {
		if api.HabitQueries[i] != want {
			t.Errorf("query[%d] = %q, want %q", i, api.HabitQueries[i], want)
		}
	}

	if err := svc.ArchiveHabit(ctx, h.ID); err != nil {
		t.Fatalf("ArchiveHabit() error = %v", err)
	}
	got, err := svc.Habit(ctx, h.ID)
	if err != nil {
		t.Fatalf("Habit() error = %v", err)
	}
	if got.ArchivedAt == nil {
		t.Error("expected ArchivedAt to be set")
	}

	if err := svc.ArchiveHabit(ctx, "missing"); !errors.Is(err, ht.ErrNotFound) {
		t.Errorf("ArchiveHabit(missing) error = %v, want ErrNotFound", err)
	}
}

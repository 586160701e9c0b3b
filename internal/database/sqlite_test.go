package database_test

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"ht-go/internal/database"
	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/odata"
	"ht-go/internal/testutil"
)

// newTestDB creates a new in-memory database with the schema applied.
func newTestDB(t *testing.T) (*database.SQLiteDatabase, *testutil.StubClock) {
	t.Helper()

	clock := testutil.FixedClock()
	db, err := database.NewSQLiteDatabase(":memory:", clock, testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db, clock
}

func createHabit(t *testing.T, db *database.SQLiteDatabase, name string, minutes int) *model.Habit {
	t.Helper()
	h, err := db.CreateHabit(context.Background(), ht.CreateHabitRequest{Name: name, DefaultFocusMinutes: minutes})
	if err != nil {
		t.Fatalf("CreateHabit(%q) error = %v", name, err)
	}
	return h
}

func parseQuery(t *testing.T, raw string) *odata.Query {
	t.Helper()
	v, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("url.ParseQuery(%q) error = %v", raw, err)
	}
	q, err := odata.ParseQuery(v)
	if err != nil {
		t.Fatalf("odata.ParseQuery(%q) error = %v", raw, err)
	}
	return q
}

func TestSQLiteDatabase_Habits(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and finds a habit", func(t *testing.T) {
		db, clock := newTestDB(t)

		created := createHabit(t, db, "  Write  ", 50)
		if created.ID != "id-1" {
			t.Errorf("ID = %q, want %q", created.ID, "id-1")
		}
		if created.Name != "Write" {
			t.Errorf("Name = %q, want %q", created.Name, "Write")
		}

		found, err := db.GetHabit(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetHabit() error = %v", err)
		}
		if found.DefaultFocusMinutes != 50 {
			t.Errorf("DefaultFocusMinutes = %d, want 50", found.DefaultFocusMinutes)
		}
		if !found.CreatedAt.Equal(clock.Now()) {
			t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, clock.Now())
		}
		if found.ArchivedAt != nil {
			t.Errorf("ArchivedAt = %v, want nil", found.ArchivedAt)
		}
	})

	t.Run("missing habit", func(t *testing.T) {
		db, _ := newTestDB(t)

		_, err := db.GetHabit(ctx, "nope")
		if !errors.Is(err, ht.ErrNotFound) {
			t.Errorf("GetHabit() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		db, _ := newTestDB(t)

		if _, err := db.CreateHabit(ctx, ht.CreateHabitRequest{Name: " "}); !errors.Is(err, ht.ErrInvalidInput) {
			t.Errorf("blank name error = %v, want ErrInvalidInput", err)
		}
		if _, err := db.CreateHabit(ctx, ht.CreateHabitRequest{Name: "x", DefaultFocusMinutes: -1}); !errors.Is(err, ht.ErrInvalidInput) {
			t.Errorf("negative minutes error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("archives and filters", func(t *testing.T) {
		db, clock := newTestDB(t)

		write := createHabit(t, db, "Write", 0)
		createHabit(t, db, "Read", 0)

		clock.Advance(time.Hour)
		if err := db.ArchiveHabit(ctx, write.ID); err != nil {
			t.Fatalf("ArchiveHabit() error = %v", err)
		}
		archivedAt := clock.Now()
		clock.Advance(time.Hour)
		if err := db.ArchiveHabit(ctx, write.ID); err != nil {
			t.Fatalf("second ArchiveHabit() error = %v", err)
		}

		got, err := db.GetHabit(ctx, write.ID)
		if err != nil {
			t.Fatalf("GetHabit() error = %v", err)
		}
		if got.ArchivedAt == nil || !got.ArchivedAt.Equal(archivedAt) {
			t.Errorf("ArchivedAt = %v, want %v", got.ArchivedAt, archivedAt)
		}

		page, err := db.ListHabits(ctx, parseQuery(t, "$filter=archivedAt eq null&$count=true"))
		if err != nil {
			t.Fatalf("ListHabits() error = %v", err)
		}
		if len(page.Value) != 1 || page.Value[0].Name != "Read" {
			t.Errorf("ListHabits() = %+v, want only Read", page.Value)
		}
		if page.Count == nil || *page.Count != 1 {
			t.Errorf("Count = %v, want 1", page.Count)
		}

		all, err := db.ListHabits(ctx, nil)
		if err != nil {
			t.Fatalf("ListHabits(nil) error = %v", err)
		}
		if len(all.Value) != 2 || all.Value[0].Name != "Read" || all.Value[1].Name != "Write" {
			t.Errorf("ListHabits(nil) = %+v, want Read then Write", all.Value)
		}
		if all.Count != nil {
			t.Errorf("Count = %v, want nil when not requested", *all.Count)
		}

		if err := db.ArchiveHabit(ctx, "nope"); !errors.Is(err, ht.ErrNotFound) {
			t.Errorf("ArchiveHabit(nope) error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteDatabase_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)
	habit := createHabit(t, db, "Write", 25)

	active, err := db.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("ActiveSession() error = %v", err)
	}
	if active != nil {
		t.Fatalf("ActiveSession() = %+v, want nil", active)
	}

	started, err := db.StartSession(ctx, ht.StartSessionRequest{HabitID: habit.ID, PlannedDurationMinutes: 25})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if started.Status != model.StatusActive {
		t.Errorf("Status = %q, want %q", started.Status, model.StatusActive)
	}

	if _, err := db.StartSession(ctx, ht.StartSessionRequest{HabitID: habit.ID, PlannedDurationMinutes: 25}); !errors.Is(err, ht.ErrSessionConflict) {
		t.Errorf("second StartSession() error = %v, want ErrSessionConflict", err)
	}

	clock.Advance(10 * time.Minute)
	if _, err := db.PauseSession(ctx, started.ID); err != nil {
		t.Fatalf("PauseSession() error = %v", err)
	}
	if _, err := db.PauseSession(ctx, started.ID); !errors.Is(err, ht.ErrInvalidTransition) {
		t.Errorf("second PauseSession() error = %v, want ErrInvalidTransition", err)
	}

	active, err = db.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("ActiveSession() error = %v", err)
	}
	if active == nil || active.Status != model.StatusPaused {
		t.Fatalf("ActiveSession() = %+v, want the paused session", active)
	}

	clock.Advance(2 * time.Minute)
	resumed, err := db.ResumeSession(ctx, started.ID)
	if err != nil {
		t.Fatalf("ResumeSession() error = %v", err)
	}
	if resumed.PausedDurationSeconds != 120 {
		t.Errorf("PausedDurationSeconds = %d, want 120", resumed.PausedDurationSeconds)
	}

	clock.Advance(15 * time.Minute)
	notes := "chapter two"
	done, err := db.CompleteSession(ctx, started.ID, &notes)
	if err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}

	stored, err := db.FindSession(ctx, started.ID)
	if err != nil {
		t.Fatalf("FindSession() error = %v", err)
	}
	if stored.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want %q", stored.Status, model.StatusCompleted)
	}
	if stored.ActualDurationSeconds == nil || *stored.ActualDurationSeconds != 1500 {
		t.Errorf("ActualDurationSeconds = %v, want 1500", stored.ActualDurationSeconds)
	}
	if stored.EndTime == nil || !stored.EndTime.Equal(clock.Now()) {
		t.Errorf("EndTime = %v, want %v", stored.EndTime, clock.Now())
	}
	if stored.Notes == nil || *stored.Notes != notes {
		t.Errorf("Notes = %v, want %q", stored.Notes, notes)
	}
	if !stored.StartTime.Equal(done.StartTime) {
		t.Errorf("stored StartTime %v differs from returned %v", stored.StartTime, done.StartTime)
	}

	if _, err := db.CancelSession(ctx, started.ID); !errors.Is(err, ht.ErrInvalidTransition) {
		t.Errorf("CancelSession() after complete error = %v, want ErrInvalidTransition", err)
	}

	events, err := db.SessionEvents(ctx, started.ID)
	if err != nil {
		t.Fatalf("SessionEvents() error = %v", err)
	}
	wantActions := []model.SessionAction{model.ActionStart, model.ActionPause, model.ActionResume, model.ActionComplete}
	if len(events) != len(wantActions) {
		t.Fatalf("got %d events, want %d", len(events), len(wantActions))
	}
	for i, want := range wantActions {
		if events[i].Action != want {
			t.Errorf("event[%d] = %q, want %q", i, events[i].Action, want)
		}
	}

	if _, err := db.StartSession(ctx, ht.StartSessionRequest{HabitID: habit.ID, PlannedDurationMinutes: 25}); err != nil {
		t.Errorf("StartSession() after complete error = %v", err)
	}
}

func TestSQLiteDatabase_StartSessionValidation(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	habit := createHabit(t, db, "Write", 25)

	tests := []struct {
		name string
		req  ht.StartSessionRequest
		want error
	}{
		{"unknown habit", ht.StartSessionRequest{HabitID: "nope", PlannedDurationMinutes: 25}, ht.ErrNotFound},
		{"zero minutes", ht.StartSessionRequest{HabitID: habit.ID}, ht.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.StartSession(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("StartSession() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := db.ArchiveHabit(ctx, habit.ID); err != nil {
		t.Fatalf("ArchiveHabit() error = %v", err)
	}
	_, err := db.StartSession(ctx, ht.StartSessionRequest{HabitID: habit.ID, PlannedDurationMinutes: 25})
	if !errors.Is(err, ht.ErrInvalidInput) {
		t.Errorf("StartSession() on archived habit error = %v, want ErrInvalidInput", err)
	}

	if _, err := db.PauseSession(ctx, "nope"); !errors.Is(err, ht.ErrNotFound) {
		t.Errorf("PauseSession(nope) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDatabase_ListSessions(t *testing.T) {
	ctx := context.Background()
	db, clock := newTestDB(t)
	write := createHabit(t, db, "Write", 25)
	read := createHabit(t, db, "Read", 25)

	// Three finished sessions a day apart, alternating habits, then one open.
	var ids []string
	for i, h := range []*model.Habit{write, read, write} {
		s, err := db.StartSession(ctx, ht.StartSessionRequest{HabitID: h.ID, PlannedDurationMinutes: 25})
		if err != nil {
			t.Fatalf("StartSession(%d) error = %v", i, err)
		}
		clock.Advance(25 * time.Minute)
		if i == 1 {
			_, err = db.CancelSession(ctx, s.ID)
		} else {
			_, err = db.CompleteSession(ctx, s.ID, nil)
		}
		if err != nil {
			t.Fatalf("ending session %d: %v", i, err)
		}
		ids = append(ids, s.ID)
		clock.Advance(24*time.Hour - 25*time.Minute)
	}
	open, err := db.StartSession(ctx, ht.StartSessionRequest{HabitID: read.ID, PlannedDurationMinutes: 25})
	if err != nil {
		t.Fatalf("StartSession(open) error = %v", err)
	}

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantCount int64
	}{
		{
			name:    "default order is newest first",
			query:   "",
			wantIDs: []string{open.ID, ids[2], ids[1], ids[0]},
		},
		{
			name:      "status filter with count",
			query:     "$filter=status eq 'Completed'&$orderby=startTime asc&$count=true",
			wantIDs:   []string{ids[0], ids[2]},
			wantCount: 2,
		},
		{
			name:    "habit and status",
			query:   "$filter=(habitId eq '" + read.ID + "' and status eq 'Interrupted')",
			wantIDs: []string{ids[1]},
		},
		{
			name:    "date range",
			query:   "$filter=startTime ge 2026-01-16T00:00:00.000Z and startTime le 2026-01-16T23:59:59.999Z",
			wantIDs: []string{ids[1]},
		},
		{
			name:      "paging keeps the total",
			query:     "$orderby=startTime asc&$top=2&$skip=1&$count=true",
			wantIDs:   []string{ids[1], ids[2]},
			wantCount: 4,
		},
		{
			name:    "skip without top",
			query:   "$orderby=startTime asc&$skip=3",
			wantIDs: []string{open.ID},
		},
		{
			name:    "open sessions have no end time",
			query:   "$filter=endTime eq null",
			wantIDs: []string{open.ID},
		},
		{
			name:    "or",
			query:   "$filter=status eq 'Active' or status eq 'Interrupted'&$orderby=startTime asc",
			wantIDs: []string{ids[1], open.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := db.ListSessions(ctx, parseQuery(t, tt.query))
			if err != nil {
				t.Fatalf("ListSessions() error = %v", err)
			}
			var got []string
			for _, s := range page.Value {
				got = append(got, s.ID)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", got, tt.wantIDs)
					break
				}
			}
			if tt.wantCount > 0 && (page.Count == nil || *page.Count != tt.wantCount) {
				t.Errorf("Count = %v, want %d", page.Count, tt.wantCount)
			}
		})
	}
}

func TestSQLiteDatabase_ListSessionsRejectsBadQueries(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)

	tests := []struct {
		name  string
		query *odata.Query
		want  error
	}{
		{
			name:  "unknown filter field",
			query: &odata.Query{Filter: &odata.Comparison{Field: "secret", Op: odata.Eq, Value: "x"}},
			want:  odata.ErrUnknownField,
		},
		{
			name:  "unknown order field",
			query: &odata.Query{OrderBy: []odata.OrderTerm{{Field: "secret"}}},
			want:  odata.ErrUnknownField,
		},
		{
			name:  "string against a number",
			query: &odata.Query{Filter: &odata.Comparison{Field: "plannedDurationMinutes", Op: odata.Eq, Value: "x"}},
			want:  odata.ErrUnsupportedValue,
		},
		{
			name:  "null with gt",
			query: &odata.Query{Filter: &odata.Comparison{Field: "endTime", Op: odata.Gt, Value: nil}},
			want:  odata.ErrUnsupportedValue,
		},
		{
			name:  "contains on a time",
			query: &odata.Query{Filter: &odata.Comparison{Field: "startTime", Op: odata.Contains, Value: "2026"}},
			want:  odata.ErrUnsupportedValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := db.ListSessions(ctx, tt.query); !errors.Is(err, tt.want) {
				t.Errorf("ListSessions() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSQLiteDatabase_ContainsEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	createHabit(t, db, "100% focus", 0)
	createHabit(t, db, "1000 words", 0)

	page, err := db.ListHabits(ctx, parseQuery(t, "$filter=contains(name,'0%25')"))
	if err != nil {
		t.Fatalf("ListHabits() error = %v", err)
	}
	if len(page.Value) != 1 || page.Value[0].Name != "100% focus" {
		t.Errorf("ListHabits() = %+v, want only %q", page.Value, "100% focus")
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	createHabit(t, db, "Write", 0)

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := database.NewSQLiteDatabase(dest, nil, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	page, err := restored.ListHabits(ctx, nil)
	if err != nil {
		t.Fatalf("ListHabits() error = %v", err)
	}
	if len(page.Value) != 1 {
		t.Errorf("backup has %d habits, want 1", len(page.Value))
	}
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ht-go/internal/database/migrations"
	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/odata"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const sessionFields = `id, habit_id, status, planned_duration_minutes, start_time, pause_time,
	resume_time, end_time, paused_duration_seconds, actual_duration_seconds, notes`

const habitFields = `id, name, description, default_focus_minutes, created_at, archived_at`

const openStatuses = `('Active', 'Paused')`

// SQLiteDatabase implements ht.Database on SQLite. Times are stored as Unix milliseconds.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock ht.Clock
	idgen ht.IDGenerator
}

// NewSQLiteDatabase opens the database at path (or ":memory:") and applies any
// pending migrations. A nil clock or idgen falls back to the real implementation.
func NewSQLiteDatabase(path string, clock ht.Clock, idgen ht.IDGenerator) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return NewSQLiteDatabaseFromDB(db, path, clock, idgen), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock ht.Clock, idgen ht.IDGenerator) *SQLiteDatabase {
	if clock == nil {
		clock = ht.RealClock{}
	}
	if idgen == nil {
		idgen = ht.UUIDGenerator{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock, idgen: idgen}
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// The pool is limited to one connection: an in-memory database exists per
// connection, and it serialises the lifecycle transactions.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// SQLite leaves foreign keys off unless asked.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Session operations

func (s *SQLiteDatabase) ActiveSession(ctx context.Context) (*model.FocusSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionFields+` FROM focus_sessions
		WHERE status IN `+openStatuses+`
		ORDER BY start_time DESC LIMIT 1`)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding active session: %w", err)
	}
	return session, nil
}

func (s *SQLiteDatabase) FindSession(ctx context.Context, id string) (*model.FocusSession, error) {
	session, err := findSession(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SQLiteDatabase) StartSession(ctx context.Context, req ht.StartSessionRequest) (*model.FocusSession, error) {
	if req.PlannedDurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: planned duration must be positive, got %d", ht.ErrInvalidInput, req.PlannedDurationMinutes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	habit, err := findHabit(ctx, tx, req.HabitID)
	if err != nil {
		return nil, err
	}
	if habit.ArchivedAt != nil {
		return nil, fmt.Errorf("%w: habit %s is archived", ht.ErrInvalidInput, habit.ID)
	}

	var open int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM focus_sessions WHERE status IN `+openStatuses).Scan(&open); err != nil {
		return nil, fmt.Errorf("counting open sessions: %w", err)
	}
	if open > 0 {
		return nil, ht.ErrSessionConflict
	}

	now := s.clock.Now()
	session := &model.FocusSession{
		ID:                     s.idgen.New(),
		HabitID:                habit.ID,
		Status:                 model.StatusActive,
		PlannedDurationMinutes: req.PlannedDurationMinutes,
		StartTime:              now,
		Notes:                  req.Notes,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO focus_sessions (id, habit_id, status, planned_duration_minutes, start_time, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.HabitID, string(session.Status), session.PlannedDurationMinutes,
		toMillis(now), nullString(session.Notes)); err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	if err := insertEvent(ctx, tx, session.ID, model.ActionStart, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return normalise(session), nil
}

func (s *SQLiteDatabase) PauseSession(ctx context.Context, id string) (*model.FocusSession, error) {
	return s.transition(ctx, id, model.ActionPause, nil)
}

func (s *SQLiteDatabase) ResumeSession(ctx context.Context, id string) (*model.FocusSession, error) {
	return s.transition(ctx, id, model.ActionResume, nil)
}

func (s *SQLiteDatabase) CompleteSession(ctx context.Context, id string, notes *string) (*model.FocusSession, error) {
	return s.transition(ctx, id, model.ActionComplete, notes)
}

func (s *SQLiteDatabase) CancelSession(ctx context.Context, id string) (*model.FocusSession, error) {
	return s.transition(ctx, id, model.ActionCancel, nil)
}

// transition loads the session, applies action and writes it back together
// with the audit event, all in one transaction.
func (s *SQLiteDatabase) transition(ctx context.Context, id string, action model.SessionAction, notes *string) (*model.FocusSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := findSession(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := ht.ApplyAction(session, action, now); err != nil {
		return nil, err
	}
	if notes != nil {
		session.Notes = notes
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE focus_sessions SET status = ?, pause_time = ?, resume_time = ?, end_time = ?,
			paused_duration_seconds = ?, actual_duration_seconds = ?, notes = ?
		WHERE id = ?`,
		string(session.Status), nullMillis(session.PauseTime), nullMillis(session.ResumeTime),
		nullMillis(session.EndTime), session.PausedDurationSeconds,
		nullInt64(session.ActualDurationSeconds), nullString(session.Notes), session.ID); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	if err := insertEvent(ctx, tx, session.ID, action, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return normalise(session), nil
}

func (s *SQLiteDatabase) ListSessions(ctx context.Context, q *odata.Query) (*model.Page[model.FocusSession], error) {
	if q == nil {
		q = &odata.Query{}
	}

	where, args, err := whereClause(q.Filter, sessionColumns)
	if err != nil {
		return nil, err
	}
	order, err := orderClause(q.OrderBy, sessionColumns, "start_time DESC")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionFields+` FROM focus_sessions WHERE `+where+
			` ORDER BY `+order+limitClause(q.Top, q.Skip), args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	page := &model.Page[model.FocusSession]{Value: []model.FocusSession{}}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		page.Value = append(page.Value, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	rows.Close()

	if q.Count {
		var n int64
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM focus_sessions WHERE `+where, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting sessions: %w", err)
		}
		page.Count = &n
	}
	return page, nil
}

func (s *SQLiteDatabase) SessionEvents(ctx context.Context, sessionID string) ([]model.SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, action, at FROM session_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing session events: %w", err)
	}
	defer rows.Close()

	var events []model.SessionEvent
	for rows.Next() {
		var (
			e      model.SessionEvent
			action string
			at     int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &action, &at); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		e.Action = model.SessionAction(action)
		e.At = fromMillis(at)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing session events: %w", err)
	}
	return events, nil
}

// Habit operations

func (s *SQLiteDatabase) ListHabits(ctx context.Context, q *odata.Query) (*model.Page[model.Habit], error) {
	if q == nil {
		q = &odata.Query{}
	}

	where, args, err := whereClause(q.Filter, habitColumns)
	if err != nil {
		return nil, err
	}
	order, err := orderClause(q.OrderBy, habitColumns, "name ASC")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+habitFields+` FROM habits WHERE `+where+
			` ORDER BY `+order+limitClause(q.Top, q.Skip), args...)
	if err != nil {
		return nil, fmt.Errorf("listing habits: %w", err)
	}
	defer rows.Close()

	page := &model.Page[model.Habit]{Value: []model.Habit{}}
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning habit: %w", err)
		}
		page.Value = append(page.Value, *habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing habits: %w", err)
	}
	rows.Close()

	if q.Count {
		var n int64
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM habits WHERE `+where, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting habits: %w", err)
		}
		page.Count = &n
	}
	return page, nil
}

func (s *SQLiteDatabase) GetHabit(ctx context.Context, id string) (*model.Habit, error) {
	return findHabit(ctx, s.db, id)
}

func (s *SQLiteDatabase) CreateHabit(ctx context.Context, req ht.CreateHabitRequest) (*model.Habit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: habit name is required", ht.ErrInvalidInput)
	}
	if req.DefaultFocusMinutes < 0 {
		return nil, fmt.Errorf("%w: default focus minutes must not be negative", ht.ErrInvalidInput)
	}

	habit := &model.Habit{
		ID:                  s.idgen.New(),
		Name:                name,
		Description:         req.Description,
		DefaultFocusMinutes: req.DefaultFocusMinutes,
		CreatedAt:           s.clock.Now(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO habits (id, name, description, default_focus_minutes, created_at) VALUES (?, ?, ?, ?, ?)`,
		habit.ID, habit.Name, habit.Description, habit.DefaultFocusMinutes, toMillis(habit.CreatedAt)); err != nil {
		return nil, fmt.Errorf("creating habit: %w", err)
	}
	habit.CreatedAt = fromMillis(toMillis(habit.CreatedAt))
	return habit, nil
}

// ArchiveHabit marks the habit archived. Archiving twice keeps the first timestamp.
func (s *SQLiteDatabase) ArchiveHabit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE habits SET archived_at = COALESCE(archived_at, ?) WHERE id = ?`, toMillis(s.clock.Now()), id)
	if err != nil {
		return fmt.Errorf("archiving habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archiving habit: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("habit %s: %w", id, ht.ErrNotFound)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements ht.Database.
var _ ht.Database = (*SQLiteDatabase)(nil)

// Row helpers

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func findSession(ctx context.Context, q querier, id string) (*model.FocusSession, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionFields+` FROM focus_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ht.ErrNotFound)
		}
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return session, nil
}

func findHabit(ctx context.Context, q querier, id string) (*model.Habit, error) {
	row := q.QueryRowContext(ctx, `SELECT `+habitFields+` FROM habits WHERE id = ?`, id)
	habit, err := scanHabit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("habit %s: %w", id, ht.ErrNotFound)
		}
		return nil, fmt.Errorf("finding habit: %w", err)
	}
	return habit, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, sessionID string, action model.SessionAction, at time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (session_id, action, at) VALUES (?, ?, ?)`,
		sessionID, string(action), toMillis(at)); err != nil {
		return fmt.Errorf("recording %s event: %w", action, err)
	}
	return nil
}

func scanSession(row scanner) (*model.FocusSession, error) {
	var (
		s                  model.FocusSession
		status             string
		start              int64
		pause, resume, end sql.NullInt64
		actual             sql.NullInt64
		notes              sql.NullString
	)
	if err := row.Scan(&s.ID, &s.HabitID, &status, &s.PlannedDurationMinutes, &start,
		&pause, &resume, &end, &s.PausedDurationSeconds, &actual, &notes); err != nil {
		return nil, err
	}
	s.Status = model.SessionStatus(status)
	s.StartTime = fromMillis(start)
	s.PauseTime = nullTime(pause)
	s.ResumeTime = nullTime(resume)
	s.EndTime = nullTime(end)
	if actual.Valid {
		s.ActualDurationSeconds = &actual.Int64
	}
	if notes.Valid {
		s.Notes = &notes.String
	}
	return &s, nil
}

func scanHabit(row scanner) (*model.Habit, error) {
	var (
		h        model.Habit
		created  int64
		archived sql.NullInt64
	)
	if err := row.Scan(&h.ID, &h.Name, &h.Description, &h.DefaultFocusMinutes, &created, &archived); err != nil {
		return nil, err
	}
	h.CreatedAt = fromMillis(created)
	h.ArchivedAt = nullTime(archived)
	return &h, nil
}

// normalise rounds the session's timestamps to storage precision so a value
// returned from a write matches what a later read returns.
func normalise(s *model.FocusSession) *model.FocusSession {
	s.StartTime = fromMillis(toMillis(s.StartTime))
	for _, t := range []**time.Time{&s.PauseTime, &s.ResumeTime, &s.EndTime} {
		if *t != nil {
			v := fromMillis(toMillis(**t))
			*t = &v
		}
	}
	return s
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

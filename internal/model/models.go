package model

import "time"

// SessionStatus is the lifecycle state of a focus session as reported by the backend.
type SessionStatus string

const (
	StatusActive      SessionStatus = "Active"
	StatusPaused      SessionStatus = "Paused"
	StatusCompleted   SessionStatus = "Completed"
	StatusInterrupted SessionStatus = "Interrupted"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusInterrupted:
		return true
	}
	return false
}

// IsOpen reports whether a session in this status can still change.
// Completed and Interrupted sessions are immutable.
func (s SessionStatus) IsOpen() bool {
	return s == StatusActive || s == StatusPaused
}

// FocusSession is a timed period of work on a habit. The backend owns it;
// clients only ever hold a cached, possibly stale, copy.
type FocusSession struct {
	ID                     string        `json:"id" yaml:"id"`
	HabitID                string        `json:"habitId" yaml:"habit_id"`
	Status                 SessionStatus `json:"status" yaml:"status"`
	PlannedDurationMinutes int           `json:"plannedDurationMinutes" yaml:"planned_duration_minutes"`
	StartTime              time.Time     `json:"startTime" yaml:"start_time"`
	PauseTime              *time.Time    `json:"pauseTime,omitempty" yaml:"pause_time,omitempty"`
	ResumeTime             *time.Time    `json:"resumeTime,omitempty" yaml:"resume_time,omitempty"`
	EndTime                *time.Time    `json:"endTime,omitempty" yaml:"end_time,omitempty"`
	PausedDurationSeconds  int64         `json:"pausedDurationSeconds" yaml:"paused_duration_seconds"`
	ActualDurationSeconds  *int64        `json:"actualDurationSeconds,omitempty" yaml:"actual_duration_seconds,omitempty"`
	Notes                  *string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Habit is a recurring practice that focus sessions are logged against.
type Habit struct {
	ID                  string     `json:"id" yaml:"id"`
	Name                string     `json:"name" yaml:"name"`
	Description         string     `json:"description,omitempty" yaml:"description,omitempty"`
	DefaultFocusMinutes int        `json:"defaultFocusMinutes" yaml:"default_focus_minutes"`
	CreatedAt           time.Time  `json:"createdAt" yaml:"created_at"`
	ArchivedAt          *time.Time `json:"archivedAt,omitempty" yaml:"archived_at,omitempty"`
}

// SessionAction names a lifecycle transition.
type SessionAction string

const (
	ActionStart    SessionAction = "start"
	ActionPause    SessionAction = "pause"
	ActionResume   SessionAction = "resume"
	ActionComplete SessionAction = "complete"
	ActionCancel   SessionAction = "cancel"
)

// SessionEvent records one transition applied to a session.
type SessionEvent struct {
	ID        int64         `json:"id" yaml:"id"`
	SessionID string        `json:"sessionId" yaml:"session_id"`
	Action    SessionAction `json:"action" yaml:"action"`
	At        time.Time     `json:"at" yaml:"at"`
}

// Page is one page of a list endpoint. Count is only set when the
// request asked for it with $count=true.
type Page[T any] struct {
	Value []T    `json:"value" yaml:"value"`
	Count *int64 `json:"@odata.count,omitempty" yaml:"count,omitempty"`
}

package ht

import (
	"fmt"
	"time"

	"ht-go/internal/model"
)

// ApplyAction moves s through one lifecycle transition at now, updating it in
// place. It returns ErrInvalidTransition (wrapped) when action does not apply
// to the session's current status; s is left untouched in that case.
//
//	Active --pause--> Paused --resume--> Active
//	Active|Paused --complete--> Completed
//	Active|Paused --cancel--> Interrupted
//
// Ending a paused session folds the open pause into PausedDurationSeconds
// before the actual duration is taken.
func ApplyAction(s *model.FocusSession, action model.SessionAction, now time.Time) error {
	switch action {
	case model.ActionPause:
		if s.Status != model.StatusActive {
			return invalidTransition(s, action)
		}
		s.Status = model.StatusPaused
		s.PauseTime = &now

	case model.ActionResume:
		if s.Status != model.StatusPaused {
			return invalidTransition(s, action)
		}
		foldPause(s, now)
		s.Status = model.StatusActive
		s.ResumeTime = &now

	case model.ActionComplete, model.ActionCancel:
		if !s.Status.IsOpen() {
			return invalidTransition(s, action)
		}
		if s.Status == model.StatusPaused {
			foldPause(s, now)
		}
		s.Status = model.StatusCompleted
		if action == model.ActionCancel {
			s.Status = model.StatusInterrupted
		}
		s.EndTime = &now
		actual := ElapsedSeconds(s, now)
		s.ActualDurationSeconds = &actual

	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return nil
}

func foldPause(s *model.FocusSession, now time.Time) {
	if s.PauseTime == nil {
		return
	}
	if d := int64(now.Sub(*s.PauseTime) / time.Second); d > 0 {
		s.PausedDurationSeconds += d
	}
}

func invalidTransition(s *model.FocusSession, action model.SessionAction) error {
	return fmt.Errorf("%w: cannot %s a %s session", ErrInvalidTransition, action, s.Status)
}

package ht

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ht-go/internal/model"
	"ht-go/internal/odata"
)

// Dashboard is the one-screen summary: the timer, today's sessions and the habits.
type Dashboard struct {
	Active       *model.FocusSession  `json:"active,omitempty" yaml:"active,omitempty"`
	Timer        Snapshot             `json:"timer" yaml:"timer"`
	Today        []model.FocusSession `json:"today" yaml:"today"`
	TodaySeconds int64                `json:"todaySeconds" yaml:"today_seconds"`
	Habits       []model.Habit        `json:"habits" yaml:"habits"`
}

// Dashboard fetches the active session, today's sessions and the habit list
// concurrently. Any failed fetch fails the whole dashboard.
func (s *HTService) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.clock.Now()
	today := now.In(s.loc).Format(odata.DateLayout)

	var (
		active   *model.FocusSession
		sessions *model.Page[model.FocusSession]
		habits   []model.Habit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.ActiveSession(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = s.SessionHistory(gctx, HistoryFilter{
			From:     today,
			To:       today,
			PageSize: 100,
			OrderBy:  "startTime asc",
		})
		return err
	})
	g.Go(func() error {
		var err error
		habits, err = s.Habits(gctx, false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}

	d := &Dashboard{
		Active: active,
		Timer:  ResolveSnapshot(active, s.fallbackMinutes, now),
		Today:  sessions.Value,
		Habits: habits,
	}
	for i := range d.Today {
		if d.Today[i].Status == model.StatusCompleted {
			d.TodaySeconds += FocusedSeconds(&d.Today[i], now)
		}
	}
	return d, nil
}

package ht

import (
	"context"
	"fmt"
	"time"

	"ht-go/internal/model"
	"ht-go/internal/odata"
)

// DefaultPageSize is the number of sessions per history page when none is given.
const DefaultPageSize = 20

// totalsPageSize is how many sessions DailyTotals fetches per request.
const totalsPageSize = 200

// HistoryFilter narrows a session history listing. Zero values mean "any".
// From and To are calendar days (YYYY-MM-DD) in the service's location.
type HistoryFilter struct {
	Status   model.SessionStatus
	HabitID  string
	From     string
	To       string
	Page     int
	PageSize int
	OrderBy  string
}

// HistoryQuery renders f as an OData query string.
func HistoryQuery(f HistoryFilter, loc *time.Location) (string, error) {
	if f.Status != "" && !f.Status.Valid() {
		return "", fmt.Errorf("unknown session status %q", f.Status)
	}

	var conds []odata.Condition
	if f.Status != "" {
		conds = append(conds, odata.Condition{Field: "status", Operator: odata.Eq, Value: string(f.Status)})
	}
	if f.HabitID != "" {
		conds = append(conds, odata.Condition{Field: "habitId", Operator: odata.Eq, Value: f.HabitID})
	}

	page, size := f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	order := f.OrderBy
	if order == "" {
		order = "startTime desc"
	}

	return odata.NewBuilder(odata.WithLocation(loc)).
		FilterConditions(conds, odata.And).
		DateRangeFilter(odata.DateRange{Field: "startTime", StartDate: f.From, EndDate: f.To}).
		OrderBy(order).
		Paginate(page, size).
		Count(true).
		Build()
}

// SessionHistory returns one page of past and current sessions, newest first
// unless f says otherwise.
func (s *HTService) SessionHistory(ctx context.Context, f HistoryFilter) (*model.Page[model.FocusSession], error) {
	query, err := HistoryQuery(f, s.loc)
	if err != nil {
		return nil, fmt.Errorf("building history query: %w", err)
	}

	s.logger.Debug("listing sessions", "query", query)
	page, err := s.sessions.ListSessions(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return page, nil
}

// DailyTotal is the completed focus time for one calendar day.
type DailyTotal struct {
	Date         string `json:"date" yaml:"date"`
	Sessions     int    `json:"sessions" yaml:"sessions"`
	FocusSeconds int64  `json:"focusSeconds" yaml:"focus_seconds"`
}

// DailyTotals sums completed sessions per calendar day between from and to,
// inclusive. Days without sessions are present with zero totals.
func (s *HTService) DailyTotals(ctx context.Context, from, to string) ([]DailyTotal, error) {
	start, err := time.ParseInLocation(odata.DateLayout, from, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", odata.ErrInvalidDate, from)
	}
	end, err := time.ParseInLocation(odata.DateLayout, to, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", odata.ErrInvalidDate, to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range ends before it starts: %s > %s", from, to)
	}

	byDay := make(map[string]*DailyTotal)
	var days []DailyTotal
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, DailyTotal{Date: d.Format(odata.DateLayout)})
	}
	for i := range days {
		byDay[days[i].Date] = &days[i]
	}

	now := s.clock.Now()
	for page := 1; ; page++ {
		result, err := s.SessionHistory(ctx, HistoryFilter{
			Status:   model.StatusCompleted,
			From:     from,
			To:       to,
			Page:     page,
			PageSize: totalsPageSize,
			OrderBy:  "startTime asc",
		})
		if err != nil {
			return nil, err
		}

		for i := range result.Value {
			session := &result.Value[i]
			total, ok := byDay[session.StartTime.In(s.loc).Format(odata.DateLayout)]
			if !ok {
				continue
			}
			total.Sessions++
			total.FocusSeconds += FocusedSeconds(session, now)
		}

		if len(result.Value) < totalsPageSize {
			break
		}
	}

	return days, nil
}

// FocusedSeconds returns the session's recorded actual duration, or its
// elapsed time when the backend did not record one.
func FocusedSeconds(session *model.FocusSession, now time.Time) int64 {
	if session.ActualDurationSeconds != nil {
		return *session.ActualDurationSeconds
	}
	return ElapsedSeconds(session, now)
}

package timer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/pubsub"
	"ht-go/internal/testutil"
	"ht-go/internal/timer"
)

var epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

type stubSource struct {
	mu      sync.Mutex
	session *model.FocusSession
	err     error
	calls   int
}

func (s *stubSource) ActiveSession(context.Context) (*model.FocusSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.session, s.err
}

func newContext(t *testing.T, opts ...timer.Option) (*timer.Context, *testutil.FakeScheduler) {
	t.Helper()
	sched := testutil.NewFakeScheduler(epoch)
	base := []timer.Option{timer.WithScheduler(sched), timer.WithClock(sched)}
	c := timer.NewContext(append(base, opts...)...)
	t.Cleanup(c.Close)
	return c, sched
}

func activeSession(now time.Time, elapsed time.Duration, plannedMinutes int) *model.FocusSession {
	return &model.FocusSession{
		ID:                     "s-1",
		HabitID:                "h-1",
		Status:                 model.StatusActive,
		PlannedDurationMinutes: plannedMinutes,
		StartTime:              now.Add(-elapsed),
	}
}

func drain(ch <-chan pubsub.Event[timer.Snapshot]) []pubsub.EventType {
	var types []pubsub.EventType
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return types
			}
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func count(types []pubsub.EventType, want pubsub.EventType) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}

func TestContext_InitialSnapshotIsIdle(t *testing.T) {
	c, _ := newContext(t)

	snap := c.Snapshot()
	assert.Equal(t, ht.Snapshot{TimeLeft: 1500, TotalDuration: 1500}, snap.Snapshot)
	assert.Equal(t, timer.StateIdle, snap.State)
	assert.False(t, snap.Celebrating)
	assert.Nil(t, snap.Session)
}

func TestContext_ObserveActiveSession(t *testing.T) {
	c, sched := newContext(t)

	c.Observe(activeSession(sched.Now(), 600*time.Second, 25))

	snap := c.Snapshot()
	assert.Equal(t, int64(900), snap.TimeLeft)
	assert.Equal(t, int64(1500), snap.TotalDuration)
	assert.InDelta(t, 40.0, snap.Progress, 1e-9)
	assert.True(t, snap.IsRunning)
	assert.True(t, snap.HasActiveSession)
	assert.Equal(t, timer.StateRunning, snap.State)

	sched.Advance(time.Second)
	assert.Equal(t, int64(899), c.Snapshot().TimeLeft)

	sched.Advance(10 * time.Second)
	assert.Equal(t, int64(889), c.Snapshot().TimeLeft)
}

func TestContext_ObserveUnchangedSessionDoesNotResync(t *testing.T) {
	c, sched := newContext(t)
	s := activeSession(sched.Now(), 0, 25)

	c.Observe(s)
	c.Pause()
	require.False(t, c.Snapshot().IsRunning)

	same := *s
	c.Observe(&same)
	assert.False(t, c.Snapshot().IsRunning, "an identical session must not restart the countdown")

	changed := same
	changed.PlannedDurationMinutes = 30
	c.Observe(&changed)
	snap := c.Snapshot()
	assert.True(t, snap.IsRunning)
	assert.Equal(t, int64(1800), snap.TotalDuration)
}

func TestContext_ObservePausedSession(t *testing.T) {
	c, sched := newContext(t)

	now := sched.Now()
	pausedAt := now.Add(-5 * time.Minute)
	c.Observe(&model.FocusSession{
		ID:                     "s-1",
		Status:                 model.StatusPaused,
		PlannedDurationMinutes: 25,
		StartTime:              now.Add(-15 * time.Minute),
		PauseTime:              &pausedAt,
	})

	snap := c.Snapshot()
	assert.Equal(t, int64(900), snap.TimeLeft)
	assert.False(t, snap.IsRunning)
	assert.True(t, snap.HasActiveSession)
	assert.Equal(t, timer.StatePaused, snap.State)

	sched.Advance(time.Minute)
	assert.Equal(t, int64(900), c.Snapshot().TimeLeft)
}

func TestContext_SessionClearedFallsBackToIdle(t *testing.T) {
	c, sched := newContext(t, timer.WithFallbackMinutes(50))

	c.Observe(activeSession(sched.Now(), time.Minute, 25))
	require.True(t, c.Snapshot().HasActiveSession)

	c.Observe(nil)
	snap := c.Snapshot()
	assert.Equal(t, ht.Snapshot{TimeLeft: 3000, TotalDuration: 3000}, snap.Snapshot)
	assert.Equal(t, timer.StateIdle, snap.State)
	assert.Equal(t, 0, sched.Pending())
}

func TestContext_ExpiryRaisesCelebrationOnce(t *testing.T) {
	c, sched := newContext(t)
	events := c.Subscribe(context.Background())

	c.Observe(activeSession(sched.Now(), 58*time.Second, 1))
	require.Equal(t, int64(2), c.Snapshot().TimeLeft)

	sched.Advance(2 * time.Second)
	snap := c.Snapshot()
	assert.Equal(t, int64(0), snap.TimeLeft)
	assert.Equal(t, timer.StateExpired, snap.State)
	assert.True(t, snap.Celebrating)
	assert.InDelta(t, 100.0, snap.Progress, 1e-9)

	sched.Advance(10 * time.Second)
	got := drain(events)
	assert.Equal(t, 1, count(got, timer.EventExpired))
	assert.Equal(t, 2, count(got, timer.EventTick))
	assert.False(t, c.Celebrating())
}

func TestContext_OverdueSessionExpiresOnResync(t *testing.T) {
	c, sched := newContext(t)

	c.Observe(activeSession(sched.Now(), 30*time.Minute, 25))

	snap := c.Snapshot()
	assert.Equal(t, int64(0), snap.TimeLeft)
	assert.Equal(t, timer.StateExpired, snap.State)
	assert.True(t, snap.Celebrating)
}

func TestContext_CelebrationAutoClears(t *testing.T) {
	c, sched := newContext(t)

	c.SetCelebrating(true)
	sched.Advance(2999 * time.Millisecond)
	assert.True(t, c.Celebrating())

	sched.Advance(time.Millisecond)
	assert.False(t, c.Celebrating())
	assert.Equal(t, 0, sched.Pending())
}

func TestContext_CelebrationRaisedTwiceClearsAfterLastRaise(t *testing.T) {
	c, sched := newContext(t)

	c.SetCelebrating(true)
	sched.Advance(2 * time.Second)
	c.SetCelebrating(true)
	assert.Equal(t, 1, sched.Pending(), "only one auto-clear may be live")

	sched.Advance(2 * time.Second)
	assert.True(t, c.Celebrating(), "cleared relative to the first raise")

	sched.Advance(time.Second)
	assert.False(t, c.Celebrating())
}

func TestContext_LoweringCelebrationCancelsAutoClear(t *testing.T) {
	c, sched := newContext(t, timer.WithCelebrationDuration(10*time.Second))

	c.SetCelebrating(true)
	require.Equal(t, 1, sched.Pending())

	c.SetCelebrating(false)
	assert.False(t, c.Celebrating())
	assert.Equal(t, 0, sched.Pending())
}

func TestContext_LocalStartAndPause(t *testing.T) {
	c, sched := newContext(t)

	c.Start()
	sched.Advance(3 * time.Second)
	snap := c.Snapshot()
	assert.Equal(t, int64(1497), snap.TimeLeft)
	assert.Equal(t, timer.StateRunning, snap.State)
	assert.False(t, snap.HasActiveSession)

	c.Pause()
	sched.Advance(3 * time.Second)
	snap = c.Snapshot()
	assert.Equal(t, int64(1497), snap.TimeLeft)
	assert.Equal(t, timer.StatePaused, snap.State)
}

func TestContext_Refresh(t *testing.T) {
	t.Run("observes the fetched session", func(t *testing.T) {
		src := &stubSource{}
		c, sched := newContext(t, timer.WithSource(src))
		src.session = activeSession(sched.Now(), 0, 25)

		require.NoError(t, c.Refresh(context.Background()))
		snap := c.Snapshot()
		assert.True(t, snap.HasActiveSession)
		assert.Equal(t, "s-1", snap.Session.ID)
		assert.False(t, snap.Loading)
		assert.NoError(t, c.Err())
	})

	t.Run("failure is surfaced and keeps the previous session", func(t *testing.T) {
		src := &stubSource{}
		c, sched := newContext(t, timer.WithSource(src))
		src.session = activeSession(sched.Now(), 0, 25)
		require.NoError(t, c.Refresh(context.Background()))

		boom := errors.New("connection refused")
		src.session, src.err = nil, boom
		events := c.Subscribe(context.Background())

		err := c.Refresh(context.Background())
		require.ErrorIs(t, err, boom)
		assert.ErrorIs(t, c.Err(), boom)

		snap := c.Snapshot()
		assert.True(t, snap.HasActiveSession)
		assert.Equal(t, "s-1", snap.Session.ID)
		assert.ErrorIs(t, snap.Err, boom)
		assert.Equal(t, []pubsub.EventType{timer.EventError}, drain(events))

		src.err = nil
		require.NoError(t, c.Refresh(context.Background()))
		assert.NoError(t, c.Err())
		assert.False(t, c.Snapshot().HasActiveSession)
	})

	t.Run("without a source", func(t *testing.T) {
		c, _ := newContext(t)
		assert.ErrorIs(t, c.Refresh(context.Background()), timer.ErrNoSource)
	})
}

func TestContext_CloseCancelsEverything(t *testing.T) {
	sched := testutil.NewFakeScheduler(epoch)
	c := timer.NewContext(timer.WithScheduler(sched), timer.WithClock(sched))
	events := c.Subscribe(context.Background())

	c.Observe(activeSession(sched.Now(), 0, 25))
	c.SetCelebrating(true)
	require.Equal(t, 2, sched.Pending())

	c.Close()
	assert.Equal(t, 0, sched.Pending())

	left := c.Snapshot().TimeLeft
	sched.Advance(time.Minute)
	assert.Equal(t, left, c.Snapshot().TimeLeft)
	assert.True(t, c.Celebrating(), "flag is frozen, not cleared, after close")

	drain(events)
	_, ok := <-events
	assert.False(t, ok, "subscription should be closed")

	c.Observe(nil)
	c.SetCelebrating(false)
	c.Close()
}

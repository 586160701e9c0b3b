// Package timer keeps a local focus countdown in step with the backend's view
// of the active session.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ht-go/internal/ht"
	"ht-go/internal/model"
	"ht-go/internal/pubsub"
)

// DefaultCelebrationDuration is how long the completion celebration stays raised.
const DefaultCelebrationDuration = 3 * time.Second

// ErrNoSource is returned by Refresh when the context was built without a SessionSource.
var ErrNoSource = errors.New("timer: no session source configured")

// Event types published to subscribers.
const (
	EventResync      pubsub.EventType = "resync"
	EventTick        pubsub.EventType = "tick"
	EventState       pubsub.EventType = "state"
	EventExpired     pubsub.EventType = "expired"
	EventCelebration pubsub.EventType = "celebration"
	EventError       pubsub.EventType = "error"
)

// Snapshot is what the UI renders: the resolved timer view plus context state.
type Snapshot struct {
	ht.Snapshot `yaml:",inline"`

	State       State               `json:"state" yaml:"state"`
	Celebrating bool                `json:"celebrating" yaml:"celebrating"`
	Loading     bool                `json:"loading" yaml:"loading"`
	Session     *model.FocusSession `json:"session,omitempty" yaml:"session,omitempty"`
	Err         error               `json:"-" yaml:"-"`
}

// Context owns the local countdown for one view of the active session. Build
// it once near the top of the program and pass it to whatever renders it.
type Context struct {
	mu sync.Mutex

	source   ht.SessionSource
	clock    ht.Clock
	sched    Scheduler
	logger   ht.Logger
	fallback int
	celebLen time.Duration

	countdown *Countdown
	broker    *pubsub.Broker[Snapshot]

	session  *model.FocusSession
	observed bool
	key      sessionKey
	resolved ht.Snapshot
	loading  bool
	err      error

	celebrating bool
	celebGen    uint64
	celebTimer  Timer

	closed bool
}

// Option configures a Context.
type Option func(*Context)

// WithSource sets where Refresh fetches the active session from.
func WithSource(src ht.SessionSource) Option {
	return func(c *Context) { c.source = src }
}

// WithClock sets the clock used to resolve elapsed time.
func WithClock(clock ht.Clock) Option {
	return func(c *Context) { c.clock = clock }
}

// WithScheduler sets the scheduler used for ticks and the celebration auto-clear.
func WithScheduler(s Scheduler) Option {
	return func(c *Context) { c.sched = s }
}

// WithLogger sets the logger.
func WithLogger(l ht.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithFallbackMinutes sets the countdown length shown when there is no session.
func WithFallbackMinutes(minutes int) Option {
	return func(c *Context) {
		if minutes > 0 {
			c.fallback = minutes
		}
	}
}

// WithCelebrationDuration sets how long the celebration flag stays raised.
func WithCelebrationDuration(d time.Duration) Option {
	return func(c *Context) {
		if d > 0 {
			c.celebLen = d
		}
	}
}

// NewContext creates an idle Context showing the fallback duration.
func NewContext(opts ...Option) *Context {
	c := &Context{
		clock:    ht.RealClock{},
		sched:    RealScheduler{},
		logger:   ht.NewNopLogger(),
		fallback: ht.DefaultPlannedMinutes,
		celebLen: DefaultCelebrationDuration,
		broker:   pubsub.NewBroker[Snapshot](),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.resolved = ht.ResolveSnapshot(nil, c.fallback, c.clock.Now())
	c.countdown = NewCountdown(c.sched, c.resolved.TimeLeft)
	c.countdown.OnTick(c.handleTick)
	c.countdown.OnExpire(c.handleExpire)
	return c
}

// Observe feeds the latest known active session (nil for none) into the
// context. The countdown is resynchronised on the first call and whenever the
// session differs from the previously observed one; otherwise Observe is a no-op.
func (c *Context) Observe(s *model.FocusSession) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	k := keyOf(s)
	if c.observed && k == c.key {
		c.mu.Unlock()
		return
	}
	c.observed = true
	c.key = k
	if s != nil {
		cp := *s
		c.session = &cp
	} else {
		c.session = nil
	}

	events := c.resyncLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(events, snap)
}

// Resync recomputes the snapshot from the last observed session and restarts
// the countdown from it, whether or not anything changed.
func (c *Context) Resync() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	events := c.resyncLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(events, snap)
}

// Refresh fetches the active session and observes it. A failed fetch keeps the
// previous session, is remembered in Err and is returned.
func (c *Context) Refresh(ctx context.Context) error {
	if c.source == nil {
		return ErrNoSource
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.mu.Unlock()

	s, err := c.source.ActiveSession(ctx)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.err = err
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Warn("active session fetch failed", "error", err)
		c.broker.Publish(EventError, snap)
		return fmt.Errorf("fetching active session: %w", err)
	}
	c.err = nil
	c.mu.Unlock()

	c.Observe(s)
	return nil
}

// Start runs the local countdown without waiting for the backend.
func (c *Context) Start() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.countdown.Start()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.broker.Publish(EventState, snap)
}

// Pause freezes the local countdown without waiting for the backend.
func (c *Context) Pause() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.countdown.Pause()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.broker.Publish(EventState, snap)
}

// Snapshot returns the current view.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns the last observed session, or nil.
func (c *Context) Session() *model.FocusSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Err returns the error from the last failed Refresh, or nil after a successful one.
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Celebrating reports whether the completion celebration is raised.
func (c *Context) Celebrating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.celebrating
}

// SetCelebrating raises or lowers the completion celebration. Raising it always
// (re)arms a single auto-clear after the celebration duration.
func (c *Context) SetCelebrating(v bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.setCelebratingLocked(v)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.broker.Publish(EventCelebration, snap)
}

// Subscribe returns snapshot events until ctx is done or the context is closed.
func (c *Context) Subscribe(ctx context.Context) <-chan pubsub.Event[Snapshot] {
	return c.broker.Subscribe(ctx)
}

// Close cancels the countdown and the celebration auto-clear and closes all
// subscriptions. Callbacks that fire afterwards are ignored.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.countdown.Stop()
	c.celebGen++
	if c.celebTimer != nil {
		c.celebTimer.Stop()
		c.celebTimer = nil
	}
	c.mu.Unlock()

	c.broker.Shutdown()
}

// resyncLocked is the single reconciliation point between the backend's
// session and the local countdown.
func (c *Context) resyncLocked() []pubsub.EventType {
	c.resolved = ht.ResolveSnapshot(c.session, c.fallback, c.clock.Now())
	expired := c.countdown.Restart(c.resolved.TimeLeft, c.resolved.IsRunning)

	sessionID := ""
	if c.session != nil {
		sessionID = c.session.ID
	}
	c.logger.Debug("timer resynchronised",
		"session", sessionID,
		"time_left", c.resolved.TimeLeft,
		"running", c.resolved.IsRunning)

	events := []pubsub.EventType{EventResync}
	if expired {
		c.setCelebratingLocked(true)
		events = append(events, EventExpired, EventCelebration)
	}
	return events
}

func (c *Context) setCelebratingLocked(v bool) {
	c.celebGen++
	if c.celebTimer != nil {
		c.celebTimer.Stop()
		c.celebTimer = nil
	}
	c.celebrating = v
	if !v {
		return
	}

	gen := c.celebGen
	c.celebTimer = c.sched.AfterFunc(c.celebLen, func() { c.clearCelebration(gen) })
}

func (c *Context) clearCelebration(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.celebGen {
		c.mu.Unlock()
		return
	}
	c.celebrating = false
	c.celebTimer = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.broker.Publish(EventCelebration, snap)
}

func (c *Context) handleTick(int64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.broker.Publish(EventTick, snap)
}

func (c *Context) handleExpire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.setCelebratingLocked(true)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("focus countdown finished")
	c.publish([]pubsub.EventType{EventExpired, EventCelebration}, snap)
}

func (c *Context) snapshotLocked() Snapshot {
	total := c.resolved.TotalDuration
	left := c.countdown.Remaining()
	if left > total {
		left = total
	}
	running := c.countdown.Running()

	return Snapshot{
		Snapshot: ht.Snapshot{
			TimeLeft:         left,
			TotalDuration:    total,
			IsRunning:        running,
			Progress:         ht.ProgressPercent(left, total),
			HasActiveSession: c.resolved.HasActiveSession,
		},
		State:       c.stateLocked(left, total, running),
		Celebrating: c.celebrating,
		Loading:     c.loading,
		Session:     c.session,
		Err:         c.err,
	}
}

func (c *Context) stateLocked(left, total int64, running bool) State {
	switch {
	case c.countdown.Expired():
		return StateExpired
	case running:
		return StateRunning
	case c.resolved.HasActiveSession || left < total:
		return StatePaused
	default:
		return StateIdle
	}
}

func (c *Context) publish(events []pubsub.EventType, snap Snapshot) {
	for _, e := range events {
		c.broker.Publish(e, snap)
	}
}

// sessionKey captures every session field that affects the countdown.
type sessionKey struct {
	present bool
	id      string
	status  model.SessionStatus
	planned int
	start   int64
	pause   int64
	resume  int64
	end     int64
	paused  int64
}

func keyOf(s *model.FocusSession) sessionKey {
	if s == nil {
		return sessionKey{}
	}
	return sessionKey{
		present: true,
		id:      s.ID,
		status:  s.Status,
		planned: s.PlannedDurationMinutes,
		start:   s.StartTime.UnixNano(),
		pause:   unixNano(s.PauseTime),
		resume:  unixNano(s.ResumeTime),
		end:     unixNano(s.EndTime),
		paused:  s.PausedDurationSeconds,
	}
}

func unixNano(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

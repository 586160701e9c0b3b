package timer

import (
	"sync"
	"time"
)

// tickInterval is the countdown resolution.
const tickInterval = time.Second

// Countdown counts whole seconds down to zero. It reports each tick and the
// moment it reaches zero through callbacks, which always run outside its lock.
type Countdown struct {
	mu    sync.Mutex
	sched Scheduler

	remaining int64
	running   bool
	expired   bool
	stopped   bool

	// gen invalidates ticks scheduled before the last restart, pause or stop.
	gen  uint64
	tick Timer

	onTick   func(remaining int64)
	onExpire func()
}

// NewCountdown creates a paused countdown at seconds.
func NewCountdown(sched Scheduler, seconds int64) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{sched: sched, remaining: seconds}
}

// OnTick sets the callback run after every one-second decrement.
func (c *Countdown) OnTick(fn func(remaining int64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// OnExpire sets the callback run once when a running countdown reaches zero.
func (c *Countdown) OnExpire(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpire = fn
}

// Restart discards the current countdown and starts over at seconds.
//
// Restart never runs callbacks. When asked to run from zero it marks the
// countdown expired and returns true so the caller can react in its own context.
func (c *Countdown) Restart(seconds int64, running bool) (expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}

	c.cancelLocked()
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.expired = false

	if !running {
		return false
	}
	if seconds == 0 {
		c.expired = true
		return true
	}
	c.scheduleLocked()
	return false
}

// Start resumes a paused countdown. It does nothing at zero or when already running.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.running || c.remaining == 0 {
		return
	}
	c.expired = false
	c.scheduleLocked()
}

// Pause freezes the countdown at its current value.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Stop cancels any pending tick permanently. A stopped countdown ignores all
// further calls.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.stopped = true
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Expired reports whether the countdown reached zero since the last restart.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Countdown) scheduleLocked() {
	c.running = true
	gen := c.gen
	c.tick = c.sched.AfterFunc(tickInterval, func() { c.handleTick(gen) })
}

func (c *Countdown) cancelLocked() {
	c.gen++
	c.running = false
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
}

func (c *Countdown) handleTick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running || c.stopped {
		c.mu.Unlock()
		return
	}

	c.remaining--
	expired := c.remaining <= 0
	if expired {
		c.remaining = 0
		c.running = false
		c.expired = true
		c.tick = nil
	} else {
		c.scheduleLocked()
	}

	remaining := c.remaining
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
}

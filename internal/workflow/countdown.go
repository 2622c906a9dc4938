package workflow

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Countdown is a cancelable once-per-interval ticker counting down to
// zero. The bike-rental wizard uses it for the 60-second unlock window and
// the top-up wizard for the lockout display. At most one countdown may be
// active per session; callers must Stop the previous one first.
type Countdown struct {
	seconds  int
	warnAt   int
	interval time.Duration
	logger   *zap.Logger

	onTick   func(remaining int)
	onWarn   func()
	onExpire func()

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
	started bool
}

// CountdownCallbacks carries the countdown's observer hooks. Any nil
// callback is skipped. onWarn fires exactly once, at warnAt remaining.
type CountdownCallbacks struct {
	OnTick   func(remaining int)
	OnWarn   func()
	OnExpire func()
}

// NewCountdown creates a countdown of the given length. warnAt of zero
// disables the warning. interval is exposed for tests; the kiosk uses one
// second.
func NewCountdown(seconds, warnAt int, interval time.Duration, cb CountdownCallbacks, logger *zap.Logger) *Countdown {
	return &Countdown{
		seconds:  seconds,
		warnAt:   warnAt,
		interval: interval,
		onTick:   cb.OnTick,
		onWarn:   cb.OnWarn,
		onExpire: cb.OnExpire,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins ticking in a background goroutine. Starting twice is a
// no-op.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	remaining := c.seconds
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			remaining--

			// Skip callbacks once stopped so expiry can never fire
			// after session teardown.
			c.mu.Lock()
			stopped := c.stopped
			if remaining <= 0 && !stopped {
				c.stopped = true
			}
			c.mu.Unlock()
			if stopped {
				return
			}

			if c.onTick != nil {
				c.onTick(remaining)
			}
			if remaining == c.warnAt && c.warnAt > 0 && c.onWarn != nil {
				c.onWarn()
			}
			if remaining <= 0 {
				c.logger.Debug("Countdown expired")
				if c.onExpire != nil {
					c.onExpire()
				}
				return
			}
		}
	}
}

// Stop cancels the countdown and reports whether this call won: a true
// return guarantees onExpire will never fire. A false return means the
// countdown had already expired or been stopped. Stopping twice is safe.
func (c *Countdown) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.stopped = true
	close(c.stopCh)
	return true
}

package session

import (
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

// CountdownUnknown is displayed when no authoritative time is known.
const CountdownUnknown = "--"

// Countdown interpolates the local player's remaining time between
// authoritative snapshots. It is display-only: it counts down from the last
// server value, never below zero and never up, and the next authoritative
// value always replaces whatever it has interpolated.
//
// At most one ticker is ever active. Every path that starts a ticker releases
// the previous one first.
type Countdown struct {
	clock     clockwork.Clock
	display   Display
	ticker    clockwork.Ticker
	remaining int
}

// NewCountdown returns an idle countdown bound to the given display.
func NewCountdown(clock clockwork.Clock, display Display) *Countdown {
	return &Countdown{clock: clock, display: display}
}

// SetAuthoritative installs a fresh server value: the previous ticker is
// released, the value is shown immediately, and a new 1-second ticker starts
// only when there is time left to count down.
func (c *Countdown) SetAuthoritative(seconds int) {
	c.release()
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.display.SetCountdown(strconv.Itoa(seconds))
	if seconds > 0 {
		c.ticker = c.clock.NewTicker(time.Second)
	}
}

// TickC returns the active ticker's channel, or nil when idle. A nil channel
// blocks forever in a select, so callers can always include it as a case.
func (c *Countdown) TickC() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Tick advances the display by one second. On reaching zero the ticker
// releases itself.
func (c *Countdown) Tick() {
	if c.ticker == nil {
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	c.display.SetCountdown(strconv.Itoa(c.remaining))
	if c.remaining == 0 {
		c.release()
	}
}

// Reset releases the ticker and blanks the display to the unknown marker.
func (c *Countdown) Reset() {
	c.release()
	c.remaining = 0
	c.display.SetCountdown(CountdownUnknown)
}

// Active reports whether a ticker is currently running.
func (c *Countdown) Active() bool {
	return c.ticker != nil
}

// Remaining returns the current display value in seconds.
func (c *Countdown) Remaining() int {
	return c.remaining
}

func (c *Countdown) release() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// Package timer holds the small time primitives the activities are built
// on: a cancellable delay, a per-second countdown, and a message rotator.
// Everything here stops promptly when its context is cancelled.
package timer

import (
	"context"
	"fmt"
	"time"
)

// Sleep waits for d or until ctx is done, whichever comes first.
// It returns ctx.Err() if the wait was cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithTick sets the countdown resolution. Default is one second.
func WithTick(d time.Duration) Option {
	return func(c *Countdown) {
		if d > 0 {
			c.tick = d
		}
	}
}

// Countdown reports the time left in a fixed-length interval at a regular
// tick. The interval always ends on the deadline, not on a tick, so a
// phase of 4s lasts exactly 4s even if a tick callback is slow.
type Countdown struct {
	tick time.Duration
}

// NewCountdown creates a countdown with the given options.
func NewCountdown(opts ...Option) *Countdown {
	c := &Countdown{tick: time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks for total, calling fn with the remaining time right away and
// then on every tick while time remains. Returns nil when the interval
// elapses, or ctx.Err() if cancelled first. fn may be nil.
func (c *Countdown) Run(ctx context.Context, total time.Duration, fn func(remaining time.Duration)) error {
	if total <= 0 {
		return ctx.Err()
	}
	deadline := time.Now().Add(total)
	if fn != nil {
		fn(total)
	}

	done := time.NewTimer(total)
	defer done.Stop()
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done.C:
			return nil
		case <-ticker.C:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				// Deadline timer fires in the same instant.
				continue
			}
			if fn != nil {
				fn(remaining.Round(c.tick))
			}
		}
	}
}

// Seconds returns the remaining time as whole seconds, rounded up, so a
// countdown reads 4, 3, 2, 1 and never shows 0 while running.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// FormatRemaining returns a short zh-TW duration for on-screen countdowns.
// Under a minute it counts seconds; above that it rounds to minutes.
func FormatRemaining(d time.Duration) string {
	sec := Seconds(d)
	if sec < 60 {
		return fmt.Sprintf("%d秒", sec)
	}
	m := (sec + 30) / 60
	return fmt.Sprintf("%d分鐘", m)
}

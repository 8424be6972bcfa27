package timer

import (
	"context"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// RotatorOption configures the rotator.
type RotatorOption func(*Rotator)

// WithRotateInterval sets how long each message stays up.
func WithRotateInterval(d time.Duration) RotatorOption {
	return func(r *Rotator) {
		if d > 0 {
			r.interval = d
		}
	}
}

// Rotator cycles through a fixed list of messages on a slow interval
// (default: 2 seconds). Used for "still working" text while a story is
// being generated.
type Rotator struct {
	messages []string
	log      *logger.Logger
	interval time.Duration
}

// NewRotator creates a rotator over messages.
func NewRotator(messages []string, log *logger.Logger, opts ...RotatorOption) *Rotator {
	r := &Rotator{
		messages: messages,
		log:      log,
		interval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run shows the first message immediately and the next one every interval,
// wrapping around at the end. Blocks until ctx is cancelled.
// Intended to be called as a goroutine.
func (r *Rotator) Run(ctx context.Context, show func(string)) {
	if len(r.messages) == 0 || show == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	i := 0
	show(r.messages[i])
	r.log.Debug("rotator started (interval=%s, messages=%d)", r.interval, len(r.messages))

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("rotator stopped after %d messages", i+1)
			return
		case <-ticker.C:
			i++
			show(r.messages[i%len(r.messages)])
		}
	}
}

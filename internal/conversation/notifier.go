package conversation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

var _ domain.Notifier = (*Notifier)(nil)

// DefaultQuietWindow is how long an urgent notice stays muted after it
// was shown.
const DefaultQuietWindow = 30 * time.Second

// Screen shows notices to the listener. display.UI implements it.
type Screen interface {
	PrintChat(text string)
	PrintUrgent(text string)
}

// Notifier puts engine notices on the screen. An urgent notice that
// repeats inside the quiet window is logged but not shown again, so a
// speaker that keeps failing does not fill a dark bedroom screen with
// the same red line.
type Notifier struct {
	screen Screen
	log    *logger.Logger
	quiet  time.Duration

	mu    sync.Mutex
	shown map[string]time.Time // urgent text -> last shown
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithQuietWindow sets how long a repeated urgent notice is held back.
// Zero shows every notice.
func WithQuietWindow(d time.Duration) NotifierOption {
	return func(n *Notifier) { n.quiet = max(d, 0) }
}

// NewNotifier creates a notifier. A nil screen prints plain lines to
// stdout.
func NewNotifier(screen Screen, log *logger.Logger, opts ...NotifierOption) *Notifier {
	if screen == nil {
		screen = plainScreen{w: os.Stdout}
	}
	n := &Notifier{
		screen: screen,
		log:    log,
		quiet:  DefaultQuietWindow,
		shown:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify shows a normal notice. Blank messages are dropped.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Debug("notify: %s", message)
	n.screen.PrintChat(message)
	return nil
}

// NotifyUrgent shows a notice in the urgent style unless the same text
// was shown within the quiet window.
func (n *Notifier) NotifyUrgent(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now()
	n.mu.Lock()
	last, seen := n.shown[message]
	muted := seen && now.Sub(last) < n.quiet
	if !muted {
		n.shown[message] = now
	}
	n.mu.Unlock()

	if muted {
		n.log.Debug("notify-urgent (muted): %s", message)
		return nil
	}
	n.log.Warn("notify-urgent: %s", message)
	n.screen.PrintUrgent(message)
	return nil
}

type plainScreen struct{ w io.Writer }

func (s plainScreen) PrintChat(text string)   { fmt.Fprintln(s.w, "  "+text) }
func (s plainScreen) PrintUrgent(text string) { fmt.Fprintln(s.w, "  ! "+text) }

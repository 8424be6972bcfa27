package breathing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/timer"
)

// Option configures the runner.
type Option func(*Runner)

// WithProtocol replaces the default 4-7-8 protocol.
func WithProtocol(p Protocol) Option {
	return func(r *Runner) { r.proto = p }
}

// WithCycles overrides the number of breathing cycles.
func WithCycles(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.proto.Cycles = n
		}
	}
}

// WithVoice sets the prosody for spoken instructions.
func WithVoice(v domain.VoiceOptions) Option {
	return func(r *Runner) { r.voice = v }
}

// WithDisplay sets where instructions and phase changes are shown.
func WithDisplay(d domain.BreathingDisplay) Option {
	return func(r *Runner) {
		if d != nil {
			r.display = d
		}
	}
}

// WithErrorHandler sets the callback for speech failures that end the
// session. It runs on the runner's goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Runner) { r.onError = fn }
}

// Runner drives a breathing session through its phases. Cycle phases
// advance on the clock; spoken instructions only accompany them.
// Stop ends a session from any point and always restores the idle screen.
type Runner struct {
	speaker   domain.Speaker
	display   domain.BreathingDisplay
	log       *logger.Logger
	proto     Protocol
	voice     domain.VoiceOptions
	countdown *timer.Countdown
	onError   func(error)

	mu       sync.Mutex
	active   bool
	cycle    int
	phase    domain.PhaseKind
	phaseEnd time.Time
	runID    uint64
	cancel   context.CancelFunc

	// paintMu orders display updates. It is never held together with mu
	// while the display is called, so a slow display cannot block Status.
	paintMu sync.Mutex
}

// New creates a runner speaking through speaker.
func New(speaker domain.Speaker, log *logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		speaker:   speaker,
		display:   nopDisplay{},
		log:       log,
		proto:     DefaultProtocol(),
		voice:     domain.DefaultVoice,
		countdown: timer.NewCountdown(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Protocol returns the protocol this runner uses.
func (r *Runner) Protocol() Protocol { return r.proto }

// Start begins a session and returns immediately. It does nothing if a
// session is already active.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.proto.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil
	}
	if r.speaker == nil || !r.speaker.Available() {
		r.mu.Unlock()
		return domain.ErrSpeechUnavailable
	}
	r.runID++
	id := r.runID
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.active = true
	r.cycle = 0
	r.phase = domain.PhaseIdle
	r.mu.Unlock()

	r.log.Info("breathing session started (run %d, %d cycles)", id, r.proto.Cycles)
	go r.run(runCtx, id)
	return nil
}

// Stop ends the session. Safe to call at any time, any number of times.
func (r *Runner) Stop() {
	r.stop(0)
}

// IsActive reports whether a session is running.
func (r *Runner) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Status returns a snapshot of the session.
func (r *Runner) Status() domain.BreathingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := domain.BreathingSession{
		Active:      r.active,
		Cycle:       r.cycle,
		TotalCycles: r.proto.Cycles,
		Phase:       r.phase,
	}
	if r.active && !r.phaseEnd.IsZero() {
		s.Remaining = max(time.Until(r.phaseEnd), 0)
	}
	return s
}

// ── Session ─────────────────────────────────────────────────────────

func (r *Runner) run(ctx context.Context, id uint64) {
	if !r.show(id, domain.PhaseIdle, textWelcome, textWelcomeDetail) {
		return
	}
	if !r.sayAndWait(ctx, id, lineWelcome) {
		return
	}

	for _, ph := range r.proto.Prep {
		if !r.prep(ctx, id, ph) {
			return
		}
	}

	for c := 1; c <= r.proto.Cycles; c++ {
		for _, ph := range r.proto.Cycle {
			if !r.breathe(ctx, id, c, ph) {
				return
			}
		}
		if !r.completeCycle(id) {
			return
		}
		if c < r.proto.Cycles {
			r.enter(id, domain.BreathingPhase{Kind: domain.PhaseIdle, Duration: r.proto.CyclePause})
			r.show(id, domain.PhaseIdle, textTransition, transitionDetail(c))
			if timer.Sleep(ctx, r.proto.CyclePause) != nil {
				return
			}
		}
	}

	r.enter(id, domain.BreathingPhase{Kind: domain.PhaseIdle})
	if !r.show(id, domain.PhaseIdle, textCompletion, textCompletionSub) {
		return
	}
	if !r.sayAndWait(ctx, id, lineCompletion) {
		return
	}
	if timer.Sleep(ctx, r.proto.CompletionPause) != nil {
		return
	}
	r.log.Info("breathing session complete")
	r.stop(id)
}

// prep speaks a preparation instruction, lets it settle, and holds the
// phase for at least its configured duration.
func (r *Runner) prep(ctx context.Context, id uint64, ph domain.BreathingPhase) bool {
	start := time.Now()
	if !r.enter(id, ph) || !r.show(id, ph.Kind, ph.Instruction, textPrepDetail) {
		return false
	}

	if !r.sayAndWait(ctx, id, ph.Instruction) {
		return false
	}
	if timer.Sleep(ctx, r.proto.Settle) != nil {
		return false
	}
	if rest := ph.Duration - time.Since(start); rest > 0 {
		if timer.Sleep(ctx, rest) != nil {
			return false
		}
	}
	return r.current(id)
}

// breathe runs one timed cycle phase. The instruction is spoken in the
// background while the countdown holds the phase for exactly its duration.
func (r *Runner) breathe(ctx context.Context, id uint64, cycle int, ph domain.BreathingPhase) bool {
	if !r.enter(id, ph) {
		return false
	}
	go r.sayAsync(ctx, id, ph.Instruction)

	err := r.countdown.Run(ctx, ph.Duration, func(rem time.Duration) {
		r.show(id, ph.Kind, ph.Instruction, countdownText(cycle, ph.Label, timer.Seconds(rem)))
	})
	return err == nil && r.current(id)
}

// sayAndWait speaks a line and waits for it. Returns false if the run
// ended meanwhile or speech failed (in which case the run is stopped).
func (r *Runner) sayAndWait(ctx context.Context, id uint64, text string) bool {
	err := r.speaker.Speak(ctx, text, r.voice)
	if !r.current(id) {
		return false
	}
	if err != nil {
		if errors.Is(err, domain.ErrSpeechCancelled) {
			r.log.Debug("awaited line cancelled from outside, stopping")
			r.stop(id)
			return false
		}
		r.fail(id, err)
		return false
	}
	return true
}

// sayAsync speaks a line without holding up the phase. Being cut off by
// the next instruction is expected; anything else ends the run.
func (r *Runner) sayAsync(ctx context.Context, id uint64, text string) {
	err := r.speaker.Speak(ctx, text, r.voice)
	if err == nil || errors.Is(err, domain.ErrSpeechCancelled) || !r.current(id) {
		return
	}
	r.fail(id, err)
}

// ── State ───────────────────────────────────────────────────────────

func (r *Runner) current(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active && r.runID == id
}

func (r *Runner) enter(id uint64, ph domain.BreathingPhase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.runID != id {
		return false
	}
	r.phase = ph.Kind
	r.phaseEnd = time.Time{}
	if ph.Duration > 0 {
		r.phaseEnd = time.Now().Add(ph.Duration)
	}
	r.log.Debug("phase %s (cycle %d/%d)", ph.Kind, r.cycle+1, r.proto.Cycles)
	return true
}

// show updates the display if run id is still current. Stop bumps the
// run id before it takes paintMu for its reset, so a stale run can never
// paint over that reset.
func (r *Runner) show(id uint64, kind domain.PhaseKind, text, detail string) bool {
	r.paintMu.Lock()
	defer r.paintMu.Unlock()
	if !r.current(id) {
		return false
	}
	r.display.SetPhase(kind)
	r.display.SetInstruction(text, detail)
	return true
}

func (r *Runner) completeCycle(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.runID != id {
		return false
	}
	r.cycle++
	return true
}

// stop ends run id, or whatever is running when id is 0.
func (r *Runner) stop(id uint64) bool {
	r.mu.Lock()
	if id != 0 && r.runID != id {
		r.mu.Unlock()
		return false
	}
	was := r.active
	r.runID++
	r.active = false
	r.cycle = 0
	r.phase = domain.PhaseIdle
	r.phaseEnd = time.Time{}
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if was {
		r.speaker.Cancel()
		r.log.Info("breathing session stopped")
	}
	r.paintMu.Lock()
	r.display.SetPhase(domain.PhaseIdle)
	r.display.SetInstruction(textInitial, textInitialDetail)
	r.paintMu.Unlock()
	return true
}

func (r *Runner) fail(id uint64, err error) {
	if !r.stop(id) {
		return
	}
	err = fmt.Errorf("breathing: %w", err)
	r.log.Error("%v", err)
	if r.onError != nil {
		r.onError(err)
	}
}

type nopDisplay struct{}

func (nopDisplay) SetInstruction(string, string) {}
func (nopDisplay) SetPhase(domain.PhaseKind)     {}

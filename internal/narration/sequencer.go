// Package narration plays a story aloud one segment at a time.
package narration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/timer"
)

// Option configures the sequencer.
type Option func(*Sequencer)

// WithVoice sets the prosody used for every segment.
func WithVoice(v domain.VoiceOptions) Option {
	return func(s *Sequencer) { s.voice = v }
}

// WithGap sets the pause between segments. Default 1s.
func WithGap(d time.Duration) Option {
	return func(s *Sequencer) { s.gap = d }
}

// WithStallTimeout sets the shortest time a segment may take before it
// is treated as hung and skipped. The real limit is the larger of this
// and three times the segment's duration hint. Default 15s.
func WithStallTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.minStall = d }
}

// WithObserver registers a progress observer.
func WithObserver(o domain.NarrationObserver) Option {
	return func(s *Sequencer) { s.observer = o }
}

// WithErrorHandler sets the callback for speech failures that end
// narration. It runs on the narration goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Sequencer) { s.onError = fn }
}

// Sequencer narrates a loaded story: speak a segment, wait for it to
// finish, pause, move on. It is idle or playing; Stop returns it to idle
// from anywhere. Every run carries an ID so callbacks from an older run
// find themselves stale and do nothing.
type Sequencer struct {
	speaker  domain.Speaker
	log      *logger.Logger
	voice    domain.VoiceOptions
	gap      time.Duration
	minStall time.Duration
	observer domain.NarrationObserver
	onError  func(error)

	mu      sync.Mutex
	story   *domain.Story
	index   int
	playing bool
	runID   uint64
	cancel  context.CancelFunc
}

// New creates a sequencer speaking through speaker.
func New(speaker domain.Speaker, log *logger.Logger, opts ...Option) *Sequencer {
	s := &Sequencer{
		speaker:  speaker,
		log:      log,
		voice:    domain.DefaultVoice,
		gap:      time.Second,
		minStall: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the current story and rewinds to the first segment.
// Loading while playing is refused with ErrNotIdle; stop first.
func (s *Sequencer) Load(st *domain.Story) error {
	if st == nil || len(st.Segments) == 0 {
		return domain.ErrNoStory
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		return domain.ErrNotIdle
	}
	s.story = st.Clone()
	s.index = 0
	s.log.Debug("loaded %q (%d segments)", st.Title, len(st.Segments))
	return nil
}

// Play starts narrating from the first segment and returns immediately.
// It does nothing if already playing or if no story is loaded, and
// returns ErrSpeechUnavailable when there is no way to speak.
func (s *Sequencer) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.playing || s.story == nil {
		s.mu.Unlock()
		return nil
	}
	if s.speaker == nil || !s.speaker.Available() {
		s.mu.Unlock()
		return domain.ErrSpeechUnavailable
	}

	s.runID++
	id := s.runID
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.playing = true
	s.index = 0
	st := s.story
	s.mu.Unlock()

	// Anything still talking from before is cut off.
	s.speaker.Cancel()

	s.log.Info("playing %q (run %d)", st.Title, id)
	go s.run(runCtx, id, st)
	return nil
}

// Stop ends narration. Safe to call at any time, any number of times.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	was := s.playing
	s.runID++
	s.playing = false
	s.index = 0
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !was {
		return
	}
	s.speaker.Cancel()
	s.log.Info("narration stopped")
	if s.observer != nil {
		s.observer.NarrationStopped(false)
	}
}

// IsPlaying reports whether narration is in progress.
func (s *Sequencer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Index returns the segment currently being narrated (0 when idle).
func (s *Sequencer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Story returns a copy of the loaded story, or nil.
func (s *Sequencer) Story() *domain.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.story.Clone()
}

// ── Run loop ────────────────────────────────────────────────────────

func (s *Sequencer) run(ctx context.Context, id uint64, st *domain.Story) {
	last := len(st.Segments) - 1
	for i, seg := range st.Segments {
		if !s.advance(id, i) {
			return
		}
		if s.observer != nil {
			s.observer.SegmentStarted(i, seg)
		}

		err := s.speak(ctx, seg)
		if !s.current(id) {
			return
		}
		if err != nil {
			if errors.Is(err, domain.ErrSpeechCancelled) {
				s.log.Debug("segment %d cancelled from outside, stopping", i)
				s.Stop()
				return
			}
			s.fail(id, fmt.Errorf("segment %d: %w", i+1, err))
			return
		}

		if i == last {
			break
		}
		if timer.Sleep(ctx, s.gap) != nil {
			return
		}
	}
	s.finish(id)
}

// speak says one segment. If it runs past the stall limit the utterance
// is cancelled and treated as done so narration keeps moving.
func (s *Sequencer) speak(ctx context.Context, seg domain.Segment) error {
	limit := max(s.minStall, 3*seg.DurationHint)

	var stalled atomic.Bool
	guard := time.AfterFunc(limit, func() {
		stalled.Store(true)
		s.speaker.Cancel()
	})
	err := s.speaker.Speak(ctx, seg.Text, s.voice)
	guard.Stop()

	if stalled.Load() && ctx.Err() == nil {
		s.log.Warn("segment stalled after %s, skipping", limit)
		return nil
	}
	return err
}

// advance moves to segment i if run id is still current.
func (s *Sequencer) advance(id uint64, i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != id {
		return false
	}
	s.index = i
	return true
}

func (s *Sequencer) current(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID == id
}

// end returns to idle if run id is still current.
func (s *Sequencer) end(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != id {
		return false
	}
	s.playing = false
	s.index = 0
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *Sequencer) finish(id uint64) {
	if !s.end(id) {
		return
	}
	s.log.Info("narration finished")
	if s.observer != nil {
		s.observer.NarrationStopped(true)
	}
}

func (s *Sequencer) fail(id uint64, err error) {
	if !s.end(id) {
		return
	}
	s.log.Error("narration failed: %v", err)
	if s.observer != nil {
		s.observer.NarrationStopped(false)
	}
	if s.onError != nil {
		s.onError(err)
	}
}

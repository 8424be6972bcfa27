package story

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

const (
	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 15 * time.Second
	// minGeneratedRunes is the shortest reply treated as a story.
	minGeneratedRunes = 50
)

// Option configures a Source.
type Option func(*Source)

// WithTimeout sets the generation deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRand sets the random source used to pick prompt ingredients.
func WithRand(rng *rand.Rand) Option {
	return func(s *Source) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// Source produces a story on demand. It asks the generator for a fresh
// one and falls back to the canned pool on any failure, so Generate
// always returns something playable.
type Source struct {
	gen     domain.Generator // nil when generation is unavailable
	pool    *Pool
	log     *logger.Logger
	timeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSource creates a story source. gen may be nil.
func NewSource(gen domain.Generator, pool *Pool, log *logger.Logger, opts ...Option) *Source {
	s := &Source{
		gen:     gen,
		pool:    pool,
		log:     log,
		timeout: DefaultTimeout,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool returns the fallback pool backing this source.
func (s *Source) Pool() *Pool { return s.pool }

// CanGenerate reports whether a generator is configured.
func (s *Source) CanGenerate() bool { return s.gen != nil }

// Generate returns a new story. It never fails and never returns nil;
// it never waits much longer than the configured timeout.
func (s *Source) Generate(ctx context.Context) *domain.Story {
	if s.gen == nil {
		s.log.Debug("generation unavailable, using fallback pool")
		return s.pool.Next()
	}

	s.rngMu.Lock()
	p := NewPrompt(s.rng, newID("req-"))
	s.rngMu.Unlock()

	s.log.Info("generating story: theme=%s character=%s setting=%s", p.Theme, p.Character, p.Setting)
	start := time.Now()

	text, err := s.ask(ctx, p.Text())
	if err != nil {
		s.log.Warn("generation failed after %s, using fallback: %v", time.Since(start).Round(time.Millisecond), err)
		return s.pool.Next()
	}

	segs := Split(text)
	if len(segs) == 0 {
		s.log.Warn("generated text produced no segments, using fallback")
		return s.pool.Next()
	}

	s.log.Info("story generated in %s: %d segments", time.Since(start).Round(time.Millisecond), len(segs))
	return &domain.Story{
		ID:       newID("ai-story-"),
		Title:    fmt.Sprintf("AI創作故事（%s）", p.Theme),
		Source:   domain.SourceGenerated,
		Segments: segs,
	}
}

// ask runs one generator call against the deadline. The call runs in its
// own goroutine; if the deadline wins, its late reply lands in the
// buffered channel and is dropped.
func (s *Source) ask(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := s.gen.Ask(ctx, prompt)
		ch <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("after %s: %w", s.timeout, domain.ErrGenerationTimeout)
		}
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("generator: %w", r.err)
		}
		text := strings.TrimSpace(r.text)
		if n := utf8.RuneCountInString(text); n < minGeneratedRunes {
			return "", fmt.Errorf("%d characters: %w", n, domain.ErrInvalidGeneration)
		}
		return text, nil
	}
}

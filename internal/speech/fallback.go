package speech

import (
	"context"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/timer"
)

var (
	_ domain.Speaker = Silent{}
	_ domain.Speaker = (*Pacer)(nil)
)

// Silent is the speaker used when no speech capability is configured.
// It reports itself unavailable and refuses to speak.
type Silent struct{}

func (Silent) Speak(context.Context, string, domain.VoiceOptions) error {
	return domain.ErrSpeechUnavailable
}

func (Silent) Cancel()         {}
func (Silent) Available() bool { return false }

// DefaultPace is how long the Pacer holds each rune at normal rate.
const DefaultPace = 150 * time.Millisecond

// Pacer is a read-along speaker: it makes no sound but takes as long as
// reading the text aloud would, so narration and breathing keep their
// rhythm on machines without audio.
type Pacer struct {
	perRune time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// NewPacer returns a Pacer holding perRune per character at rate 1.0.
// A non-positive perRune uses DefaultPace.
func NewPacer(perRune time.Duration) *Pacer {
	if perRune <= 0 {
		perRune = DefaultPace
	}
	return &Pacer{perRune: perRune}
}

// Duration is how long Speak holds for text at the given rate.
func (p *Pacer) Duration(text string, opts domain.VoiceOptions) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * p.perRune
	if opts.Rate > 0 {
		d = time.Duration(math.Round(float64(d) / opts.Rate))
	}
	return d
}

// Speak waits for the reading time of text. A newer Speak or Cancel
// cuts it off with domain.ErrSpeechCancelled.
func (p *Pacer) Speak(ctx context.Context, text string, opts domain.VoiceOptions) error {
	uctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	my := p.seq
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.seq == my {
			p.cancel = nil
		}
		p.mu.Unlock()
	}()

	if err := timer.Sleep(uctx, p.Duration(text, opts)); err != nil {
		return domain.ErrSpeechCancelled
	}
	return nil
}

// Cancel cuts off the current utterance, if any.
func (p *Pacer) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pacer) Available() bool { return true }

package speech

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Sink plays WAV audio. Play blocks until the audio ends or ctx is
// cancelled, in which case it returns domain.ErrSpeechCancelled.
type Sink interface {
	Play(ctx context.Context, wav []byte) error
}

// Compile-time interface check.
var _ Sink = (*Player)(nil)

// Player handles audio playback of WAV/PCM data via oto.
type Player struct {
	ctx  *oto.Context
	log  *logger.Logger
	mu   sync.Mutex
	busy bool
}

// NewPlayer creates an audio player at the given sample rate.
// Initializes the system audio context; oto allows one per process.
// Returns an error if the audio device is unavailable.
func NewPlayer(sampleRate int, log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", sampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play plays WAV audio data synchronously. Blocks until playback finishes
// or ctx is cancelled.
func (p *Player) Play(ctx context.Context, wavData []byte) error {
	if ctx.Err() != nil {
		return domain.ErrSpeechCancelled
	}
	pcm, err := extractPCM(wavData)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.busy = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			p.log.Debug("audio player: interrupted")
			return domain.ErrSpeechCancelled
		case <-ticker.C:
		}
	}
	return nil
}

// Busy reports whether audio is playing right now.
func (p *Player) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

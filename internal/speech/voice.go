// Package speech provides the speakers the app talks through: a
// synthesized voice (Azure or Polly, cached, played with oto), a silent
// stand-in when no speech is configured, a read-along pacer, and the
// whisper-based ear for voice commands.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Compile-time interface check.
var _ domain.Speaker = (*Voice)(nil)

// VoiceOption configures the Voice.
type VoiceOption func(*Voice)

// WithChunkSize sets the approximate max character count per TTS chunk.
// Text longer than this is split at sentence boundaries and synthesized
// in parallel so playback doesn't stall between sentences.
func WithChunkSize(n int) VoiceOption {
	return func(v *Voice) {
		v.chunkSize = n
	}
}

// WithCacheDir sets the filesystem directory used for persistent audio
// caching. If empty, the disk layer is disabled (pure in-memory).
func WithCacheDir(dir string) VoiceOption {
	return func(v *Voice) {
		v.cacheDir = dir
	}
}

// WithDiskWrite controls whether new cache entries are written to disk.
// Even when false, existing on-disk entries are still read.
func WithDiskWrite(enabled bool) VoiceOption {
	return func(v *Voice) {
		v.diskWrite = enabled
	}
}

// WithPrefetchLimit caps concurrent synthesis requests made by Prefetch.
func WithPrefetchLimit(n int) VoiceOption {
	return func(v *Voice) {
		if n > 0 {
			v.prefetchLimit = n
		}
	}
}

// Voice speaks through a synthesizer and an audio sink. One utterance
// plays at a time: a new Speak, or Cancel, cuts off the current one.
// Long text is chunked at sentence boundaries, synthesized in parallel,
// and played in order.
//
// An internal AudioCache transparently avoids re-synthesizing identical
// text. Use Prefetch to warm it for text that will be spoken soon.
type Voice struct {
	tts   Synthesizer
	sink  Sink
	log   *logger.Logger
	cache *AudioCache

	chunkSize     int
	cacheDir      string
	diskWrite     bool
	prefetchLimit int

	playMu sync.Mutex // held for the length of one utterance

	mu       sync.Mutex
	seq      uint64
	cancel   context.CancelFunc // cancels the current utterance
	speaking bool
}

// NewVoice creates a voice with the given synthesizer and sink.
func NewVoice(tts Synthesizer, sink Sink, log *logger.Logger, opts ...VoiceOption) *Voice {
	v := &Voice{
		tts:           tts,
		sink:          sink,
		log:           log,
		chunkSize:     200,
		diskWrite:     true,
		prefetchLimit: 4,
	}
	for _, opt := range opts {
		opt(v)
	}
	// Build the cache after options are applied so cacheDir and
	// diskWrite are settled.
	v.cache = NewAudioCache(tts.Voice(), v.cacheDir, v.diskWrite, log)
	return v
}

// Available reports true: a Voice is only built when a synthesizer and an
// audio device exist.
func (v *Voice) Available() bool { return true }

// IsSpeaking reports whether an utterance is being synthesized or played.
func (v *Voice) IsSpeaking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.speaking
}

// Cancel cuts off the current utterance, if any.
func (v *Voice) Cancel() {
	v.mu.Lock()
	cancel := v.cancel
	v.mu.Unlock()
	if cancel != nil {
		cancel()
		v.log.Debug("voice: cancelled")
	}
}

// Speak says text and blocks until it has been played. Returns
// domain.ErrSpeechCancelled if cut off by Cancel, a newer Speak, or ctx.
func (v *Voice) Speak(ctx context.Context, text string, opts domain.VoiceOptions) error {
	uctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.seq++
	my := v.seq
	v.cancel = cancel
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		if v.seq == my {
			v.cancel = nil
		}
		v.mu.Unlock()
	}()

	v.playMu.Lock()
	defer v.playMu.Unlock()
	if uctx.Err() != nil {
		return domain.ErrSpeechCancelled
	}

	v.setSpeaking(true)
	defer v.setSpeaking(false)

	v.log.Debug("voice: speaking: %s", truncateForLog(text, 60))
	err := v.process(uctx, text, opts)
	if uctx.Err() != nil {
		return domain.ErrSpeechCancelled
	}
	return err
}

func (v *Voice) setSpeaking(b bool) {
	v.mu.Lock()
	v.speaking = b
	v.mu.Unlock()
}

// process synthesizes and plays one utterance, using chunked parallel
// synthesis for long text. Failed chunks are skipped; if every chunk
// fails the utterance fails.
func (v *Voice) process(ctx context.Context, text string, opts domain.VoiceOptions) error {
	chunks := v.splitChunks(text)
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) > 1 {
		v.log.Debug("voice: split into %d chunks for parallel synthesis", len(chunks))
	}

	type result struct {
		idx   int
		audio []byte
		err   error
	}
	results := make(chan result, len(chunks))
	for i, chunk := range chunks {
		go func(idx int, t string) {
			audio, err := v.synthesizeWithCache(ctx, t, opts)
			results <- result{idx: idx, audio: audio, err: err}
		}(i, chunk)
	}

	audioSlots := make([][]byte, len(chunks))
	var firstErr error
	for range chunks {
		r := <-results
		if r.err != nil {
			v.log.Error("voice: chunk %d synthesis failed: %v", r.idx, r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		audioSlots[r.idx] = r.audio
	}

	played := 0
	for i, audio := range audioSlots {
		if audio == nil {
			v.log.Debug("voice: skipping chunk %d (synthesis failed)", i)
			continue
		}
		if ctx.Err() != nil {
			return domain.ErrSpeechCancelled
		}
		if err := v.sink.Play(ctx, audio); err != nil {
			if errors.Is(err, domain.ErrSpeechCancelled) {
				return err
			}
			return fmt.Errorf("%w: playback: %w", domain.ErrSpeechFailed, err)
		}
		played++
	}

	if played == 0 && firstErr != nil {
		if errors.Is(firstErr, domain.ErrSpeechFailed) {
			return firstErr
		}
		return fmt.Errorf("%w: %w", domain.ErrSpeechFailed, firstErr)
	}
	return nil
}

// synthesizeWithCache checks the cache first, otherwise calls the
// synthesizer and stores the result. Thread-safe.
func (v *Voice) synthesizeWithCache(ctx context.Context, text string, opts domain.VoiceOptions) ([]byte, error) {
	if audio, ok := v.cache.Get(text, opts); ok {
		return audio, nil
	}
	audio, err := v.tts.Synthesize(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	v.cache.Put(text, opts, audio)
	return audio, nil
}

// splitChunks breaks text into sentence-boundary chunks of approximately
// v.chunkSize characters. Short text comes back as a single chunk.
func (v *Voice) splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if v.chunkSize <= 0 || utf8.RuneCountInString(text) <= v.chunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	n := 0
	for _, s := range sentences(text) {
		sl := utf8.RuneCountInString(s)
		if n > 0 && n+sl > v.chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			n = 0
		}
		current.WriteString(s)
		n += sl
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// sentences splits text after sentence-ending punctuation (Latin or CJK),
// keeping the punctuation and trailing spaces with the sentence.
func sentences(text string) []string {
	var out []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) {
			for i+1 < len(runes) && (runes[i+1] == ' ' || isSentenceEnd(runes[i+1])) {
				i++
				current.WriteRune(runes[i])
			}
			out = append(out, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// ── Prefetching / Cache ──────────────────────────────────────────

// Prefetch synthesizes the given texts ahead of time and stores them in
// the audio cache, skipping anything already cached. At most
// prefetchLimit requests run at once. Blocks until done; call it in a
// goroutine. Individual failures are logged, and the first is returned.
func (v *Voice) Prefetch(ctx context.Context, opts domain.VoiceOptions, texts ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.prefetchLimit)

	var chunks []string
	for _, text := range texts {
		chunks = append(chunks, v.splitChunks(text)...)
	}
	missing := v.cache.Missing(opts, chunks...)

	var mu sync.Mutex
	var firstErr error
	for _, chunk := range missing {
		g.Go(func() error {
			audio, err := v.tts.Synthesize(gctx, chunk, opts)
			if err != nil {
				v.log.Warn("prefetch: synthesis failed: %v", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			v.cache.Put(chunk, opts, audio)
			return nil
		})
	}
	_ = g.Wait()
	v.log.Debug("prefetch: %d of %d chunks needed synthesis; cache %s",
		len(missing), len(chunks), v.cache.Stats())
	return firstErr
}

// Cache returns the audio cache used by this Voice.
func (v *Voice) Cache() *AudioCache { return v.cache }

package speech

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/timer"
)

// earState represents the Ear's listening mode.
type earState int

const (
	// earDormant: passively scanning short clips for the wake word.
	earDormant earState = iota
	// earListening: wake word heard, capturing the command.
	earListening
)

// Default wake phrases. Any of these in a transcription
// (case-insensitive) triggers active listening.
var defaultWakeWords = []string{
	"hey sleepy",
	"hey, sleepy",
	"sleepy",
	"晚安晚安",
	"晚安",
}

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z_\s]*[\)\]]`)

// timestampPrefix matches "[00:00:00.000 --> 00:00:05.000]".
var timestampPrefix = regexp.MustCompile(`^\[[0-9:.\s\->]+\]\s*`)

// hallucinations are whole-utterance transcripts whisper produces on
// silence. They are discarded.
var hallucinations = []string{
	"...",
	"you",
	"thank you.",
	"thanks for watching!",
	"thank you for watching.",
	"bye.",
	"the end.",
	"謝謝觀看",
	"謝謝大家",
	"字幕由amara.org社區提供",
}

// speakingReporter is implemented by speakers that can say whether they
// are mid-utterance (Voice does). The ear stays deaf while they talk.
type speakingReporter interface {
	IsSpeaking() bool
}

// recordFunc records for d and returns whisper's transcription.
type recordFunc func(ctx context.Context, d time.Duration) string

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithRecordDuration sets how long each active-listening chunk lasts.
func WithRecordDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.recordDuration = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// WithWakeWords overrides the default wake phrases.
func WithWakeWords(words ...string) EarOption {
	return func(e *Ear) { e.wakeWords = words }
}

// WithListenTimeout sets how long the ear stays in active listening
// mode before giving up and returning to dormant.
func WithListenTimeout(d time.Duration) EarOption {
	return func(e *Ear) { e.listenTimeout = d }
}

// WithDormantDuration sets how long each dormant probe recording lasts.
// Shorter = more responsive wake-word detection, but more CPU.
func WithDormantDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.dormantDuration = d }
}

// withRecorder replaces the whisper recorder. Used by tests.
func withRecorder(r recordFunc) EarOption {
	return func(e *Ear) { e.record = r }
}

// Ear provides wake-word-triggered voice commands using a local Whisper
// model.
//
// Lifecycle:
//  1. DORMANT: record short clips and look for a wake word. Everything
//     else is discarded.
//  2. LISTENING: wake word heard, so cut off the speaker, acknowledge,
//     and accumulate the command until silence or timeout.
//  3. The command (minus the wake word) is sent on C and the ear goes
//     back to dormant.
type Ear struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger
	speaker    domain.Speaker // optional; interrupted on wake word
	record     recordFunc

	wakeWords       []string
	recordDuration  time.Duration // active listening chunk length
	dormantDuration time.Duration // wake-word probe chunk length
	listenTimeout   time.Duration // max active listening window

	mu     sync.Mutex
	muted  bool
	state  earState
	textCh chan string
}

// NewEar creates a wake-word-triggered voice input listener.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
//   - speaker:    optional; cut off when the wake word is heard
func NewEar(whisperBin, modelPath string, speaker domain.Speaker, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin:      whisperBin,
		modelPath:       modelPath,
		tempDir:         ".sleepylearn-stt",
		log:             log,
		speaker:         speaker,
		wakeWords:       defaultWakeWords,
		recordDuration:  2 * time.Second,
		dormantDuration: 3 * time.Second,
		listenTimeout:   15 * time.Second,
		state:           earDormant,
		textCh:          make(chan string, 8),
	}
	e.record = e.recordWhisper
	for _, opt := range opts {
		opt(e)
	}

	if _, err := exec.LookPath(e.whisperBin); err != nil {
		log.Error("ear: whisper binary %q not found in PATH: %v", e.whisperBin, err)
	}
	return e
}

// C returns the channel that receives voice commands.
func (e *Ear) C() <-chan string {
	return e.textCh
}

// Mute temporarily disables listening.
func (e *Ear) Mute() {
	e.mu.Lock()
	e.muted = true
	e.mu.Unlock()
	e.log.Debug("ear: muted")
}

// Unmute re-enables listening.
func (e *Ear) Unmute() {
	e.mu.Lock()
	e.muted = false
	e.mu.Unlock()
	e.log.Debug("ear: unmuted")
}

func (e *Ear) isMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Run starts the listening loop. Blocks until ctx is cancelled.
func (e *Ear) Run(ctx context.Context) {
	e.log.Info("ear: started (dormant=%s, active=%s, timeout=%s, wake=%v)",
		e.dormantDuration, e.recordDuration, e.listenTimeout, e.wakeWords)

	for ctx.Err() == nil {
		if e.isMuted() {
			if timer.Sleep(ctx, 200*time.Millisecond) != nil {
				break
			}
			continue
		}
		switch e.getState() {
		case earDormant:
			e.doDormant(ctx)
		case earListening:
			e.doListening(ctx)
		}
	}
	e.log.Info("ear: stopped")
}

func (e *Ear) getState() earState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Ear) setState(s earState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// speakerBusy reports whether the speaker is mid-utterance.
func (e *Ear) speakerBusy() bool {
	r, ok := e.speaker.(speakingReporter)
	return ok && r.IsSpeaking()
}

// ── Dormant mode ─────────────────────────────────────────────────

// doDormant records a probe clip and checks it for the wake word.
func (e *Ear) doDormant(ctx context.Context) {
	// Don't record our own voice.
	if e.speakerBusy() {
		_ = timer.Sleep(ctx, 200*time.Millisecond)
		return
	}

	text := cleanTranscription(e.record(ctx, e.dormantDuration))
	if text == "" || e.speakerBusy() {
		return
	}
	e.log.Debug("ear/dormant: heard %q", text)

	rest, ok := e.stripWakeWord(text)
	if !ok {
		return
	}
	e.log.Info("ear: wake word detected in %q", text)

	if e.speaker != nil {
		e.speaker.Cancel()
	}

	// Wake word and command in one breath.
	rest = cleanTranscription(rest)
	if !isJustPunctuation(rest) {
		e.log.Info("ear: immediate command: %q", rest)
		e.send(ctx, rest)
		return
	}

	if e.speaker != nil && e.speaker.Available() {
		filler := LineListening()
		if err := e.speaker.Speak(ctx, filler, domain.DefaultVoice); err != nil {
			e.log.Debug("ear: acknowledgment cut off: %v", err)
		}
	}
	e.setState(earListening)
}

// ── Active listening mode ────────────────────────────────────────

// doListening records chunks until the user stops talking or the
// listen timeout expires, then sends what it heard.
func (e *Ear) doListening(ctx context.Context) {
	defer e.setState(earDormant)
	e.log.Info("ear: listening...")

	if timer.Sleep(ctx, 300*time.Millisecond) != nil {
		return
	}

	// Before the user starts talking allow more silence; once they
	// have, a shorter gap means they're done.
	const graceEmpty = 3
	const postSpeechEmpty = 1

	deadline := time.Now().Add(e.listenTimeout)
	var parts []string
	emptyRuns := 0
	for ctx.Err() == nil && time.Now().Before(deadline) {
		chunk := cleanTranscription(e.record(ctx, e.recordDuration))
		if chunk == "" {
			emptyRuns++
			maxEmpty := graceEmpty
			if len(parts) > 0 {
				maxEmpty = postSpeechEmpty
			}
			if emptyRuns >= maxEmpty {
				e.log.Debug("ear: silence detected, ending listen (heard=%d)", len(parts))
				break
			}
			continue
		}
		emptyRuns = 0
		// The user may repeat the wake word mid-sentence.
		if chunk = e.removeWakeWords(chunk); chunk != "" {
			e.log.Debug("ear/listen: chunk: %q", chunk)
			parts = append(parts, chunk)
		}
	}

	combined := strings.TrimSpace(strings.Join(parts, " "))
	if combined == "" || ctx.Err() != nil {
		e.log.Debug("ear: listening ended with no input")
		return
	}
	e.log.Info("ear: heard command: %q", combined)
	e.send(ctx, combined)
}

func (e *Ear) send(ctx context.Context, text string) {
	select {
	case e.textCh <- text:
	case <-ctx.Done():
	}
}

// ── Wake word matching ───────────────────────────────────────────

// stripWakeWord reports whether text contains a wake word and returns
// what follows the first one found.
func (e *Ear) stripWakeWord(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range e.wakeWords {
		wl := strings.ToLower(w)
		idx := strings.Index(lower, wl)
		if idx < 0 {
			continue
		}
		rest := lower[idx+len(wl):]
		if len(lower) == len(text) {
			rest = text[idx+len(wl):]
		}
		return strings.TrimLeft(rest, " ,.，。!！?？\n\r\t"), true
	}
	return "", false
}

// removeWakeWords deletes every wake word occurrence from text.
func (e *Ear) removeWakeWords(text string) string {
	for _, w := range e.wakeWords {
		text = replaceFold(text, w)
	}
	return strings.Join(strings.Fields(text), " ")
}

// replaceFold removes all case-insensitive occurrences of old in s.
func replaceFold(s, old string) string {
	lo := strings.ToLower(old)
	for {
		ls := strings.ToLower(s)
		if len(ls) != len(s) {
			return strings.ReplaceAll(ls, lo, "")
		}
		i := strings.Index(ls, lo)
		if i < 0 {
			return s
		}
		s = s[:i] + s[i+len(lo):]
	}
}

// isJustPunctuation reports whether s has nothing but spaces and
// punctuation, i.e. the wake word was the whole utterance.
func isJustPunctuation(s string) bool {
	return strings.Trim(s, " ,.!?，。！？、") == ""
}

// ── Recording ────────────────────────────────────────────────────

// recordWhisper does one recording cycle of the given duration and
// returns the transcribed text.
func (e *Ear) recordWhisper(ctx context.Context, d time.Duration) string {
	done := make(chan string, 1)
	callback := func(text string) {
		select {
		case done <- text:
		default:
		}
	}

	verbose := e.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(e.whisperBin, e.modelPath, e.tempDir, "wav", callback, verbose)
	if err != nil {
		e.log.Error("ear: transcriber init failed: %v", err)
		_ = timer.Sleep(ctx, 2*time.Second)
		return ""
	}
	if err := t.Start(); err != nil {
		e.log.Error("ear: recording start failed: %v", err)
		_ = timer.Sleep(ctx, 2*time.Second)
		return ""
	}

	cancelled := timer.Sleep(ctx, d) != nil
	t.Stop()
	text := <-done
	if cancelled {
		return ""
	}
	return text
}

// ── Transcription cleanup ────────────────────────────────────────

// cleanTranscription flattens newlines, strips whisper artifacts such as
// "[BLANK_AUDIO]" or "(dog barking)" and timestamp prefixes, and drops
// transcripts that are known silence hallucinations.
func cleanTranscription(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = timestampPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if lower == h {
			return ""
		}
	}
	return s
}

package domain

import "context"

// VoiceOptions are the prosody settings for an utterance.
type VoiceOptions struct {
	Rate   float64 // 1.0 is normal speed
	Pitch  float64 // 1.0 is normal pitch
	Volume float64 // 0..1
}

// DefaultVoice is the slow, slightly high register used for children.
var DefaultVoice = VoiceOptions{Rate: 0.8, Pitch: 1.1, Volume: 0.9}

// Speaker turns text into audible speech.
//
// Speak blocks until the utterance finishes. It returns nil only on
// natural completion; an utterance ended by Cancel (or by a newer Speak)
// returns ErrSpeechCancelled. Available reports whether the platform can
// speak at all; an unavailable speaker must not be used.
type Speaker interface {
	Speak(ctx context.Context, text string, opts VoiceOptions) error
	Cancel()
	Available() bool
}

// Generator produces text from a prompt. Implementations can be
// Azure-hosted, OpenAI, or anything that speaks chat completions.
type Generator interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Capabilities records which optional platform services were found at
// start-up. Nothing probes for them again later.
type Capabilities struct {
	Speech     bool
	Generation bool
}

// IntentParser converts raw user input into structured intents.
type IntentParser interface {
	Parse(ctx context.Context, input string) (*Intent, error)
}

// Notifier delivers messages to the user.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}

// StoryDisplay shows stories and generation progress.
type StoryDisplay interface {
	ShowStory(story *Story)
	ShowLoading(message string)
}

// NarrationObserver follows narration progress.
type NarrationObserver interface {
	SegmentStarted(index int, seg Segment)
	NarrationStopped(finished bool)
}

// BreathingDisplay renders the breathing exercise.
type BreathingDisplay interface {
	// SetInstruction shows the main instruction and a secondary line
	// (countdown, cycle counter, or a short hint).
	SetInstruction(text, detail string)
	// SetPhase switches the visual cue for the current phase.
	SetPhase(kind PhaseKind)
}

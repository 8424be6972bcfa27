package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrSpeechUnavailable     = errors.New("speech output is not available")
	ErrGenerationUnavailable = errors.New("text generation is not available")
	ErrSpeechCancelled       = errors.New("speech cancelled")
	ErrSpeechFailed          = errors.New("speech failed")
	ErrGenerationTimeout     = errors.New("generation timed out")
	ErrInvalidGeneration     = errors.New("generated text is unusable")
	ErrNotIdle               = errors.New("narration is in progress")
	ErrNoStory               = errors.New("no story loaded")
	ErrDuplicateTitle        = errors.New("story title already exists")
	ErrInvalidPack           = errors.New("invalid story pack")
)

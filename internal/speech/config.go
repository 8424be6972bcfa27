package speech

// Default Azure voice: a warm Taiwanese Mandarin voice suited to bedtime
// reading. Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoiceName = "zh-TW-HsiaoChenNeural"

// Audio format requested from Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default Azure format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Polly defaults. Polly has no Taiwanese Mandarin voice; Zhiyu reads
// Traditional Chinese text fine. PCM output is 16 kHz at most.
const (
	DefaultPollyVoice      = "Zhiyu"
	DefaultPollySampleRate = 16000
)

// Env var names for speech credentials and settings.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
	EnvPollyRegion       = "SLEEPY_POLLY_REGION"
	EnvPollyVoice        = "SLEEPY_POLLY_VOICE"
	EnvAWSRegion         = "AWS_REGION"
)

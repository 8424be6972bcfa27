package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Compile-time interface check.
var _ Synthesizer = (*PollyClient)(nil)

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyOption configures the Polly client.
type PollyOption func(*PollyClient)

// WithPollyVoice sets the Polly voice ID.
func WithPollyVoice(voice string) PollyOption {
	return func(c *PollyClient) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithPollyEngine selects "neural" (default) or "standard".
func WithPollyEngine(engine string) PollyOption {
	return func(c *PollyClient) {
		if engine == "standard" {
			c.engine = pollytypes.EngineStandard
		}
	}
}

func withPollyAPI(api pollyAPI) PollyOption {
	return func(c *PollyClient) { c.api = api }
}

// PollyClient synthesizes speech with Amazon Polly. Audio comes back as
// raw PCM and is wrapped in a WAV header here.
type PollyClient struct {
	api        pollyAPI
	voice      string
	engine     pollytypes.Engine
	sampleRate int
	log        *logger.Logger
}

// NewPollyClient loads AWS credentials from the default chain and
// creates a Polly client for region.
func NewPollyClient(ctx context.Context, region string, log *logger.Logger, opts ...PollyOption) (*PollyClient, error) {
	c := &PollyClient{
		voice:      DefaultPollyVoice,
		engine:     pollytypes.EngineNeural,
		sampleRate: DefaultPollySampleRate,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		c.api = polly.NewFromConfig(cfg)
	}
	return c, nil
}

// Voice returns the configured voice ID.
func (c *PollyClient) Voice() string { return "polly:" + c.voice }

// SampleRate returns the PCM sample rate requested from Polly.
func (c *PollyClient) SampleRate() int { return c.sampleRate }

// Synthesize converts text to WAV audio.
func (c *PollyClient) Synthesize(ctx context.Context, text string, opts domain.VoiceOptions) ([]byte, error) {
	c.log.Debug("polly: synthesizing %d chars with voice %s", len(text), c.voice)

	out, err := c.api.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       c.engine,
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   aws.String(strconv.Itoa(c.sampleRate)),
		Text:         aws.String(c.buildSSML(text, opts)),
		TextType:     pollytypes.TextTypeSsml,
		VoiceId:      pollytypes.VoiceId(c.voice),
	})
	if err != nil {
		return nil, classifyPollyError(err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, fmt.Errorf("%w: polly returned no audio", domain.ErrSpeechFailed)
	}
	defer out.AudioStream.Close()

	pcm, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("reading polly audio: %w", err)
	}
	c.log.Debug("polly: got %d bytes of PCM", len(pcm))
	return wrapPCM(pcm, c.sampleRate, ChannelCount), nil
}

// buildSSML wraps text in prosody. Neural voices ignore pitch, so only
// rate and volume are set.
func (c *PollyClient) buildSSML(text string, opts domain.VoiceOptions) string {
	rate := 100
	if opts.Rate > 0 {
		rate = int(math.Round(opts.Rate * 100))
	}
	return fmt.Sprintf(`<speak><prosody rate="%d%%" volume="%s">%s</prosody></speak>`,
		rate, volumeDecibels(opts.Volume), escapeSSML(text))
}

// classifyPollyError maps SDK errors onto domain errors, keeping the
// original in the chain.
func classifyPollyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrSpeechCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: polly timed out: %w", domain.ErrSpeechFailed, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException", "ThrottlingException":
			return fmt.Errorf("%w: polly throttled: %w", domain.ErrSpeechFailed, err)
		case "InvalidSsmlException", "TextLengthExceededException", "InvalidSampleRateException", "LanguageNotSupportedException":
			return fmt.Errorf("%w: polly rejected request (%s): %w", domain.ErrSpeechFailed, apiErr.ErrorCode(), err)
		default:
			return fmt.Errorf("%w: polly service error (%s): %w", domain.ErrSpeechFailed, apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("%w: polly transport: %w", domain.ErrSpeechFailed, err)
}

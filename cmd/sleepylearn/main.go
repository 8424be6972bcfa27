// SleepyLearn: bedtime stories and a 4-7-8 breathing exercise, read
// aloud in the terminal.
//
// Usage:
//
//	sleepylearn [-verbose] [-quiet] [-tts azure|polly] [-llm azure|openai] [-voice]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/sleepylearn/internal/breathing"
	"github.com/hammamikhairi/sleepylearn/internal/conversation"
	"github.com/hammamikhairi/sleepylearn/internal/display"
	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/engine"
	"github.com/hammamikhairi/sleepylearn/internal/gpt"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/narration"
	"github.com/hammamikhairi/sleepylearn/internal/speech"
	"github.com/hammamikhairi/sleepylearn/internal/story"
)

// EnvLogLevel overrides the log level when neither -verbose nor -quiet
// is given.
const EnvLogLevel = "SLEEPY_LOG_LEVEL"

type config struct {
	noSpeech     bool
	readAlong    bool
	tts          string
	diskCache    bool
	cacheDir     string
	noAI         bool
	llm          string
	model        string
	genTimeout   time.Duration
	cycles       int
	storyPack    string
	voice        bool
	whisperBin   string
	whisperModel string
	recordSecs   int
}

func main() {
	_ = godotenv.Load()

	var cfg config
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".sleepylearn-logs/sleepylearn.log", "file to write logs to (use \"stderr\" to log to console)")
	flag.BoolVar(&cfg.noSpeech, "no-speech", false, "disable text-to-speech even if credentials are set")
	flag.BoolVar(&cfg.readAlong, "read-along", false, "no audio: pace narration and breathing at reading speed instead")
	flag.StringVar(&cfg.tts, "tts", "azure", "speech backend: azure or polly")
	flag.BoolVar(&cfg.diskCache, "disk-cache", true, "persist TTS audio cache to disk (reads from disk even when false)")
	flag.StringVar(&cfg.cacheDir, "cache-dir", ".sleepylearn-cache", "directory for persistent TTS audio cache")
	flag.BoolVar(&cfg.noAI, "no-ai", false, "disable story generation even if keys are set")
	flag.StringVar(&cfg.llm, "llm", "azure", "story generator: azure (GPT_CHAT_*) or openai (OPENAI_*)")
	flag.StringVar(&cfg.model, "model", "", "chat model name (openai backend; optional for azure)")
	flag.DurationVar(&cfg.genTimeout, "gen-timeout", story.DefaultTimeout, "give up on generation and use a saved story after this long")
	flag.IntVar(&cfg.cycles, "cycles", breathing.DefaultCycles, "breathing cycles per session")
	flag.StringVar(&cfg.storyPack, "story-pack", "", "YAML or JSON file of extra fallback stories")
	flag.BoolVar(&cfg.voice, "voice", false, "enable voice commands via local Whisper STT")
	flag.StringVar(&cfg.whisperBin, "whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	flag.StringVar(&cfg.whisperModel, "whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model file")
	flag.IntVar(&cfg.recordSecs, "record-secs", 2, "seconds per voice recording chunk")
	flag.Parse()

	logLevel := logger.LevelNormal
	if lvl, err := logger.ParseLevel(os.Getenv(EnvLogLevel)); err == nil {
		logLevel = lvl
	} else {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the terminal stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		if dir := filepath.Dir(*logFile); dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Third-party libs (whisper, oto) log through the standard package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	// Cancelled when the UI quits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Speech ──
	speaker, voice := buildSpeaker(ctx, cfg, log.Named("speech"))
	caps := domain.Capabilities{Speech: speaker.Available()}

	// ── Generation ──
	var teller *gpt.Storyteller
	if chat := buildChat(cfg, log.Named("gpt")); chat != nil {
		teller = gpt.NewStoryteller(chat, log.Named("gpt"))
		caps.Generation = true
	}

	pool := story.NewPool(log.Named("story"), nil)
	if cfg.storyPack != "" {
		loadPack(pool, cfg.storyPack, log)
	}
	var gen domain.Generator
	if teller != nil {
		gen = teller
	}
	source := story.NewSource(gen, pool, log.Named("story"), story.WithTimeout(cfg.genTimeout))

	// ── Activities and UI ──
	var eng *engine.Engine
	report := func(err error) { eng.ReportError(err) }

	ui := display.NewUI(func() domain.AppStatus { return eng.Status() })
	notifier := conversation.NewNotifier(ui, log.Named("notify"))

	narrator := narration.New(speaker, log.Named("narration"),
		narration.WithObserver(ui),
		narration.WithErrorHandler(report),
	)
	breather := breathing.New(speaker, log.Named("breathing"),
		breathing.WithCycles(cfg.cycles),
		breathing.WithDisplay(ui),
		breathing.WithErrorHandler(report),
	)

	engOpts := []engine.Option{
		engine.WithStoryDisplay(ui),
		engine.WithNotifier(notifier),
		engine.WithCapabilities(caps),
		engine.WithDefaultStory(pool.Default()),
		engine.WithLoadingMessages(story.LoadingMessages, 2*time.Second),
	}
	if voice != nil {
		engOpts = append(engOpts, engine.WithPrefetcher(voice, domain.DefaultVoice))
	}
	eng = engine.New(source, narrator, breather, log.Named("engine"), engOpts...)

	if voice != nil {
		eng.PrefetchLines(ctx, breather.Protocol().Lines()...)
		eng.PrefetchLines(ctx, speech.Prefetchable()...)
	}

	var parserOpts []conversation.ParserOption
	if teller != nil {
		parserOpts = append(parserOpts, conversation.WithClassifier(teller))
	}
	parser := conversation.NewKeywordParser(log.Named("parser"), parserOpts...)

	// ── Voice commands ──
	var ear *speech.Ear
	if cfg.voice {
		if _, err := os.Stat(cfg.whisperModel); err != nil {
			fmt.Fprintf(os.Stderr, "error: whisper model not found at %s\n", cfg.whisperModel)
			os.Exit(1)
		}
		ear = speech.NewEar(cfg.whisperBin, cfg.whisperModel, speaker, log.Named("ear"),
			speech.WithRecordDuration(time.Duration(cfg.recordSecs)*time.Second),
		)
		go ear.Run(ctx)
		log.Info("voice input enabled (bin=%s, model=%s, chunk=%ds)", cfg.whisperBin, cfg.whisperModel, cfg.recordSecs)
	}

	app := &cliApp{
		engine:   eng,
		parser:   parser,
		notifier: notifier,
		speaker:  speaker,
		ear:      ear,
		caps:     caps,
		log:      log,
		ui:       ui,
	}

	fmt.Println(display.RenderBanner())
	if ear != nil {
		fmt.Println(display.BannerStyle.Render("  語音模式：說「晚安」或 \"hey sleepy\" 再下指令，也可以直接打字。"))
	}
	fmt.Println(display.BannerStyle.Render("  Type 'help' for commands, 'quit' to exit."))
	fmt.Println()

	go func() {
		ui.WaitReady()
		app.run(ctx)
		ui.Quit()
	}()

	// Bubble Tea owns the terminal; blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	eng.StopAll()
	cancel()
}

// buildSpeaker picks the speech backend. The second return is the
// cache-backed voice, or nil when no audio backend is in use.
func buildSpeaker(ctx context.Context, cfg config, log *logger.Logger) (domain.Speaker, *speech.Voice) {
	switch {
	case cfg.noSpeech:
		log.Info("speech disabled by flag")
		return speech.Silent{}, nil
	case cfg.readAlong:
		log.Info("read-along mode: no audio, paced at %s per character", speech.DefaultPace)
		return speech.NewPacer(speech.DefaultPace), nil
	}

	synth := buildSynth(ctx, cfg.tts, log)
	if synth == nil {
		return speech.Silent{}, nil
	}
	player, err := speech.NewPlayer(synth.SampleRate(), log)
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return speech.Silent{}, nil
	}
	v := speech.NewVoice(synth, player, log,
		speech.WithCacheDir(cfg.cacheDir),
		speech.WithDiskWrite(cfg.diskCache),
	)
	log.Info("TTS enabled (backend=%s, voice=%s)", cfg.tts, synth.Voice())
	return v, v
}

func buildSynth(ctx context.Context, backend string, log *logger.Logger) speech.Synthesizer {
	switch backend {
	case "polly":
		region := os.Getenv(speech.EnvPollyRegion)
		if region == "" {
			region = os.Getenv(speech.EnvAWSRegion)
		}
		if region == "" {
			log.Info("TTS disabled: set %s or %s to use Polly", speech.EnvPollyRegion, speech.EnvAWSRegion)
			return nil
		}
		c, err := speech.NewPollyClient(ctx, region, log.Named("polly"),
			speech.WithPollyVoice(os.Getenv(speech.EnvPollyVoice)),
		)
		if err != nil {
			log.Error("polly init failed, speech disabled: %v", err)
			return nil
		}
		return c
	case "azure":
		key := os.Getenv(speech.EnvAzureSpeechKey)
		region := os.Getenv(speech.EnvAzureSpeechRegion)
		if key == "" || region == "" {
			log.Info("TTS disabled: set %s and %s env vars to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
			return nil
		}
		return speech.NewAzureClient(key, region, log.Named("azure"))
	}
	log.Error("unknown -tts backend %q, speech disabled", backend)
	return nil
}

func buildChat(cfg config, log *logger.Logger) gpt.Chatter {
	if cfg.noAI {
		log.Info("story generation disabled by flag")
		return nil
	}
	switch cfg.llm {
	case "openai":
		key := os.Getenv(gpt.EnvOpenAIKey)
		if key == "" {
			log.Info("story generation disabled: set %s to enable", gpt.EnvOpenAIKey)
			return nil
		}
		log.Info("story generation enabled (openai)")
		return gpt.NewOpenAIClient(key, log,
			gpt.WithOpenAIModel(cfg.model),
			gpt.WithOpenAIBaseURL(os.Getenv(gpt.EnvOpenAIBaseURL)),
		)
	case "azure":
		key := os.Getenv(gpt.EnvChatKey)
		endpoint := os.Getenv(gpt.EnvChatEndpoint)
		if key == "" || endpoint == "" {
			log.Info("story generation disabled: set %s and %s env vars to enable", gpt.EnvChatKey, gpt.EnvChatEndpoint)
			return nil
		}
		log.Info("story generation enabled (azure)")
		return gpt.NewClient(endpoint, key, log, gpt.WithModel(cfg.model))
	}
	log.Error("unknown -llm backend %q, story generation disabled", cfg.llm)
	return nil
}

func loadPack(pool *story.Pool, path string, log *logger.Logger) {
	stories, err := story.LoadPack(path)
	if err != nil {
		log.Error("story pack %s: %v", path, err)
		return
	}
	added := 0
	for _, st := range stories {
		if err := pool.Add(st); err != nil {
			log.Warn("story pack %s: skipping %q: %v", path, st.Title, err)
			continue
		}
		added++
	}
	log.Info("story pack %s: %d stories added (%d in rotation)", path, added, pool.Len())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/display"
	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/engine"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/speech"
	"github.com/hammamikhairi/sleepylearn/internal/timer"
)

type cliApp struct {
	engine   *engine.Engine
	parser   domain.IntentParser
	notifier domain.Notifier
	speaker  domain.Speaker
	ear      *speech.Ear // nil when voice input is disabled
	caps     domain.Capabilities
	log      *logger.Logger
	ui       *display.UI
}

// say prints a conversational line and speaks it when nothing else is
// using the voice. Lines never interrupt a story or the breathing script.
func (a *cliApp) say(ctx context.Context, text string) {
	a.ui.PrintChat(text)
	if !a.speaker.Available() {
		return
	}
	s := a.engine.Status()
	if s.Narrating || s.Breathing.Active {
		return
	}
	go func() {
		if err := a.speaker.Speak(ctx, text, domain.DefaultVoice); err != nil && !errors.Is(err, domain.ErrSpeechCancelled) {
			a.log.Debug("say: %v", err)
		}
	}()
}

func (a *cliApp) run(ctx context.Context) {
	a.say(ctx, speech.LineWelcome())
	if !a.caps.Generation {
		a.ui.PrintHint(speech.LineAIDisabled())
	}
	if !a.caps.Speech {
		a.ui.PrintHint(speech.LineSpeechUnavailable())
	}

	// Receiving on a nil channel blocks forever, so without an ear the
	// select only ever sees the keyboard.
	var voiceCh <-chan string
	if a.ear != nil {
		voiceCh = a.ear.C()
	}
	uiCh := a.ui.InputChan()

	for {
		var input string
		var ok bool

		select {
		case <-ctx.Done():
			return
		case input, ok = <-uiCh:
			if !ok {
				return
			}
		case input = <-voiceCh:
			a.ui.PrintVoice(input)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		intent, err := a.parser.Parse(ctx, input)
		if err != nil {
			a.log.Error("parsing input: %v", err)
			continue
		}

		a.log.Debug("intent: %s (payload=%q)", intent.Type, intent.Payload)
		if a.handleIntent(ctx, intent) {
			return
		}
	}
}

// handleIntent dispatches one intent. It reports whether the app should exit.
func (a *cliApp) handleIntent(ctx context.Context, intent *domain.Intent) bool {
	switch intent.Type {
	case domain.IntentHelp:
		a.showHelp(ctx)
	case domain.IntentHome:
		a.engine.Home()
		a.ui.PrintHint("首頁：故事 (story) 或 呼吸 (breathe)")
	case domain.IntentStories:
		a.engine.Stories(ctx)
	case domain.IntentGenerate:
		// Generation can take the full timeout; keep the prompt live so
		// "stop" and "quit" still work meanwhile.
		go a.generate(ctx)
	case domain.IntentPlay:
		a.play(ctx)
	case domain.IntentStop:
		a.stop(ctx)
	case domain.IntentBreathing:
		a.breathe(ctx)
	case domain.IntentStatus:
		a.status()
	case domain.IntentQuit:
		a.quit(ctx)
		return true
	default:
		a.ui.PrintChat(speech.LineUnknown(intent.Payload))
	}
	return false
}

func (a *cliApp) generate(ctx context.Context) {
	st := a.engine.GenerateStory(ctx)
	if st == nil {
		return
	}
	if a.caps.Generation && st.Source == domain.SourceFallback {
		a.ui.PrintHint(speech.LineGenerationFallback())
	}
	a.ui.PrintChat(speech.LineStoryReady(st.Title))
}

func (a *cliApp) play(ctx context.Context) {
	err := a.engine.PlayStory(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoStory), errors.Is(err, domain.ErrSpeechUnavailable):
		// Already told the user.
	default:
		a.log.Error("play: %v", err)
		a.notifier.NotifyUrgent(ctx, speech.LineSpeechError())
	}
}

func (a *cliApp) breathe(ctx context.Context) {
	err := a.engine.StartBreathing(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSpeechUnavailable):
	default:
		a.log.Error("breathing: %v", err)
		a.notifier.NotifyUrgent(ctx, speech.LineSpeechError())
	}
}

func (a *cliApp) stop(ctx context.Context) {
	s := a.engine.Status()
	a.engine.StopAll()
	a.speaker.Cancel()
	if s.Breathing.Active {
		a.say(ctx, speech.LineBreathingStopped())
	}
}

func (a *cliApp) status() {
	s := a.engine.Status()
	a.ui.PrintInstruction(fmt.Sprintf("Page:      %s", s.Page))
	switch {
	case s.StoryTitle == "":
		a.ui.PrintInstruction("Story:     (none)")
	case s.Narrating:
		a.ui.PrintInstruction(fmt.Sprintf("Story:     %s (playing %d/%d)", s.StoryTitle, s.Segment+1, s.Segments))
	default:
		a.ui.PrintInstruction(fmt.Sprintf("Story:     %s (%d segments)", s.StoryTitle, s.Segments))
	}
	if s.Generating {
		a.ui.PrintHint("Writing a new story...")
	}
	if b := s.Breathing; b.Active {
		line := fmt.Sprintf("Breathing: cycle %d/%d, %s", b.Cycle+1, b.TotalCycles, b.Phase)
		if b.Remaining > 0 {
			line += ", " + timer.FormatRemaining(b.Remaining)
		}
		a.ui.PrintInstruction(line)
	} else {
		a.ui.PrintHint("Breathing: idle")
	}
	a.ui.PrintHint(fmt.Sprintf("Speech: %t  Generation: %t", s.Capabilities.Speech, s.Capabilities.Generation))
}

func (a *cliApp) quit(ctx context.Context) {
	a.engine.StopAll()
	a.say(ctx, speech.LineBye())
	// Brief pause so the goodbye line can start.
	timer.Sleep(ctx, 300*time.Millisecond)
}

func (a *cliApp) showHelp(ctx context.Context) {
	a.say(ctx, speech.LineHelp())
	a.ui.PrintInstruction("  story / 故事        Open the stories page")
	a.ui.PrintInstruction("  new / 新故事        Write a new story (falls back to a saved one)")
	a.ui.PrintInstruction("  play / 播放         Read the current story aloud")
	a.ui.PrintInstruction("  breathe / 呼吸      Start the 4-7-8 breathing exercise")
	a.ui.PrintInstruction("  stop / 停止         Stop the story or the exercise")
	a.ui.PrintInstruction("  home / 首頁         Stop everything and go home")
	a.ui.PrintInstruction("  status / 狀態       Show what is going on")
	a.ui.PrintInstruction("  help / 幫助         Show this message")
	a.ui.PrintInstruction("  quit / 再見         Exit")
}

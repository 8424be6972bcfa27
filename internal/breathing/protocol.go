// Package breathing runs the guided 4-7-8 breathing exercise.
package breathing

import (
	"errors"
	"fmt"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
)

// DefaultCycles is how many times the 4-7-8 cycle repeats.
const DefaultCycles = 4

// Protocol describes one breathing session: preparation phases that run
// once, a cycle of phases that repeats, and the pauses around them.
type Protocol struct {
	Prep            []domain.BreathingPhase
	Cycle           []domain.BreathingPhase
	Cycles          int
	Settle          time.Duration // after each spoken prep instruction
	CyclePause      time.Duration // between cycles
	CompletionPause time.Duration // after the closing line, before stopping
}

// DefaultProtocol returns the 4-7-8 exercise: four cycles of a 4s inhale,
// a 7s hold and an 8s exhale.
func DefaultProtocol() Protocol {
	return Protocol{
		Prep: []domain.BreathingPhase{
			{Kind: domain.PhasePrepare, Duration: 6 * time.Second, Instruction: "準備開始，找一個舒適的位置躺好或坐好。", Label: "準備"},
			{Kind: domain.PhaseExhalePrep, Duration: 6 * time.Second, Instruction: "先用嘴巴將所有的氣吐乾淨。", Label: "吐氣"},
		},
		Cycle: []domain.BreathingPhase{
			{Kind: domain.PhaseInhale, Duration: 4 * time.Second, Instruction: "閉上嘴巴，用鼻子緩慢深吸氣，數到4。", Label: "吸氣"},
			{Kind: domain.PhaseHold, Duration: 7 * time.Second, Instruction: "屏住呼吸，數到7。", Label: "閉氣"},
			{Kind: domain.PhaseExhale, Duration: 8 * time.Second, Instruction: "用嘴巴慢慢吐氣，發出嘶的聲音，數到8。", Label: "吐氣"},
		},
		Cycles:          DefaultCycles,
		Settle:          time.Second,
		CyclePause:      2 * time.Second,
		CompletionPause: 2 * time.Second,
	}
}

// Validate checks that every phase has a positive duration and that at
// least one cycle is requested.
func (p Protocol) Validate() error {
	if p.Cycles < 1 {
		return errors.New("breathing protocol needs at least one cycle")
	}
	if len(p.Cycle) == 0 {
		return errors.New("breathing protocol has no cycle phases")
	}
	for _, ph := range append(append([]domain.BreathingPhase{}, p.Prep...), p.Cycle...) {
		if ph.Duration <= 0 {
			return fmt.Errorf("phase %s has non-positive duration %s", ph.Kind, ph.Duration)
		}
	}
	return nil
}

// ActiveTime is how long the exercise runs between the end of the
// welcome line and the start of the closing line, assuming prep speech
// fits in its phase.
func (p Protocol) ActiveTime() time.Duration {
	var d time.Duration
	for _, ph := range p.Prep {
		d += ph.Duration
	}
	var cycle time.Duration
	for _, ph := range p.Cycle {
		cycle += ph.Duration
	}
	d += time.Duration(p.Cycles) * cycle
	if p.Cycles > 1 {
		d += time.Duration(p.Cycles-1) * p.CyclePause
	}
	return d
}

// Lines returns everything the exercise says aloud, in order, so a
// speaker can synthesize it ahead of time.
func (p Protocol) Lines() []string {
	out := []string{lineWelcome}
	for _, ph := range p.Prep {
		out = append(out, ph.Instruction)
	}
	for _, ph := range p.Cycle {
		out = append(out, ph.Instruction)
	}
	return append(out, lineCompletion)
}

// Spoken and on-screen text.
const (
	lineWelcome    = "讓我們開始4-7-8呼吸法練習。這是一個能幫助你放鬆、快速入睡的呼吸技巧。請跟著我的指導。"
	lineCompletion = "很好！4-7-8呼吸法練習完成了。你的身心現在應該感到更加放鬆，可以安心地進入夢鄉了。"

	textWelcome       = "4-7-8 呼吸法"
	textWelcomeDetail = "請跟著聲音的指導"
	textPrepDetail    = "準備階段"
	textTransition    = "很好，準備下一次循環..."
	textCompletion    = "練習完成！"
	textCompletionSub = "身心放鬆，準備入睡"
	textInitial       = "準備開始 4-7-8 呼吸法練習"
	textInitialDetail = "一個幫助快速入睡的呼吸技巧"
)

func countdownText(cycle int, label string, seconds int) string {
	return fmt.Sprintf("第 %d 次循環 - %s %d秒", cycle, label, seconds)
}

func transitionDetail(done int) string {
	return fmt.Sprintf("完成 %d 次，準備第 %d 次", done, done+1)
}

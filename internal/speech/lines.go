package speech

import (
	"fmt"
	"math/rand/v2"
)

// Spoken and shown strings that are not part of a story or the breathing
// script. Keep them short; the voice handles inflection.

// ── Global ───────────────────────────────────────────────────────

func LineWelcome() string {
	return "晚安。想聽故事，還是一起做呼吸練習？"
}

func LineBye() string {
	return "晚安，祝你好夢。"
}

func LineHelp() string {
	return "可以說：故事、新故事、播放、停止、呼吸、狀態，或回首頁。"
}

func LineUnknown(input string) string {
	return fmt.Sprintf("我沒有聽懂：%s。", input)
}

// ── Stories ──────────────────────────────────────────────────────

func LineNoStory() string {
	return "還沒有故事，說「新故事」來產生一個。"
}

func LineStoryReady(title string) string {
	return fmt.Sprintf("故事準備好了：%s。", title)
}

func LineStoryFinished() string {
	return "故事說完了，晚安。"
}

func LineGenerationFallback() string {
	return "暫時無法創作新故事，先說一個收藏的故事給你聽。"
}

// ── Breathing ────────────────────────────────────────────────────

func LineBreathingStopped() string {
	return "呼吸練習已停止。"
}

// ── Capabilities ─────────────────────────────────────────────────

func LineSpeechUnavailable() string {
	return "語音功能無法使用，請設定 AZURE_SPEECH_KEY 或 Polly。"
}

func LineAIDisabled() string {
	return "AI 故事創作未啟用，將使用收藏的故事。"
}

func LineSpeechError() string {
	return "語音播放發生錯誤，請再試一次。"
}

// ── Listening acknowledgment ─────────────────────────────────────
// Spoken when the wake word is detected, so the user knows they've
// been heard and should start talking.

var listeningFillers = []string{
	"我在聽。",
	"請說。",
	"嗯？",
	"需要什麼呢？",
	"我在這裡。",
}

// LineListening returns a random acknowledgment for when the wake
// word is detected.
func LineListening() string {
	return listeningFillers[rand.IntN(len(listeningFillers))]
}

// ListeningFillers returns all listening acknowledgment strings so
// they can be prefetched into the TTS cache at startup.
func ListeningFillers() []string {
	out := make([]string, len(listeningFillers))
	copy(out, listeningFillers)
	return out
}

// Prefetchable returns every fixed line worth warming the cache with.
func Prefetchable() []string {
	out := []string{
		LineWelcome(),
		LineBye(),
		LineHelp(),
		LineNoStory(),
		LineStoryFinished(),
		LineGenerationFallback(),
		LineBreathingStopped(),
	}
	return append(out, listeningFillers...)
}

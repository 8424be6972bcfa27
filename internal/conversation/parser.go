// Package conversation turns typed or spoken input into intents and
// delivers notices back to the user.
package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Compile-time interface check.
var _ domain.IntentParser = (*KeywordParser)(nil)

// Classifier resolves input the keyword rules don't match. The gpt
// Storyteller implements it.
type Classifier interface {
	Classify(ctx context.Context, input string) (*domain.Intent, error)
}

// ParserOption configures the KeywordParser.
type ParserOption func(*KeywordParser)

// WithClassifier sets a fallback for unmatched input.
func WithClassifier(c Classifier) ParserOption {
	return func(p *KeywordParser) { p.classifier = c }
}

// KeywordParser matches user input to intents using keywords in English
// and Traditional Chinese.
type KeywordParser struct {
	log        *logger.Logger
	patterns   []patternRule
	classifier Classifier
}

type patternRule struct {
	regex  *regexp.Regexp
	intent domain.IntentType
}

// trailing strips polite filler and punctuation around a command.
var trailing = regexp.MustCompile(`^(please |請|幫我)|[\s。！？!?.,，]+$|(吧|好嗎|please)$`)

// NewKeywordParser creates a keyword-based intent parser.
func NewKeywordParser(log *logger.Logger, opts ...ParserOption) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(home|menu|back|h|首頁|主頁|回首頁|回主頁)$`), domain.IntentHome},
		{regexp.MustCompile(`(?i)^(new|new story|generate|another|another one|新故事|換一個|再來一個|產生故事|創作故事)$`), domain.IntentGenerate},
		{regexp.MustCompile(`(?i)^(story|stories|s|故事|講故事|說故事|聽故事)$`), domain.IntentStories},
		{regexp.MustCompile(`(?i)^(play|read|start|p|播放|播放故事|開始|唸故事|念故事|朗讀)$`), domain.IntentPlay},
		{regexp.MustCompile(`(?i)^(stop|pause|quiet|shh+|x|停|停止|暫停|安靜)$`), domain.IntentStop},
		{regexp.MustCompile(`(?i)^(breathe|breathing|breath|b|478|4-7-8|呼吸|呼吸練習|深呼吸)$`), domain.IntentBreathing},
		{regexp.MustCompile(`(?i)^(status|where|info|狀態|現在呢)$`), domain.IntentStatus},
		{regexp.MustCompile(`(?i)^(help|\?|？|說明|幫助|怎麼用)$`), domain.IntentHelp},
		{regexp.MustCompile(`(?i)^(quit|exit|q|bye|goodnight|good night|離開|結束|再見)$`), domain.IntentQuit},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts user input into an intent. Unmatched input goes to the
// classifier when one is set; otherwise it is IntentUnknown.
func (p *KeywordParser) Parse(ctx context.Context, input string) (*domain.Intent, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	cmd := normalize(trimmed)
	for _, rule := range p.patterns {
		if rule.regex.MatchString(cmd) {
			p.log.Debug("matched intent: %s", rule.intent)
			return &domain.Intent{Type: rule.intent, Payload: trimmed}, nil
		}
	}

	if p.classifier != nil {
		it, err := p.classifier.Classify(ctx, trimmed)
		if err != nil {
			p.log.Warn("classifier failed for %q: %v", trimmed, err)
		} else if it != nil {
			return it, nil
		}
	}

	p.log.Debug("no match, returning unknown intent")
	return &domain.Intent{Type: domain.IntentUnknown, Payload: trimmed}, nil
}

// normalize lowercases input and strips fillers until it stops changing.
func normalize(s string) string {
	s = strings.ToLower(s)
	for {
		next := strings.TrimSpace(trailing.ReplaceAllString(s, ""))
		if next == s || next == "" {
			return s
		}
		s = next
	}
}

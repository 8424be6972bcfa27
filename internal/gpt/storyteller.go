package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Compile-time interface check.
var _ domain.Generator = (*Storyteller)(nil)

// Storyteller wraps a Chatter with the bedtime-story framing. It is the
// Generator the story source calls, and it can also classify commands
// the keyword parser doesn't recognise.
type Storyteller struct {
	chat Chatter
	log  *logger.Logger
}

// NewStoryteller creates a storyteller backed by chat.
func NewStoryteller(chat Chatter, log *logger.Logger) *Storyteller {
	return &Storyteller{chat: chat, log: log}
}

// Ask sends a story prompt and returns the cleaned story text.
func (s *Storyteller) Ask(ctx context.Context, prompt string) (string, error) {
	raw, err := s.chat.Chat(ctx, []Message{
		TextMessage(RoleSystem, PromptStoryteller),
		TextMessage(RoleUser, prompt),
	})
	if err != nil {
		return "", err
	}
	story := cleanStory(raw)
	if story == "" {
		return "", errors.New("gpt: empty story")
	}
	s.log.Debug("storyteller: %d chars", len([]rune(story)))
	return story, nil
}

// classifyResponse is the JSON the model returns for intent classification.
type classifyResponse struct {
	Intent string `json:"intent"`
}

// Classify asks the model which command the input means. Unparseable
// replies classify as IntentUnknown rather than failing.
func (s *Storyteller) Classify(ctx context.Context, input string) (*domain.Intent, error) {
	raw, err := s.chat.Chat(ctx, []Message{
		TextMessage(RoleSystem, PromptClassify),
		TextMessage(RoleUser, input),
	})
	if err != nil {
		return nil, err
	}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		s.log.Warn("gpt: failed to parse classify JSON: %v (raw: %s)", err, truncate(raw, 80))
		return &domain.Intent{Type: domain.IntentUnknown, Payload: input}, nil
	}

	it := domain.IntentFromString(strings.ToLower(strings.TrimSpace(resp.Intent)))
	s.log.Debug("gpt: classified %q -> %s", input, it)
	return &domain.Intent{Type: it, Payload: input}, nil
}

// stripCodeFence removes ```json ... ``` wrappers that LLMs love to add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// titlePrefixes mark a title line the model adds despite being told not to.
var titlePrefixes = []string{"標題：", "標題:", "故事：", "title:"}

// cleanStory strips code fences, a leading title line and wrapping quotes.
func cleanStory(s string) string {
	s = stripCodeFence(s)
	if first, rest, ok := strings.Cut(s, "\n"); ok {
		lower := strings.ToLower(strings.TrimSpace(first))
		for _, p := range titlePrefixes {
			if strings.HasPrefix(lower, p) {
				s = rest
				break
			}
		}
	}
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}, {"『", "』"}} {
		if strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) && len(s) > len(q[0])+len(q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}

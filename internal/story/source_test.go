package story

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

const goodStory = "小狐狸住在安靜的山谷裡，每天晚上都會看星星。" +
	"有一天，牠發現一顆星星掉進了小河。" +
	"小狐狸小心地把星星撈起來，輕輕擦乾。" +
	"星星說謝謝你，然後飛回了天空。" +
	"從此以後，那顆星星每晚都為小狐狸照亮回家的路。"

// fakeGenerator is a scripted domain.Generator.
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	prompts []string
}

func (g *fakeGenerator) Ask(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	reply, err, delay := g.reply, g.err, g.delay
	g.mu.Unlock()
	if delay > 0 {
		// Ignores ctx on purpose: models a backend that answers late.
		time.Sleep(delay)
	}
	return reply, err
}

func newTestSource(gen domain.Generator) *Source {
	log := logger.New(logger.LevelOff, nil)
	return NewSource(gen, newTestPool(), log, WithRand(rand.New(rand.NewPCG(3, 4))))
}

func TestGenerateSuccess(t *testing.T) {
	gen := &fakeGenerator{reply: "  " + goodStory + "\n"}
	st := newTestSource(gen).Generate(context.Background())

	if st.Source != domain.SourceGenerated {
		t.Fatalf("source = %v, want generated", st.Source)
	}
	if !strings.HasPrefix(st.ID, "ai-story-") {
		t.Errorf("id = %q", st.ID)
	}
	if !strings.HasPrefix(st.Title, "AI創作故事（") {
		t.Errorf("title = %q", st.Title)
	}
	if len(st.Segments) != 5 {
		t.Errorf("expected 5 segments, got %d: %q", len(st.Segments), st.Texts())
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected one generator call, got %d", len(gen.prompts))
	}
	p := gen.prompts[0]
	if !strings.Contains(p, "繁體中文") || !strings.Contains(p, "請求編號：req-") {
		t.Errorf("prompt missing language or request id:\n%s", p)
	}
}

func TestGenerateFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  domain.Generator
	}{
		{"no generator", nil},
		{"error", &fakeGenerator{err: errors.New("boom")}},
		{"too short", &fakeGenerator{reply: "小熊睡著了。"}},
		{"whitespace padded short", &fakeGenerator{reply: "   小熊睡著了。   " + strings.Repeat(" ", 80)}},
		{"no usable segments", &fakeGenerator{reply: strings.Repeat("好。", 30)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestSource(tt.gen).Generate(context.Background())
			if st == nil {
				t.Fatal("Generate returned nil")
			}
			if st.Source != domain.SourceFallback || !strings.HasPrefix(st.Title, "📚 ") {
				t.Errorf("expected fallback story, got %v %q", st.Source, st.Title)
			}
		})
	}
}

func TestGenerateTimeoutFallsBackWithinDeadline(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		gen := &fakeGenerator{reply: goodStory, delay: 20 * time.Second}
		src := newTestSource(gen)

		start := time.Now()
		st := src.Generate(context.Background())
		elapsed := time.Since(start)

		if elapsed != DefaultTimeout {
			t.Errorf("Generate returned after %v, want %v", elapsed, DefaultTimeout)
		}
		if st.Source != domain.SourceFallback {
			t.Errorf("expected fallback after timeout, got %v", st.Source)
		}

		// Let the abandoned call finish; its reply must be dropped.
		before := src.pool.Len()
		time.Sleep(gen.delay)
		synctest.Wait()
		if src.pool.Len() != before {
			t.Errorf("late reply changed the pool: len %d, want %d", src.pool.Len(), before)
		}

		gen.mu.Lock()
		gen.delay, gen.err = 0, errors.New("offline")
		gen.mu.Unlock()
		next := src.Generate(context.Background())
		if next.Source != domain.SourceFallback {
			t.Errorf("expected fallback, got %v", next.Source)
		}
		if next.Title == st.Title {
			t.Errorf("rotation repeated %q right after a timeout", st.Title)
		}
	})
}

func TestGenerateCustomTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		gen := &fakeGenerator{reply: goodStory, delay: 2 * time.Second}
		src := NewSource(gen, newTestPool(), logger.New(logger.LevelOff, nil), WithTimeout(time.Second))

		start := time.Now()
		st := src.Generate(context.Background())
		if time.Since(start) != time.Second {
			t.Errorf("returned after %v, want 1s", time.Since(start))
		}
		if st.Source != domain.SourceFallback {
			t.Errorf("expected fallback, got %v", st.Source)
		}
		time.Sleep(gen.delay)
		synctest.Wait()
	})
}

func TestGenerateSlowButInTime(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		gen := &fakeGenerator{reply: goodStory, delay: 14 * time.Second}
		st := newTestSource(gen).Generate(context.Background())
		if st.Source != domain.SourceGenerated {
			t.Errorf("expected generated story, got %v", st.Source)
		}
	})
}

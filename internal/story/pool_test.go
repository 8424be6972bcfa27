package story

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

func newTestPool() *Pool {
	return NewPool(logger.New(logger.LevelOff, nil), rand.New(rand.NewPCG(1, 2)))
}

func TestPoolRotationCoversEveryStoryBeforeRepeating(t *testing.T) {
	p := newTestPool()
	n := p.Len()
	if n < 2 {
		t.Fatalf("expected at least 2 built-in stories, got %d", n)
	}

	for round := 0; round < 3; round++ {
		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			st := p.Next()
			if seen[st.Title] {
				t.Fatalf("round %d: %q served twice before the pool was exhausted", round, st.Title)
			}
			seen[st.Title] = true
		}
		if len(seen) != n {
			t.Fatalf("round %d: served %d distinct stories, want %d", round, len(seen), n)
		}
	}
}

func TestPoolNextShape(t *testing.T) {
	p := newTestPool()
	a := p.Next()
	b := p.Next()

	if !strings.HasPrefix(a.Title, "📚 ") {
		t.Errorf("title %q missing fallback prefix", a.Title)
	}
	if !strings.HasPrefix(a.ID, "fallback-story-") || a.ID == b.ID {
		t.Errorf("unexpected ids %q, %q", a.ID, b.ID)
	}
	if a.Source != domain.SourceFallback {
		t.Errorf("source = %v, want fallback", a.Source)
	}
	if len(a.Segments) != 8 {
		t.Errorf("expected 8 segments, got %d", len(a.Segments))
	}
}

func TestPoolReturnsCopies(t *testing.T) {
	p := NewPool(logger.New(logger.LevelOff, nil), nil)
	for i := 0; i < p.Len(); i++ {
		st := p.Next()
		for j := range st.Segments {
			st.Segments[j].Text = "mutated"
		}
	}
	for i := 0; i < p.Len(); i++ {
		if p.Next().Segments[0].Text == "mutated" {
			t.Fatal("mutating a served story changed the pool")
		}
	}

	def := p.Default()
	def.Segments[0].Text = "mutated"
	if p.Default().Segments[0].Text == "mutated" {
		t.Fatal("mutating the default story changed the pool")
	}
}

func TestPoolDefault(t *testing.T) {
	def := newTestPool().Default()
	if def.ID != "rabbit-moon" || def.Title != "小兔子與月亮" {
		t.Errorf("unexpected default story %q / %q", def.ID, def.Title)
	}
	if def.Source != domain.SourceDefault {
		t.Errorf("source = %v, want default", def.Source)
	}
	if len(def.Segments) != 8 {
		t.Errorf("expected 8 segments, got %d", len(def.Segments))
	}
}

func TestPoolAdd(t *testing.T) {
	p := newTestPool()
	before := p.Len()

	extra := &domain.Story{Title: "小鯨魚", Segments: []domain.Segment{{Text: "小鯨魚在海裡唱歌。"}}}
	if err := p.Add(extra); err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Len() != before+1 {
		t.Errorf("len = %d, want %d", p.Len(), before+1)
	}
	if err := p.Add(extra); !errors.Is(err, domain.ErrDuplicateTitle) {
		t.Errorf("expected ErrDuplicateTitle, got %v", err)
	}
	if err := p.Add(&domain.Story{Title: "空的"}); !errors.Is(err, domain.ErrNoStory) {
		t.Errorf("expected ErrNoStory for empty story, got %v", err)
	}

	seen := false
	for i := 0; i < p.Len(); i++ {
		if p.Next().Title == "📚 小鯨魚" {
			seen = true
		}
	}
	if !seen {
		t.Error("added story never served in a full rotation")
	}
}

func TestPoolAddNormalizes(t *testing.T) {
	p := newTestPool()
	if err := p.Add(&domain.Story{Title: "  ", Segments: []domain.Segment{{Text: "晚安。"}}}); !errors.Is(err, domain.ErrInvalidPack) {
		t.Errorf("expected ErrInvalidPack for blank title, got %v", err)
	}
	if err := p.Add(&domain.Story{Title: "空白", Segments: []domain.Segment{{Text: " "}}}); !errors.Is(err, domain.ErrInvalidPack) {
		t.Errorf("expected ErrInvalidPack for blank segment, got %v", err)
	}

	extra := &domain.Story{Title: " 小熊的枕頭 ", Segments: []domain.Segment{
		{Text: "小熊抱著枕頭睡著了"},
		{Text: "媽媽說：「晚安。」"},
	}}
	if err := p.Add(extra); err != nil {
		t.Fatalf("add: %v", err)
	}
	if extra.Segments[0].Text != "小熊抱著枕頭睡著了" {
		t.Error("Add modified the caller's story")
	}

	src := NewSource(nil, p, logger.New(logger.LevelOff, nil))
	for i := 0; i < p.Len(); i++ {
		st := src.Generate(context.Background())
		if st.Title != "📚 小熊的枕頭" {
			continue
		}
		want := []string{"小熊抱著枕頭睡著了。", "媽媽說：「晚安」。"}
		for j, seg := range st.Segments {
			if seg.Text != want[j] {
				t.Errorf("segment %d = %q, want %q", j, seg.Text, want[j])
			}
		}
		return
	}
	t.Error("added story never served in a full rotation")
}

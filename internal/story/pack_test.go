package story

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
)

const yamlPack = `
stories:
  - title: 小鯨魚的歌
    segments:
      - text: 大海深處住著一隻小鯨魚。
      - text: 牠每天晚上都會唱一首溫柔的歌。
        duration_ms: 4500
`

func TestParsePackYAML(t *testing.T) {
	stories, err := ParsePack([]byte(yamlPack), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("expected 1 story, got %d", len(stories))
	}
	st := stories[0]
	if st.Title != "小鯨魚的歌" || len(st.Segments) != 2 {
		t.Fatalf("unexpected story %q with %d segments", st.Title, len(st.Segments))
	}
	if st.Segments[0].DurationHint != HintFor(st.Segments[0].Text) {
		t.Errorf("missing duration_ms should use the length hint, got %v", st.Segments[0].DurationHint)
	}
	if st.Segments[1].DurationHint != 4500*time.Millisecond {
		t.Errorf("duration_ms ignored, got %v", st.Segments[1].DurationHint)
	}
}

func TestParsePackRejects(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"no stories", `{"stories": []}`, domain.ErrInvalidPack},
		{"missing segments", `{"stories": [{"title": "a"}]}`, domain.ErrInvalidPack},
		{"empty text", `{"stories": [{"title": "a", "segments": [{"text": ""}]}]}`, domain.ErrInvalidPack},
		{"blank text", `{"stories": [{"title": "a", "segments": [{"text": "   "}]}]}`, domain.ErrInvalidPack},
		{"negative duration", `{"stories": [{"title": "a", "segments": [{"text": "x", "duration_ms": -1}]}]}`, domain.ErrInvalidPack},
		{"unknown field", `{"stories": [{"title": "a", "mood": "sad", "segments": [{"text": "x"}]}]}`, domain.ErrInvalidPack},
		{"not json", `{"stories":`, domain.ErrInvalidPack},
		{"blank title", `{"stories": [{"title": "   ", "segments": [{"text": "x"}]}]}`, domain.ErrInvalidPack},
		{"duplicate title", `{"stories": [
			{"title": "a", "segments": [{"text": "x"}]},
			{"title": "a", "segments": [{"text": "y"}]}]}`, domain.ErrDuplicateTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePack([]byte(tt.raw), false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

const unpunctuatedPack = `
stories:
  - title: 小熊的枕頭
    segments:
      - text: 小熊抱著枕頭睡著了
      - text: "  It dreamed of honey  "
      - text: 媽媽說：「晚安」
`

func TestParsePackAddsTerminals(t *testing.T) {
	stories, err := ParsePack([]byte(unpunctuatedPack), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"小熊抱著枕頭睡著了。", "It dreamed of honey.", "媽媽說：「晚安」。"}
	got := make([]string, 0, len(stories[0].Segments))
	for _, seg := range stories[0].Segments {
		got = append(got, seg.Text)
	}
	if !equal(got, want) {
		t.Fatalf("segments = %q, want %q", got, want)
	}
	if stories[0].Segments[0].DurationHint != HintFor(want[0]) {
		t.Errorf("hint should follow the normalized text, got %v", stories[0].Segments[0].DurationHint)
	}
}

func TestParsePackRejectsBlankYAMLTitle(t *testing.T) {
	raw := "stories:\n  - title: \"   \"\n    segments:\n      - text: 晚安。\n"
	if _, err := ParsePack([]byte(raw), true); !errors.Is(err, domain.ErrInvalidPack) {
		t.Fatalf("expected ErrInvalidPack, got %v", err)
	}
}

func TestLoadPackFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yml")
	if err := os.WriteFile(path, []byte(yamlPack), 0o644); err != nil {
		t.Fatal(err)
	}

	stories, err := LoadPack(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	p := newTestPool()
	for _, st := range stories {
		if err := p.Add(st); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if p.Len() != len(fallbackStories)+1 {
		t.Errorf("pool len = %d", p.Len())
	}

	if _, err := LoadPack(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

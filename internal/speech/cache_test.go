package speech

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

func TestAudioCacheDiskLayer(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(logger.LevelOff, nil)
	opts := domain.DefaultVoice

	c := NewAudioCache("voice-a", dir, true, log)
	c.Put("小熊", opts, []byte("bear"))

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("disk entries = %d, want 1", len(entries))
	}

	// A fresh cache warms from disk.
	warm := NewAudioCache("voice-a", dir, false, log)
	if !warm.Has("小熊", opts) {
		t.Fatal("expected disk entry to be visible")
	}
	got, ok := warm.Get("小熊", opts)
	if !ok || string(got) != "bear" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := warm.Get("小熊", opts); !ok {
		t.Fatal("second Get missed")
	}
	st := warm.Stats()
	if st.DiskHits != 1 || st.MemHits != 1 || st.Clips != 1 {
		t.Errorf("disk hit should be kept in memory: %s", st)
	}

	// Read-only cache does not persist.
	warm.Put("小貓", opts, []byte("cat"))
	entries, _ = os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("read-only cache wrote to disk: %d entries", len(entries))
	}
}

func TestAudioCacheUnwritableDirStaysInMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewAudioCache("voice-a", filepath.Join(blocker, "clips"), true, logger.New(logger.LevelOff, nil))
	c.Put("月亮", domain.DefaultVoice, []byte("moon"))
	if got, ok := c.Get("月亮", domain.DefaultVoice); !ok || string(got) != "moon" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
}

func TestAudioCacheKeyCoversVoiceAndProsody(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	c := NewAudioCache("voice-a", "", false, log)
	c.Put("月亮", domain.DefaultVoice, []byte("x"))

	if c.Has("月亮", domain.VoiceOptions{Rate: 1, Pitch: 1, Volume: 1}) {
		t.Error("different prosody should miss")
	}
	other := NewAudioCache("voice-b", "", false, log)
	if other.key("月亮", domain.DefaultVoice) == c.key("月亮", domain.DefaultVoice) {
		t.Error("different voices should hash differently")
	}
	if _, ok := c.Get("星星", domain.DefaultVoice); ok {
		t.Error("unexpected hit")
	}
	if st := c.Stats(); st.Hits() != 0 || st.Misses != 1 {
		t.Errorf("stats = %s, want 0 hits and 1 miss", st)
	}
}

func TestAudioCacheStats(t *testing.T) {
	c := NewAudioCache("voice-a", "", false, logger.New(logger.LevelOff, nil))
	opts := domain.DefaultVoice

	if rate := c.Stats().HitRate(); rate != 0 {
		t.Errorf("empty hit rate = %v", rate)
	}
	c.Put("一。", opts, make([]byte, 100))
	c.Put("一。", opts, make([]byte, 40))
	c.Put("二。", opts, make([]byte, 60))
	c.Get("一。", opts)
	c.Get("二。", opts)
	c.Get("三。", opts)
	c.Has("三。", opts)

	st := c.Stats()
	if st.Clips != 2 || st.Bytes != 100 {
		t.Errorf("clips/bytes = %d/%d, want 2/100", st.Clips, st.Bytes)
	}
	if st.MemHits != 2 || st.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", st.MemHits, st.Misses)
	}
	if rate := st.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("hit rate = %v, want 2/3", rate)
	}
}

func TestAudioCacheMissing(t *testing.T) {
	c := NewAudioCache("voice-a", "", false, logger.New(logger.LevelOff, nil))
	opts := domain.DefaultVoice
	c.Put("二。", opts, []byte("2"))

	got := c.Missing(opts, "一。", "二。", "三。", "一。")
	if want := []string{"一。", "三。"}; !slices.Equal(got, want) {
		t.Errorf("Missing = %q, want %q", got, want)
	}
	if c.Stats().Misses != 0 {
		t.Error("Missing should not count as lookups")
	}
}

func TestTruncateForLog(t *testing.T) {
	if got := truncateForLog("小兔子與月亮", 4); got != "小兔子…" {
		t.Errorf("got %q", got)
	}
	if got := truncateForLog("短", 4); got != "短" {
		t.Errorf("got %q", got)
	}
}

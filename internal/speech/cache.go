package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// AudioCache holds synthesized narration clips keyed by voice, prosody
// and text. Clips live in memory and, when a directory is set, as WAV
// files on disk. Files from earlier nights are read even when persist is
// off, so a story heard before starts without a synthesis round trip.
type AudioCache struct {
	mu      sync.RWMutex
	clips   map[string][]byte
	stats   CacheStats
	voice   string
	dir     string
	persist bool
	log     *logger.Logger
}

// CacheStats counts clip lookups made through Get.
type CacheStats struct {
	MemHits  int64
	DiskHits int64
	Misses   int64
	Clips    int   // clips held in memory
	Bytes    int64 // audio held in memory
}

// Hits is the number of lookups served without synthesis.
func (s CacheStats) Hits() int64 { return s.MemHits + s.DiskHits }

// HitRate is the share of lookups served without synthesis, 0 when none
// were made.
func (s CacheStats) HitRate() float64 {
	total := s.Hits() + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

func (s CacheStats) String() string {
	return fmt.Sprintf("%d clips (%d KiB), %d mem + %d disk hits, %d misses",
		s.Clips, s.Bytes/1024, s.MemHits, s.DiskHits, s.Misses)
}

// NewAudioCache creates a clip cache for one narrator voice. An empty dir
// keeps everything in memory.
func NewAudioCache(voice, dir string, persist bool, log *logger.Logger) *AudioCache {
	if dir != "" && persist {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cache: cannot create %s, clips stay in memory: %v", dir, err)
			persist = false
		}
	}
	return &AudioCache{
		clips:   make(map[string][]byte),
		voice:   voice,
		dir:     dir,
		persist: persist,
		log:     log,
	}
}

// Get returns the clip for text spoken with opts. A clip found on disk is
// kept in memory for the rest of the session.
func (c *AudioCache) Get(text string, opts domain.VoiceOptions) ([]byte, bool) {
	key := c.key(text, opts)

	c.mu.Lock()
	clip, ok := c.clips[key]
	if ok {
		c.stats.MemHits++
	}
	c.mu.Unlock()
	if ok {
		return clip, true
	}

	clip, ok = c.load(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.remember(key, clip)
	c.stats.DiskHits++
	c.log.Debug("cache: %s loaded from disk (%d bytes)", truncateForLog(text, 40), len(clip))
	return clip, true
}

// Put stores a freshly synthesized clip.
func (c *AudioCache) Put(text string, opts domain.VoiceOptions, clip []byte) {
	key := c.key(text, opts)

	c.mu.Lock()
	c.remember(key, clip)
	c.mu.Unlock()

	if !c.persist {
		return
	}
	if err := os.WriteFile(c.path(key), clip, 0o644); err != nil {
		c.log.Warn("cache: could not save clip for %s: %v", truncateForLog(text, 40), err)
	}
}

// Has reports whether a clip for text is available without synthesis.
// It does not count as a lookup.
func (c *AudioCache) Has(text string, opts domain.VoiceOptions) bool {
	key := c.key(text, opts)

	c.mu.RLock()
	_, ok := c.clips[key]
	c.mu.RUnlock()
	if ok || c.dir == "" {
		return ok
	}
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Missing returns the texts that still need synthesis, in order and
// without repeats.
func (c *AudioCache) Missing(opts domain.VoiceOptions, texts ...string) []string {
	var out []string
	seen := make(map[string]bool, len(texts))
	for _, t := range texts {
		if seen[t] {
			continue
		}
		seen[t] = true
		if !c.Has(t, opts) {
			out = append(out, t)
		}
	}
	return out
}

// Stats returns a snapshot of the lookup counters.
func (c *AudioCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// remember must be called with mu held.
func (c *AudioCache) remember(key string, clip []byte) {
	if old, ok := c.clips[key]; ok {
		c.stats.Bytes -= int64(len(old))
	} else {
		c.stats.Clips++
	}
	c.clips[key] = clip
	c.stats.Bytes += int64(len(clip))
}

func (c *AudioCache) load(key string) ([]byte, bool) {
	if c.dir == "" {
		return nil, false
	}
	clip, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	return clip, true
}

// key changes with the voice or any prosody field, so a re-tuned narrator
// never replays an old recording.
func (c *AudioCache) key(text string, opts domain.VoiceOptions) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s:%.2f/%.2f/%.2f:%s", c.voice, opts.Rate, opts.Pitch, opts.Volume, text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

// truncateForLog shortens s to n runes for log lines.
func truncateForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

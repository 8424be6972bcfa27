package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/breathing"
	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/narration"
	"github.com/hammamikhairi/sleepylearn/internal/story"
)

// fakeSpeaker takes a fixed time per utterance and honours Cancel.
type fakeSpeaker struct {
	mu          sync.Mutex
	dur         time.Duration
	unavailable bool
	spoken      []string
	cur         chan struct{}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string, _ domain.VoiceOptions) error {
	if f.unavailable {
		return domain.ErrSpeechUnavailable
	}
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	if f.cur != nil {
		close(f.cur)
	}
	ch := make(chan struct{})
	f.cur = ch
	f.mu.Unlock()

	select {
	case <-time.After(f.dur):
		return nil
	case <-ch:
		return domain.ErrSpeechCancelled
	case <-ctx.Done():
		return domain.ErrSpeechCancelled
	}
}

func (f *fakeSpeaker) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur != nil {
		close(f.cur)
		f.cur = nil
	}
}

func (f *fakeSpeaker) Available() bool { return !f.unavailable }

// slowGen answers after delay.
type slowGen struct {
	delay time.Duration
	text  string
	calls int
	mu    sync.Mutex
}

func (g *slowGen) Ask(ctx context.Context, _ string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	select {
	case <-time.After(g.delay):
		return g.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *slowGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// screen records what the engine displays.
type screen struct {
	mu      sync.Mutex
	stories []string
	loading []string
}

func (s *screen) ShowStory(st *domain.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories = append(s.stories, st.Title)
}

func (s *screen) ShowLoading(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = append(s.loading, msg)
}

func (s *screen) shown() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stories...), append([]string(nil), s.loading...)
}

type notices struct {
	mu     sync.Mutex
	normal []string
	urgent []string
}

func (n *notices) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.normal = append(n.normal, msg)
	return nil
}

func (n *notices) NotifyUrgent(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urgent = append(n.urgent, msg)
	return nil
}

type prefetchLog struct {
	mu    sync.Mutex
	texts []string
}

func (p *prefetchLog) Prefetch(_ context.Context, _ domain.VoiceOptions, texts ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, texts...)
	return nil
}

func (p *prefetchLog) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.texts)
}

type fixture struct {
	eng      *Engine
	speaker  *fakeSpeaker
	gen      *slowGen
	screen   *screen
	notices  *notices
	prefetch *prefetchLog
}

const generated = "從前從前，有一隻小兔子住在月亮旁邊。牠每天晚上都會數星星，數著數著就慢慢睡著了。" +
	"有一天，牠遇見了一朵會唱歌的雲。雲輕輕地唱著搖籃曲，小兔子也跟著閉上了眼睛。"

func setup(t *testing.T, genDelay time.Duration, opts ...Option) fixture {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	f := fixture{
		speaker:  &fakeSpeaker{dur: 2 * time.Second},
		gen:      &slowGen{delay: genDelay, text: generated},
		screen:   &screen{},
		notices:  &notices{},
		prefetch: &prefetchLog{},
	}
	pool := story.NewPool(log, nil)
	src := story.NewSource(f.gen, pool, log)
	seq := narration.New(f.speaker, log, narration.WithGap(time.Second))
	run := breathing.New(f.speaker, log, breathing.WithCycles(1))

	base := []Option{
		WithStoryDisplay(f.screen),
		WithNotifier(f.notices),
		WithPrefetcher(f.prefetch, domain.DefaultVoice),
		WithDefaultStory(pool.Default()),
		WithLoadingMessages(story.LoadingMessages, 2*time.Second),
	}
	f.eng = New(src, seq, run, log, append(base, opts...)...)
	return f
}

func TestGenerateStory(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, 5*time.Second)
		ctx := context.Background()

		st := f.eng.GenerateStory(ctx)
		if st == nil {
			t.Fatal("expected a story")
		}
		if st.Source != domain.SourceGenerated {
			t.Fatalf("source = %v, want generated", st.Source)
		}
		synctest.Wait()

		stories, loading := f.screen.shown()
		if len(stories) != 1 || stories[0] != st.Title {
			t.Fatalf("shown stories = %v", stories)
		}
		// Loading messages at 0s, 2s and 4s before the reply at 5s.
		if len(loading) != 3 {
			t.Fatalf("loading messages = %d, want 3: %v", len(loading), loading)
		}
		if got := f.prefetch.count(); got != len(st.Segments) {
			t.Fatalf("prefetched %d texts, want %d", got, len(st.Segments))
		}

		s := f.eng.Status()
		if s.Page != domain.PageStories || s.Generating {
			t.Fatalf("status = %+v", s)
		}
		if s.StoryTitle != st.Title || s.Segments != len(st.Segments) {
			t.Fatalf("status story = %q/%d", s.StoryTitle, s.Segments)
		}
	})
}

func TestGenerateStoryFallsBackOnTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, time.Minute)

		start := time.Now()
		st := f.eng.GenerateStory(context.Background())
		if st.Source != domain.SourceFallback {
			t.Fatalf("source = %v, want fallback", st.Source)
		}
		if got := time.Since(start); got != story.DefaultTimeout {
			t.Fatalf("waited %v, want %v", got, story.DefaultTimeout)
		}
	})
}

func TestGenerateStoryIgnoresReentry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, 5*time.Second)
		ctx := context.Background()

		done := make(chan *domain.Story)
		go func() { done <- f.eng.GenerateStory(ctx) }()
		synctest.Wait()

		if !f.eng.Status().Generating {
			t.Fatal("expected generating")
		}
		if st := f.eng.GenerateStory(ctx); st != nil {
			t.Fatal("second call should be ignored")
		}
		<-done
		if got := f.gen.callCount(); got != 1 {
			t.Fatalf("generator calls = %d, want 1", got)
		}
	})
}

func TestStoriesFirstVisitAutoGenerates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		f.eng.Stories(ctx)
		stories, _ := f.screen.shown()
		if len(stories) != 1 {
			t.Fatalf("expected default story shown, got %v", stories)
		}

		time.Sleep(2 * time.Second)
		synctest.Wait()
		if got := f.gen.callCount(); got != 1 {
			t.Fatalf("generator calls = %d, want 1", got)
		}

		// Later visits only show the current story.
		f.eng.Home()
		f.eng.Stories(ctx)
		time.Sleep(2 * time.Second)
		synctest.Wait()
		if got := f.gen.callCount(); got != 1 {
			t.Fatalf("generator calls = %d after revisit, want 1", got)
		}
		stories, _ = f.screen.shown()
		if len(stories) != 3 {
			t.Fatalf("shown stories = %v", stories)
		}
	})
}

func TestStoriesAutoGenerateSkippedAfterLeaving(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		f.eng.Stories(ctx)
		f.eng.Home()
		time.Sleep(time.Second)
		synctest.Wait()
		if got := f.gen.callCount(); got != 0 {
			t.Fatalf("generator calls = %d, want 0", got)
		}
	})
}

func TestPlayStoryAndBreathingExclusive(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, 0, WithAutoGenerateDelay(0))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := f.eng.PlayStory(ctx); err != nil {
			t.Fatalf("PlayStory: %v", err)
		}
		synctest.Wait()
		if s := f.eng.Status(); !s.Narrating || s.Page != domain.PageStories {
			t.Fatalf("status after play = %+v", s)
		}

		if err := f.eng.StartBreathing(ctx); err != nil {
			t.Fatalf("StartBreathing: %v", err)
		}
		synctest.Wait()
		s := f.eng.Status()
		if s.Narrating {
			t.Fatal("narration should stop when breathing starts")
		}
		if !s.Breathing.Active || s.Page != domain.PageBreathing {
			t.Fatalf("status after breathe = %+v", s)
		}

		if err := f.eng.PlayStory(ctx); err != nil {
			t.Fatalf("PlayStory: %v", err)
		}
		synctest.Wait()
		s = f.eng.Status()
		if s.Breathing.Active {
			t.Fatal("breathing should stop when narration starts")
		}
		if !s.Narrating {
			t.Fatal("expected narration")
		}

		f.eng.Home()
		synctest.Wait()
		s = f.eng.Status()
		if s.Narrating || s.Breathing.Active || s.Page != domain.PageHome {
			t.Fatalf("status after home = %+v", s)
		}
	})
}

func TestPlayStoryWithoutSpeech(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, 0)
		f.speaker.unavailable = true

		err := f.eng.PlayStory(context.Background())
		if !errors.Is(err, domain.ErrSpeechUnavailable) {
			t.Fatalf("err = %v, want ErrSpeechUnavailable", err)
		}
		if len(f.notices.urgent) != 1 {
			t.Fatalf("urgent notices = %v", f.notices.urgent)
		}
	})
}

func TestPlayStoryWithNothingLoaded(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	sp := &fakeSpeaker{dur: time.Second}
	n := &notices{}
	eng := New(
		story.NewSource(nil, story.NewPool(log, nil), log),
		narration.New(sp, log),
		breathing.New(sp, log),
		log,
		WithNotifier(n),
	)

	err := eng.PlayStory(context.Background())
	if !errors.Is(err, domain.ErrNoStory) {
		t.Fatalf("err = %v, want ErrNoStory", err)
	}
	if len(n.normal) != 1 {
		t.Fatalf("notices = %v", n.normal)
	}
}

func TestReportError(t *testing.T) {
	f := setup(t, 0)

	f.eng.ReportError(nil)
	f.eng.ReportError(domain.ErrSpeechCancelled)
	if len(f.notices.urgent) != 0 {
		t.Fatalf("cancellation should not notify: %v", f.notices.urgent)
	}

	f.eng.ReportError(errors.New("device gone"))
	if len(f.notices.urgent) != 1 {
		t.Fatalf("urgent notices = %v", f.notices.urgent)
	}
	if strings.Contains(f.notices.urgent[0], "device gone") {
		t.Fatalf("notice leaks technical detail: %q", f.notices.urgent[0])
	}
}

func TestPrefetchLines(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, 0)
		lines := breathing.DefaultProtocol().Lines()

		f.eng.PrefetchLines(context.Background(), lines...)
		synctest.Wait()
		if got := f.prefetch.count(); got != len(lines) {
			t.Fatalf("prefetched %d, want %d", got, len(lines))
		}
	})
}

func TestStoriesAutoGenerateSkippedAfterManualRequest(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := setup(t, 100*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		f.eng.Stories(ctx)
		f.eng.GenerateStory(ctx)
		time.Sleep(time.Second)
		synctest.Wait()
		if got := f.gen.callCount(); got != 1 {
			t.Fatalf("generator calls = %d, want 1", got)
		}
	})
}

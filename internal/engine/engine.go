// Package engine is the navigation layer: it owns the current page, the
// current story, and the rule that narration and breathing never run at
// the same time.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
	"github.com/hammamikhairi/sleepylearn/internal/speech"
	"github.com/hammamikhairi/sleepylearn/internal/timer"
)

// ContentSource produces stories. story.Source implements it.
type ContentSource interface {
	Generate(ctx context.Context) *domain.Story
}

// Narrator reads a story aloud. narration.Sequencer implements it.
type Narrator interface {
	Load(st *domain.Story) error
	Play(ctx context.Context) error
	Stop()
	IsPlaying() bool
	Index() int
	Story() *domain.Story
}

// Breather runs the breathing exercise. breathing.Runner implements it.
type Breather interface {
	Start(ctx context.Context) error
	Stop()
	IsActive() bool
	Status() domain.BreathingSession
}

// Prefetcher warms a speech cache. speech.Voice implements it.
type Prefetcher interface {
	Prefetch(ctx context.Context, opts domain.VoiceOptions, texts ...string) error
}

// Option configures the engine.
type Option func(*Engine)

// WithStoryDisplay sets where stories and loading messages are shown.
func WithStoryDisplay(d domain.StoryDisplay) Option {
	return func(e *Engine) { e.display = d }
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n domain.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithPrefetcher enables audio prefetch for loaded stories.
func WithPrefetcher(p Prefetcher, opts domain.VoiceOptions) Option {
	return func(e *Engine) {
		e.prefetch = p
		e.voice = opts
	}
}

// WithCapabilities records which optional services are present.
func WithCapabilities(c domain.Capabilities) Option {
	return func(e *Engine) { e.caps = c }
}

// WithDefaultStory sets the story shown before anything is generated.
func WithDefaultStory(st *domain.Story) Option {
	return func(e *Engine) { e.current = st.Clone() }
}

// WithAutoGenerateDelay sets the pause before the first visit to the
// stories page triggers generation. Zero disables auto-generation.
func WithAutoGenerateDelay(d time.Duration) Option {
	return func(e *Engine) { e.autoDelay = d }
}

// WithLoadingMessages sets the rotating messages shown while generating.
func WithLoadingMessages(msgs []string, every time.Duration) Option {
	return func(e *Engine) {
		e.loading = msgs
		e.loadingEvery = every
	}
}

// Engine coordinates the story and breathing activities. It depends only
// on interfaces and is fully testable with fakes.
type Engine struct {
	source   ContentSource
	narrator Narrator
	breather Breather
	display  domain.StoryDisplay
	notifier domain.Notifier
	prefetch Prefetcher
	voice    domain.VoiceOptions
	caps     domain.Capabilities
	log      *logger.Logger

	autoDelay    time.Duration
	loading      []string
	loadingEvery time.Duration

	mu         sync.Mutex
	page       domain.Page
	current    *domain.Story
	generating bool
	gens       int  // generations started
	visited    bool // stories page seen at least once
}

// New creates an engine with the given activities and options.
func New(source ContentSource, narrator Narrator, breather Breather, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:       source,
		narrator:     narrator,
		breather:     breather,
		display:      nopDisplay{},
		log:          log,
		voice:        domain.DefaultVoice,
		autoDelay:    500 * time.Millisecond,
		loadingEvery: 2 * time.Second,
		page:         domain.PageHome,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ── Navigation ───────────────────────────────────────────────────

// Home stops everything and returns to the home page.
func (e *Engine) Home() {
	e.StopAll()
	e.setPage(domain.PageHome)
}

// Stories opens the stories page and shows the current story. The first
// visit also kicks off generation after a short settle, unless the user
// has already asked for a story by then. Both activities are stopped.
func (e *Engine) Stories(ctx context.Context) {
	e.StopAll()

	e.mu.Lock()
	e.page = domain.PageStories
	first := !e.visited
	e.visited = true
	cur := e.current.Clone()
	gens := e.gens
	e.mu.Unlock()

	if cur != nil {
		e.display.ShowStory(cur)
	}
	if !first || e.autoDelay <= 0 {
		return
	}
	go func() {
		if timer.Sleep(ctx, e.autoDelay) != nil {
			return
		}
		e.mu.Lock()
		untouched := e.page == domain.PageStories && e.gens == gens
		e.mu.Unlock()
		if untouched && !e.narrator.IsPlaying() {
			e.log.Debug("engine: first visit, generating a story")
			e.GenerateStory(ctx)
		}
	}()
}

// GenerateStory fetches a new story, shows it, and loads it for
// narration. Calls made while a generation is already running return
// nil without doing anything.
func (e *Engine) GenerateStory(ctx context.Context) *domain.Story {
	e.mu.Lock()
	if e.generating {
		e.mu.Unlock()
		e.log.Debug("engine: generation already running")
		return nil
	}
	e.generating = true
	e.gens++
	e.page = domain.PageStories
	e.visited = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.generating = false
		e.mu.Unlock()
	}()

	e.narrator.Stop()
	e.breather.Stop()

	lctx, stopLoading := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if len(e.loading) > 0 {
		rot := timer.NewRotator(e.loading, e.log, timer.WithRotateInterval(e.loadingEvery))
		wg.Add(1)
		go func() {
			defer wg.Done()
			rot.Run(lctx, e.display.ShowLoading)
		}()
	}

	st := e.source.Generate(ctx)
	stopLoading()
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	e.narrator.Stop()
	if err := e.narrator.Load(st); err != nil {
		e.log.Error("engine: loading story %s: %v", st.ID, err)
	}

	e.mu.Lock()
	e.current = st.Clone()
	e.mu.Unlock()

	e.log.Info("engine: story ready: %s (%s, %d segments)", st.Title, st.Source, len(st.Segments))
	e.display.ShowStory(st)
	e.prefetchStory(ctx, st)
	return st
}

// PlayStory starts narrating the current story, loading it first if the
// narrator has none. Breathing is stopped first.
func (e *Engine) PlayStory(ctx context.Context) error {
	e.breather.Stop()
	e.setPage(domain.PageStories)

	if e.narrator.IsPlaying() {
		return nil
	}

	e.mu.Lock()
	cur := e.current
	e.mu.Unlock()
	if e.narrator.Story() == nil {
		if cur == nil {
			e.notify(ctx, speech.LineNoStory())
			return domain.ErrNoStory
		}
		if err := e.narrator.Load(cur); err != nil {
			return err
		}
	}

	if err := e.narrator.Play(ctx); err != nil {
		if errors.Is(err, domain.ErrSpeechUnavailable) {
			e.urgent(ctx, speech.LineSpeechUnavailable())
		}
		return err
	}
	return nil
}

// StopStory stops narration.
func (e *Engine) StopStory() {
	e.narrator.Stop()
}

// StartBreathing opens the breathing page and starts the exercise.
// Narration is stopped first.
func (e *Engine) StartBreathing(ctx context.Context) error {
	e.narrator.Stop()
	e.setPage(domain.PageBreathing)

	if err := e.breather.Start(ctx); err != nil {
		if errors.Is(err, domain.ErrSpeechUnavailable) {
			e.urgent(ctx, speech.LineSpeechUnavailable())
		}
		return err
	}
	return nil
}

// StopBreathing stops the exercise.
func (e *Engine) StopBreathing() {
	e.breather.Stop()
}

// StopAll stops both activities.
func (e *Engine) StopAll() {
	e.narrator.Stop()
	e.breather.Stop()
}

// Status returns a snapshot for the UI.
func (e *Engine) Status() domain.AppStatus {
	e.mu.Lock()
	s := domain.AppStatus{
		Page:         e.page,
		Generating:   e.generating,
		Capabilities: e.caps,
	}
	if e.current != nil {
		s.StoryTitle = e.current.Title
		s.Segments = len(e.current.Segments)
	}
	e.mu.Unlock()

	s.Narrating = e.narrator.IsPlaying()
	s.Segment = e.narrator.Index()
	if st := e.narrator.Story(); st != nil {
		s.StoryTitle = st.Title
		s.Segments = len(st.Segments)
	}
	s.Breathing = e.breather.Status()
	return s
}

// ReportError turns an activity failure into a user-facing notice.
// Cancellations are not failures and are dropped.
func (e *Engine) ReportError(err error) {
	if err == nil || errors.Is(err, domain.ErrSpeechCancelled) {
		return
	}
	e.log.Error("engine: %v", err)
	e.urgent(context.Background(), speech.LineSpeechError())
}

// PrefetchLines warms the speech cache with fixed lines, such as the
// breathing script. It returns immediately.
func (e *Engine) PrefetchLines(ctx context.Context, lines ...string) {
	if e.prefetch == nil {
		return
	}
	go func() {
		if err := e.prefetch.Prefetch(ctx, e.voice, lines...); err != nil {
			e.log.Warn("engine: prefetch lines: %v", err)
		}
	}()
}

// ── helpers ──────────────────────────────────────────────────────

func (e *Engine) setPage(p domain.Page) {
	e.mu.Lock()
	e.page = p
	e.mu.Unlock()
}

func (e *Engine) prefetchStory(ctx context.Context, st *domain.Story) {
	if e.prefetch == nil {
		return
	}
	texts := st.Texts()
	go func() {
		if err := e.prefetch.Prefetch(ctx, e.voice, texts...); err != nil {
			e.log.Warn("engine: prefetch %s: %v", st.ID, err)
		}
	}()
}

func (e *Engine) notify(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		e.log.Warn("engine: notify: %v", err)
	}
}

func (e *Engine) urgent(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyUrgent(ctx, msg); err != nil {
		e.log.Warn("engine: notify: %v", err)
	}
}

type nopDisplay struct{}

func (nopDisplay) ShowStory(*domain.Story) {}
func (nopDisplay) ShowLoading(string)      {}

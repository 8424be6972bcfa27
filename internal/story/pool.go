// Package story provides story content: generation with a deadline, the
// canned fallback pool, segmentation, and loadable story packs.
package story

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

// Pool holds the canned stories and rotates through them so the same
// story is not served twice until every other one has been. Safe for
// concurrent use.
type Pool struct {
	mu      sync.Mutex
	stories []*domain.Story
	titles  map[string]bool // titles in the pool
	used    map[string]bool // recently served titles
	def     *domain.Story
	rng     *rand.Rand
	log     *logger.Logger
}

// NewPool creates a pool preloaded with the built-in stories.
// rng may be nil, in which case a randomly seeded source is used.
func NewPool(log *logger.Logger, rng *rand.Rand) *Pool {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	p := &Pool{
		titles: make(map[string]bool),
		used:   make(map[string]bool),
		rng:    rng,
		log:    log,
	}
	p.seed()
	return p
}

// Add puts a story into the rotation. Titles must be unique and not
// blank; segment text is given a terminal if it lacks one.
func (p *Pool) Add(st *domain.Story) error {
	if st == nil || len(st.Segments) == 0 {
		return domain.ErrNoStory
	}
	cp := st.Clone()
	cp.Title = strings.TrimSpace(cp.Title)
	if cp.Title == "" {
		return fmt.Errorf("adding story %s: %w: blank title", cp.ID, domain.ErrInvalidPack)
	}
	for i := range cp.Segments {
		cp.Segments[i].Text = terminate(cp.Segments[i].Text)
		if cp.Segments[i].Text == "" {
			return fmt.Errorf("adding %q: %w: segment %d is empty", cp.Title, domain.ErrInvalidPack, i+1)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.titles[cp.Title] {
		return fmt.Errorf("adding %q: %w", cp.Title, domain.ErrDuplicateTitle)
	}
	cp.Source = domain.SourceFallback
	p.stories = append(p.stories, cp)
	p.titles[cp.Title] = true
	p.log.Debug("pool: added %q (%d segments), size=%d", cp.Title, len(cp.Segments), len(p.stories))
	return nil
}

// Next returns a fallback story not served since the last reset.
// When every story has been served the used set is cleared first.
// The result is a fresh copy with its own ID and a "📚 " title.
func (p *Pool) Next() *domain.Story {
	p.mu.Lock()
	defer p.mu.Unlock()

	available := p.unused()
	if len(available) == 0 {
		p.log.Debug("pool: all %d stories used, resetting", len(p.stories))
		clear(p.used)
		available = p.unused()
	}

	chosen := available[p.rng.IntN(len(available))]
	p.used[chosen.Title] = true

	out := chosen.Clone()
	out.ID = newID("fallback-story-")
	out.Title = "📚 " + chosen.Title
	p.log.Info("pool: serving %q (%d/%d used)", chosen.Title, len(p.used), len(p.stories))
	return out
}

// Default returns a copy of the story shown before anything is generated.
func (p *Pool) Default() *domain.Story {
	return p.def.Clone()
}

// Len returns the number of stories in rotation.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stories)
}

// Titles returns the raw titles in rotation, in insertion order.
func (p *Pool) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.stories))
	for i, st := range p.stories {
		out[i] = st.Title
	}
	return out
}

func (p *Pool) unused() []*domain.Story {
	var out []*domain.Story
	for _, st := range p.stories {
		if !p.used[st.Title] {
			out = append(out, st)
		}
	}
	return out
}

// seed loads the built-in stories.
func (p *Pool) seed() {
	for _, c := range fallbackStories {
		st := c.build("canned-" + c.title)
		st.Source = domain.SourceFallback
		p.stories = append(p.stories, st)
		p.titles[st.Title] = true
	}
	p.def = defaultStory.build("rabbit-moon")
	p.def.Source = domain.SourceDefault
	p.log.Debug("pool: seeded %d stories", len(p.stories))
}

func (c cannedStory) build(id string) *domain.Story {
	st := &domain.Story{ID: id, Title: c.title}
	for _, text := range c.segments {
		st.Segments = append(st.Segments, domain.Segment{Text: text, DurationHint: HintFor(text)})
	}
	return st
}

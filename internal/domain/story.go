// Package domain defines the core types and interfaces for the bedtime app.
// All other packages depend on domain; domain depends on nothing.
package domain

import (
	"errors"
	"strings"
	"time"
)

// StorySource records where a story came from.
type StorySource int

const (
	// SourceDefault is the built-in story shown before anything is generated.
	SourceDefault StorySource = iota
	// SourceGenerated is a story written by the language model.
	SourceGenerated
	// SourceFallback is a canned story from the rotation pool.
	SourceFallback
)

// String returns a human-readable story source.
func (s StorySource) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceGenerated:
		return "generated"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Segment is one spoken unit of a story: a sentence or two of text
// plus a rough hint of how long it takes to say.
type Segment struct {
	Text         string
	DurationHint time.Duration
}

// NewSegment validates and builds a Segment.
func NewSegment(text string, hint time.Duration) (Segment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Segment{}, errors.New("segment text is empty")
	}
	if hint < 0 {
		return Segment{}, errors.New("segment duration hint is negative")
	}
	return Segment{Text: text, DurationHint: hint}, nil
}

// Story is a titled, ordered list of segments.
type Story struct {
	ID       string
	Title    string
	Source   StorySource
	Segments []Segment
}

// Clone returns a deep copy. Stories handed between components are always
// clones so no two holders share a segment slice.
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Segments = make([]Segment, len(s.Segments))
	copy(cp.Segments, s.Segments)
	return &cp
}

// TotalHint sums the duration hints of all segments.
func (s *Story) TotalHint() time.Duration {
	var total time.Duration
	for _, seg := range s.Segments {
		total += seg.DurationHint
	}
	return total
}

// Texts returns the segment texts in order.
func (s *Story) Texts() []string {
	out := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		out[i] = seg.Text
	}
	return out
}

package story

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
)

const (
	// perRune is the narration pace used for duration hints.
	perRune = 150 * time.Millisecond
	minHint = 3 * time.Second
	maxHint = 6 * time.Second

	minFragmentRunes  = 5
	minClauseRunes    = 10
	minSegmentsWanted = 4
)

var (
	reHeader  = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	reBold    = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	reItalic  = regexp.MustCompile(`\*([^*\n]+)\*`)
	reLink    = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reSpace   = regexp.MustCompile(`\s+`)
	reLeadIn  = regexp.MustCompile(`^[#\-*+\s]+`)
	terminals = "。！？.!?"
	closers   = "」』”\"'）)"
	clauseSep = "，、；,;"
)

// HintFor returns the narration duration hint for a piece of text.
func HintFor(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * perRune
	return min(max(d, minHint), maxHint)
}

// Split turns raw generated prose into narration segments.
//
// Sentences are cut at terminal punctuation. Fragments shorter than five
// characters are dropped, markdown lead-ins are stripped, and a terminal
// is appended to anything that lacks one. When that yields fewer than
// four segments the text is re-cut at clause punctuation, and the clause
// cut wins if it produces at least four clauses of ten or more characters.
// The result may be empty; callers fall back to canned content then.
func Split(raw string) []domain.Segment {
	text := clean(raw)
	if text == "" {
		return nil
	}

	var texts []string
	for _, frag := range splitSentences(text) {
		if s, ok := tidy(frag, minFragmentRunes); ok {
			texts = append(texts, s)
		}
	}

	if len(texts) > 0 && len(texts) < minSegmentsWanted {
		joiner := ""
		if terminalFor(text) == "." {
			joiner = " "
		}
		if clauses := splitClauses(strings.Join(texts, joiner)); len(clauses) >= minSegmentsWanted {
			texts = clauses
		}
	}

	segs := make([]domain.Segment, 0, len(texts))
	for _, t := range texts {
		segs = append(segs, domain.Segment{Text: t, DurationHint: HintFor(t)})
	}
	return segs
}

func clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = reHeader.ReplaceAllString(s, "")
	s = reBold.ReplaceAllString(s, "$1$2")
	s = reItalic.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// splitSentences cuts after each run of terminal punctuation, keeping the
// terminal (and any closing quote right after it) with its sentence.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if !strings.ContainsRune(terminals, runes[i]) {
			continue
		}
		for i+1 < len(runes) && (strings.ContainsRune(terminals, runes[i+1]) || strings.ContainsRune(closers, runes[i+1])) {
			i++
			cur.WriteRune(runes[i])
		}
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func splitClauses(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(clauseSep, r)
	})
	var out []string
	for _, p := range parts {
		if s, ok := tidy(p, minClauseRunes); ok {
			out = append(out, s)
		}
	}
	return out
}

// tidy strips the lead-in, checks the length of the body (terminals not
// counted), and makes sure the result ends in a terminal.
func tidy(frag string, minRunes int) (string, bool) {
	s := strings.TrimSpace(reLeadIn.ReplaceAllString(strings.TrimSpace(frag), ""))
	body := strings.TrimRight(s, terminals+closers)
	if utf8.RuneCountInString(strings.TrimSpace(body)) < minRunes {
		return "", false
	}
	return terminate(s), true
}

// terminate makes s end in terminal punctuation. A terminal inside
// closing quotes moves after them: 「晚安。」 becomes 「晚安」。
func terminate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	inner := strings.TrimRight(s, closers)
	quotes := s[len(inner):]
	body := strings.TrimRight(inner, terminals)
	marks := inner[len(body):]
	if marks == "" {
		marks = terminalFor(s)
	}
	return strings.TrimRight(body, " ") + quotes + marks
}

// EndsWithTerminal reports whether s ends in terminal punctuation.
func EndsWithTerminal(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && strings.ContainsRune(terminals, r)
}

func terminalFor(s string) string {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return "。"
		}
	}
	return "."
}

package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
)

// renderBar draws the one-line status bar: page, then whatever activity
// is running, then missing capabilities.
func renderBar(s barState, width int) string {
	parts := []string{pageStyle.Render(pageLabel(s.app.Page))}

	if a := activity(s); a != "" {
		parts = append(parts, activeStyle.Render(a))
	} else {
		parts = append(parts, idleStyle.Render(idleLine(s.app)))
	}
	if c := capabilityLine(s.app.Capabilities); c != "" {
		parts = append(parts, idleStyle.Render(c))
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "
	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(content)
}

func windowTitle(s barState) string {
	if a := activity(s); a != "" {
		return "SleepyLearn · " + a
	}
	return "SleepyLearn"
}

func pageLabel(p domain.Page) string {
	switch p {
	case domain.PageStories:
		return "故事"
	case domain.PageBreathing:
		return "呼吸"
	default:
		return "首頁"
	}
}

// activity describes the running activity, or "" when idle.
func activity(s barState) string {
	app := s.app
	switch {
	case app.Breathing.Active:
		line := phaseGlyph(s.phase) + " " + s.instruction
		if s.detail != "" {
			line += "  " + s.detail
		}
		if app.Breathing.TotalCycles > 0 {
			line += fmt.Sprintf("  (%d/%d)", app.Breathing.Cycle, app.Breathing.TotalCycles)
		}
		return strings.TrimSpace(line)
	case app.Generating:
		return "✎ 正在寫新故事…"
	case app.Narrating:
		return fmt.Sprintf("▶ %s  %s", app.StoryTitle, progress(app.Segment, app.Segments))
	}
	return ""
}

func idleLine(app domain.AppStatus) string {
	if app.StoryTitle != "" {
		return "■ " + app.StoryTitle
	}
	return "輸入 help 看看可以做什麼"
}

func capabilityLine(c domain.Capabilities) string {
	var missing []string
	if !c.Speech {
		missing = append(missing, "無語音")
	}
	if !c.Generation {
		missing = append(missing, "無AI")
	}
	return strings.Join(missing, " ")
}

func phaseGlyph(k domain.PhaseKind) string {
	switch k {
	case domain.PhaseInhale:
		return "○→●"
	case domain.PhaseHold:
		return "●"
	case domain.PhaseExhale, domain.PhaseExhalePrep:
		return "●→○"
	case domain.PhasePrepare:
		return "…"
	default:
		return "○"
	}
}

// progress renders a zero-based index as "3/12".
func progress(index, total int) string {
	if total <= 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", index+1, total)
}

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

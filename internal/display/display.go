// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type manages a status bar and an input prompt at the bottom
// of the terminal. All application output is printed above the rendered
// area via Program.Println / Printf, so concurrent writes from the
// narration and breathing goroutines never garble the display.
package display

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.StoryDisplay      = (*UI)(nil)
	_ domain.BreathingDisplay  = (*UI)(nil)
	_ domain.NarrationObserver = (*UI)(nil)
)

// Prompt is the input prompt. Plain text so textinput width math stays
// correct; styled prompts add invisible ANSI bytes.
const Prompt = "sleepy> "

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#1e1b4b")).
		Foreground(lipgloss.Color("#a5b4fc"))

	pageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c4b5fd")).
			Bold(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a")).
			Italic(true)

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a5b4fc"))

	// ── Output styles (night palette) ──

	// BannerStyle is the startup banner colour.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#818cf8"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fbcfe8")).
			Bold(true)

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	breathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#99f6e4"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Other goroutines may safely
// call the print helpers and the display callbacks, and read from
// [UI.InputChan], at any time after [UI.WaitReady] returns.
type UI struct {
	program *tea.Program
	inputCh chan string
	readyCh chan struct{}
	quitCh  chan struct{}
	status  func() domain.AppStatus
	done    atomic.Bool

	mu          sync.Mutex
	instruction string
	detail      string
	phase       domain.PhaseKind
	segments    []domain.Segment // loaded story, for progress lines
}

// NewUI creates the display. status is polled once a second for the
// status bar; it may be nil. Call Run() to start.
func NewUI(status func() domain.AppStatus) *UI {
	if status == nil {
		status = func() domain.AppStatus { return domain.AppStatus{} }
	}
	return &UI{
		status:  status,
		inputCh: make(chan string, 16),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// Println prints a line above the prompt. Thread-safe. Falls back to
// fmt.Println before the program starts and after it exits.
func (u *UI) Println(a ...any) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Printf prints formatted text above the prompt on its own line.
func (u *UI) Printf(format string, a ...any) {
	if u.program != nil && !u.done.Load() {
		u.program.Printf(format, a...)
	} else {
		fmt.Printf(format+"\n", a...)
	}
}

// InputChan returns completed user-input lines.
func (u *UI) InputChan() <-chan string { return u.inputCh }

// ── Styled print helpers ─────────────────────────────────────────

// PrintChat prints a conversational line.
func (u *UI) PrintChat(text string) {
	u.Println(chatStyle.Render("  " + text))
}

// PrintInstruction prints a main line of text.
func (u *UI) PrintInstruction(text string) {
	u.Println(primaryStyle.Render("  " + text))
}

// PrintHint prints a secondary/dimmed line.
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render("  " + text))
}

// PrintUrgent prints an error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// PrintVoice prints a voice-recognised input line.
func (u *UI) PrintVoice(text string) {
	u.Println(secondaryStyle.Render("[voice] ") + primaryStyle.Render(text))
}

// PrintUserInput echoes the user's typed command into the scrollback.
func (u *UI) PrintUserInput(text string) {
	u.Println(promptStyle.Render("sleepy") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text))
}

// ── domain.StoryDisplay ──────────────────────────────────────────

// ShowStory prints a story's title and full text.
func (u *UI) ShowStory(st *domain.Story) {
	if st == nil {
		return
	}
	u.mu.Lock()
	u.segments = append(u.segments[:0], st.Segments...)
	u.mu.Unlock()

	u.Println("")
	u.Println(titleStyle.Render("  " + st.Title))
	for _, seg := range st.Segments {
		u.PrintInstruction(seg.Text)
	}
	u.PrintHint(fmt.Sprintf("%d 段・約 %s", len(st.Segments), fmtDuration(st.TotalHint())))
}

// ShowLoading prints a generation progress message.
func (u *UI) ShowLoading(msg string) {
	u.PrintHint(msg)
}

// ── domain.NarrationObserver ─────────────────────────────────────

// SegmentStarted marks the segment being read.
func (u *UI) SegmentStarted(index int, seg domain.Segment) {
	u.mu.Lock()
	total := len(u.segments)
	u.mu.Unlock()
	u.Println(activeStyle.Render(fmt.Sprintf("  ▶ %s ", progress(index, total))) + chatStyle.Render(seg.Text))
	u.refresh()
}

// NarrationStopped notes the end of narration.
func (u *UI) NarrationStopped(finished bool) {
	if finished {
		u.PrintHint("■ 故事說完了")
	} else {
		u.PrintHint("■ 已停止")
	}
	u.refresh()
}

// ── domain.BreathingDisplay ──────────────────────────────────────

// SetInstruction updates the breathing line. A new instruction is also
// printed to the scrollback; detail changes only touch the status bar.
func (u *UI) SetInstruction(text, detail string) {
	u.mu.Lock()
	changed := text != u.instruction
	u.instruction = text
	u.detail = detail
	u.mu.Unlock()

	if changed && text != "" {
		u.Println(breathStyle.Render("  " + text))
	}
	u.refresh()
}

// SetPhase switches the breathing cue.
func (u *UI) SetPhase(kind domain.PhaseKind) {
	u.mu.Lock()
	u.phase = kind
	if kind == domain.PhaseIdle {
		u.instruction = ""
		u.detail = ""
	}
	u.mu.Unlock()
	u.refresh()
}

// ── Lifecycle ────────────────────────────────────────────────────

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run() error {
	ti := textinput.New()
	ti.Prompt = Prompt
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#a5b4fc"))
	ti.Placeholder = "story / play / breathe / help"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60 // updated on first WindowSizeMsg

	m := model{
		snapshot: u.snapshot,
		input:    ti,
		inputCh:  u.inputCh,
		readyCh:  u.readyCh,
		echoFn:   u.PrintUserInput,
	}

	u.program = tea.NewProgram(m)
	_, err := u.program.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

// snapshot combines engine status with the breathing text the runner
// pushed to us.
func (u *UI) snapshot() barState {
	s := barState{app: u.status()}
	u.mu.Lock()
	s.instruction = u.instruction
	s.detail = u.detail
	s.phase = u.phase
	u.mu.Unlock()
	return s
}

// refresh asks the model to redraw the bar now instead of on the next tick.
func (u *UI) refresh() {
	if u.program != nil && !u.done.Load() {
		go u.program.Send(refreshMsg{})
	}
}

// ── Bubble Tea model ─────────────────────────────────────────────

type barState struct {
	app         domain.AppStatus
	instruction string
	detail      string
	phase       domain.PhaseKind
}

type model struct {
	snapshot func() barState
	input    textinput.Model
	inputCh  chan<- string
	readyCh  chan struct{}
	echoFn   func(string) // prints user input into scrollback
	bar      barState
	width    int
}

// Messages.
type (
	tickMsg    time.Time
	refreshMsg struct{}
)

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tickCmd(),
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			v := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(v) != "" {
				m.inputCh <- v
				// Print the echo outside Update so it won't deadlock on msgs.
				echoFn := m.echoFn
				return m, func() tea.Msg {
					echoFn(v)
					return nil
				}
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		promptLen := lipgloss.Width(Prompt)
		if msg.Width > promptLen {
			m.input.Width = msg.Width - promptLen
		}
		return m, nil

	case tickMsg:
		m.bar = m.snapshot()
		return m, tea.Batch(tickCmd(), tea.SetWindowTitle(windowTitle(m.bar)))

	case refreshMsg:
		m.bar = m.snapshot()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(renderBar(m.bar, m.width))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	return b.String()
}

package breathing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
	"github.com/hammamikhairi/sleepylearn/internal/logger"
)

type utterance struct {
	text string
	at   time.Time
}

// fakeSpeaker takes a fixed time per line and honours Cancel.
type fakeSpeaker struct {
	mu          sync.Mutex
	unavailable bool
	dur         time.Duration
	fail        error
	said        []utterance
	cancels     int
	cur         chan struct{}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string, _ domain.VoiceOptions) error {
	f.mu.Lock()
	f.said = append(f.said, utterance{text, time.Now()})
	if f.cur != nil {
		close(f.cur)
	}
	ch := make(chan struct{})
	f.cur = ch
	fail := f.fail
	f.mu.Unlock()

	if fail != nil {
		return fail
	}
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
	f.cancels++
	if f.cur != nil {
		close(f.cur)
		f.cur = nil
	}
}

func (f *fakeSpeaker) Available() bool { return !f.unavailable }

func (f *fakeSpeaker) lines() []utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]utterance(nil), f.said...)
}

func (f *fakeSpeaker) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// screen records what the runner displays.
type screen struct {
	mu     sync.Mutex
	text   string
	detail string
	phase  domain.PhaseKind
	resets chan struct{}
}

func newScreen() *screen { return &screen{resets: make(chan struct{}, 8)} }

func (s *screen) SetInstruction(text, detail string) {
	s.mu.Lock()
	s.text, s.detail = text, detail
	s.mu.Unlock()
	if text == textInitial {
		s.resets <- struct{}{}
	}
}

func (s *screen) SetPhase(k domain.PhaseKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = k
}

func (s *screen) get() (string, string, domain.PhaseKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.detail, s.phase
}

func newRunner(sp domain.Speaker, scr *screen, opts ...Option) *Runner {
	opts = append([]Option{WithDisplay(scr)}, opts...)
	return New(sp, logger.New(logger.LevelOff, nil), opts...)
}

func TestDefaultProtocol(t *testing.T) {
	p := DefaultProtocol()
	if err := p.Validate(); err != nil {
		t.Fatalf("default protocol invalid: %v", err)
	}
	if p.Cycles != 4 {
		t.Errorf("cycles = %d, want 4", p.Cycles)
	}
	if got := p.ActiveTime(); got != 94*time.Second {
		t.Errorf("active time = %v, want 94s", got)
	}
	if lines := p.Lines(); len(lines) != 7 || lines[0] != lineWelcome || lines[6] != lineCompletion {
		t.Errorf("lines = %q", lines)
	}

	bad := DefaultProtocol()
	bad.Cycle[1].Duration = 0
	if bad.Validate() == nil {
		t.Error("expected error for zero-length phase")
	}
	bad = DefaultProtocol()
	bad.Cycles = 0
	if bad.Validate() == nil {
		t.Error("expected error for zero cycles")
	}
}

func TestFullSessionTiming(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: 2 * time.Second}
		scr := newScreen()
		r := newRunner(sp, scr)

		start := time.Now()
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
		<-scr.resets

		// welcome 2s + 94s active + closing line 2s + 2s pause.
		if got := time.Since(start); got != 100*time.Second {
			t.Errorf("session took %v, want 100s", got)
		}
		if r.IsActive() {
			t.Error("still active after completion")
		}

		lines := sp.lines()
		if lines[0].text != lineWelcome {
			t.Errorf("first line = %q, want welcome", lines[0].text)
		}
		last := lines[len(lines)-1]
		if last.text != lineCompletion {
			t.Fatalf("last line = %q, want completion", last.text)
		}
		welcomeEnd := start.Add(2 * time.Second)
		if got := last.at.Sub(welcomeEnd); got != 94*time.Second {
			t.Errorf("active time = %v, want 94s", got)
		}
		// welcome + 2 prep + 4 cycles * 3 + completion
		if len(lines) != 1+2+12+1 {
			t.Errorf("spoke %d lines, want 16", len(lines))
		}
	})
}

func TestCountdownAndStatus(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: 2 * time.Second}
		scr := newScreen()
		r := newRunner(sp, scr)
		r.Start(context.Background())

		// Welcome ends at 2s, prep runs to 14s, first inhale 14s..18s.
		time.Sleep(15 * time.Second)
		synctest.Wait()

		text, detail, phase := scr.get()
		if phase != domain.PhaseInhale {
			t.Errorf("phase = %v, want inhale", phase)
		}
		if !strings.Contains(text, "吸氣") {
			t.Errorf("instruction = %q", text)
		}
		if detail != "第 1 次循環 - 吸氣 3秒" {
			t.Errorf("detail = %q", detail)
		}

		st := r.Status()
		if !st.Active || st.Cycle != 0 || st.TotalCycles != 4 || st.Phase != domain.PhaseInhale {
			t.Errorf("unexpected status %+v", st)
		}
		if st.Remaining != 3*time.Second {
			t.Errorf("remaining = %v, want 3s", st.Remaining)
		}

		// Second cycle's hold: 14 + 19 + 2 + 4 = 39s.
		time.Sleep(25 * time.Second)
		synctest.Wait()
		st = r.Status()
		if st.Cycle != 1 || st.Phase != domain.PhaseHold {
			t.Errorf("at 40s: %+v", st)
		}

		r.Stop()
		synctest.Wait()
	})
}

func TestStopDuringWelcome(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: 5 * time.Second}
		scr := newScreen()
		r := newRunner(sp, scr)
		r.Start(context.Background())

		time.Sleep(time.Second)
		before := sp.cancelCount()
		r.Stop()
		<-scr.resets

		if r.IsActive() {
			t.Error("still active after stop")
		}
		if sp.cancelCount() != before+1 {
			t.Error("stop did not cancel speech")
		}
		text, _, phase := scr.get()
		if text != textInitial || phase != domain.PhaseIdle {
			t.Errorf("display not reset: %q %v", text, phase)
		}

		time.Sleep(200 * time.Second)
		if got := len(sp.lines()); got != 1 {
			t.Errorf("spoke %d lines after stop, want only the welcome", got)
		}
		if text, _, _ := scr.get(); text != textInitial {
			t.Errorf("display changed after stop: %q", text)
		}
	})
}

func TestStopDuringCycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: 2 * time.Second}
		scr := newScreen()
		r := newRunner(sp, scr)
		r.Start(context.Background())

		time.Sleep(20 * time.Second) // first hold
		r.Stop()
		<-scr.resets
		n := len(sp.lines())

		time.Sleep(100 * time.Second)
		if len(sp.lines()) != n {
			t.Errorf("speech continued after stop")
		}
		if st := r.Status(); st.Active || st.Phase != domain.PhaseIdle || st.Cycle != 0 {
			t.Errorf("status not reset: %+v", st)
		}
	})
}

func TestStopIdempotentAndIdle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: time.Second}
		scr := newScreen()
		r := newRunner(sp, scr)

		r.Stop()
		r.Stop()
		if sp.cancelCount() != 0 {
			t.Errorf("idle stop cancelled speech %d times", sp.cancelCount())
		}
		if len(scr.resets) != 2 {
			t.Errorf("idle stop should still reset the display, got %d resets", len(scr.resets))
		}
	})
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: 2 * time.Second}
		r := newRunner(sp, newScreen())
		r.Start(context.Background())
		time.Sleep(500 * time.Millisecond)
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("second start: %v", err)
		}
		synctest.Wait()
		if got := len(sp.lines()); got != 1 {
			t.Errorf("second start spoke again: %d lines", got)
		}
		r.Stop()
		synctest.Wait()
	})
}

func TestStartWithoutSpeech(t *testing.T) {
	r := newRunner(&fakeSpeaker{unavailable: true}, newScreen())
	if err := r.Start(context.Background()); !errors.Is(err, domain.ErrSpeechUnavailable) {
		t.Fatalf("expected ErrSpeechUnavailable, got %v", err)
	}
	if r.IsActive() {
		t.Error("should stay inactive without speech")
	}
}

func TestSpeechFailureStopsAndReports(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		boom := errors.New("synthesis quota exceeded")
		sp := &fakeSpeaker{dur: time.Second, fail: boom}
		scr := newScreen()

		var mu sync.Mutex
		var reported error
		r := newRunner(sp, scr, WithErrorHandler(func(err error) {
			mu.Lock()
			reported = err
			mu.Unlock()
		}))
		r.Start(context.Background())
		<-scr.resets
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		if !errors.Is(reported, boom) {
			t.Errorf("reported %v, want wrapped %v", reported, boom)
		}
		if r.IsActive() {
			t.Error("still active after failure")
		}
	})
}

func TestSingleCycleHasNoTransitionPause(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sp := &fakeSpeaker{dur: time.Second}
		scr := newScreen()
		r := newRunner(sp, scr, WithCycles(1))

		start := time.Now()
		r.Start(context.Background())
		<-scr.resets

		// 1s welcome + 12s prep + 19s cycle + 1s closing + 2s pause.
		if got := time.Since(start); got != 35*time.Second {
			t.Errorf("session took %v, want 35s", got)
		}
	})
}

// slowScreen blocks in SetInstruction until released, like a terminal UI
// whose event loop is busy.
type slowScreen struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowScreen) SetInstruction(string, string) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
}

func (s *slowScreen) SetPhase(domain.PhaseKind) {}

func TestStatusNotBlockedByDisplay(t *testing.T) {
	scr := &slowScreen{entered: make(chan struct{}), release: make(chan struct{})}
	sp := &fakeSpeaker{dur: 5 * time.Second}
	r := New(sp, logger.New(logger.LevelOff, nil), WithDisplay(scr))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-scr.entered

	done := make(chan domain.BreathingSession)
	go func() { done <- r.Status() }()
	select {
	case s := <-done:
		if !s.Active {
			t.Error("expected an active session")
		}
	case <-time.After(2 * time.Second):
		close(scr.release)
		t.Fatal("Status blocked while the display was busy")
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	close(scr.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return once the display caught up")
	}
	if r.IsActive() {
		t.Error("still active after stop")
	}
}

package domain

import "time"

// PhaseKind names a step of the breathing protocol.
type PhaseKind int

const (
	PhaseIdle PhaseKind = iota
	PhasePrepare
	PhaseExhalePrep
	PhaseInhale
	PhaseHold
	PhaseExhale
)

// String returns the snake_case phase name.
func (p PhaseKind) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseExhalePrep:
		return "exhale_prep"
	case PhaseInhale:
		return "inhale"
	case PhaseHold:
		return "hold"
	case PhaseExhale:
		return "exhale"
	default:
		return "idle"
	}
}

// BreathingPhase is one timed instruction in the protocol.
type BreathingPhase struct {
	Kind        PhaseKind
	Duration    time.Duration // always > 0
	Instruction string        // spoken and shown
	Label       string        // short on-screen word, e.g. 吸氣
}

// BreathingSession is a read-only snapshot of a breathing run.
type BreathingSession struct {
	Active      bool
	Cycle       int // completed cycles
	TotalCycles int
	Phase       PhaseKind
	Remaining   time.Duration // left in the current phase, 0 when idle
}

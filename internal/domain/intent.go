package domain

// Page is one of the app's screens.
type Page int

const (
	PageHome Page = iota
	PageStories
	PageBreathing
)

// String returns a human-readable page name.
func (p Page) String() string {
	switch p {
	case PageStories:
		return "stories"
	case PageBreathing:
		return "breathing"
	default:
		return "home"
	}
}

// IntentType classifies what the user wants to do.
type IntentType int

const (
	IntentUnknown IntentType = iota
	IntentHome
	IntentStories
	IntentBreathing
	IntentGenerate
	IntentPlay
	IntentStop
	IntentStatus
	IntentHelp
	IntentQuit
)

// String returns a human-readable intent type.
func (i IntentType) String() string {
	switch i {
	case IntentHome:
		return "home"
	case IntentStories:
		return "stories"
	case IntentBreathing:
		return "breathing"
	case IntentGenerate:
		return "generate"
	case IntentPlay:
		return "play"
	case IntentStop:
		return "stop"
	case IntentStatus:
		return "status"
	case IntentHelp:
		return "help"
	case IntentQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Intent represents a parsed user action.
type Intent struct {
	Type    IntentType
	Payload string // raw input, kept for logging
}

var intentNames = map[string]IntentType{
	"home":      IntentHome,
	"stories":   IntentStories,
	"breathing": IntentBreathing,
	"generate":  IntentGenerate,
	"play":      IntentPlay,
	"stop":      IntentStop,
	"status":    IntentStatus,
	"help":      IntentHelp,
	"quit":      IntentQuit,
	"unknown":   IntentUnknown,
}

// IntentFromString converts a snake_case intent name to an IntentType.
// Returns IntentUnknown for unrecognized names.
func IntentFromString(name string) IntentType {
	if t, ok := intentNames[name]; ok {
		return t
	}
	return IntentUnknown
}

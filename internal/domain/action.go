package domain

// ActionKind classifies what a voice command resolved to.
type ActionKind int

const (
	ActionNotUnderstood ActionKind = iota
	ActionTheme
	ActionNavigate
)

// String returns a human-readable action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionTheme:
		return "theme"
	case ActionNavigate:
		return "navigate"
	default:
		return "not_understood"
	}
}

// Action is the result of interpreting a transcript.
type Action struct {
	Kind   ActionKind
	Theme  Theme  // set for ActionTheme
	Route  Route  // set for ActionNavigate
	Phrase string // the trigger phrase that matched, if any
}

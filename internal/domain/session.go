package domain

import "time"

// Timing constants for the voice session.
const (
	// TranscriptTTL is how long a transcript stays visible before it is
	// wiped for privacy.
	TranscriptTTL = 3 * time.Second
	// ListenDelay is the pause between language selection and the first
	// recognition session.
	ListenDelay = 2 * time.Second
	// RestartDelay is the pause before recognition restarts after the
	// platform ends a session.
	RestartDelay = 1 * time.Second
	// AdvanceDelay is the pause between pages while auto-reading.
	AdvanceDelay = 2 * time.Second
	// MaxTranscriptLen caps sanitized transcripts, in characters.
	MaxTranscriptLen = 1000
)

// Storage keys in client-local storage.
const (
	KeyLanguage = "voicepay-language"
	KeyTheme    = "voicepay-theme"
)

// NavigationConfig is the voice session state.
type NavigationConfig struct {
	Language    Language
	IsEnabled   bool
	IsListening bool
}

// Theme is the site colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Opposite returns the other theme.
func (t Theme) Opposite() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// ParseTheme converts a stored value to a Theme, defaulting to dark.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// RecognitionState tracks the speech recognition lifecycle.
type RecognitionState int

const (
	RecognitionIdle RecognitionState = iota
	RecognitionListening
	RecognitionResult
	RecognitionError
	RecognitionEnded
)

// String returns a human-readable recognition state.
func (s RecognitionState) String() string {
	switch s {
	case RecognitionIdle:
		return "idle"
	case RecognitionListening:
		return "listening"
	case RecognitionResult:
		return "result"
	case RecognitionError:
		return "error"
	case RecognitionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Utterance is one unit of synthesized speech.
type Utterance struct {
	Text   string
	Locale string // empty = synthesizer default
	Rate   float64
	Pitch  float64
	Volume float64
}

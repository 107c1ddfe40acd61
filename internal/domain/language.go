// Package domain defines the core types and interfaces for the voice
// navigator. All other packages depend on domain; domain depends on nothing.
package domain

// Language is one of the supported voice-navigation locales.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	LanguageChinese Language = "zh"
)

// Languages lists the supported languages in selector order.
var Languages = []Language{LanguageEnglish, LanguageHindi, LanguageChinese}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// RouteCommand maps one trigger phrase to a route.
type RouteCommand struct {
	Phrase string
	Route  Route
}

// ThemeCommands holds the trigger phrases for each theme, in match order.
type ThemeCommands struct {
	Light []string
	Dark  []string
}

// Messages are the fixed announcements spoken in a language.
type Messages struct {
	Welcome            string
	NavigationPrompt   string
	PageNotFound       string
	MicrophoneRequired string
	LightModeEnabled   string
	DarkModeEnabled    string
}

// LanguageConfig is the immutable per-language record. Commands and
// ThemeCommands keep declaration order; the interpreter relies on it to
// break ties deterministically.
type LanguageConfig struct {
	Code              Language
	Name              string
	SynthesisLocale   string
	RecognitionLocale string
	Messages          Messages
	Commands          []RouteCommand
	ThemeCommands     ThemeCommands

	// NavigatingTo renders the "navigating to <page>" announcement.
	NavigatingTo func(page string) string
}

// Announce returns the navigation announcement for page.
func (c *LanguageConfig) Announce(page string) string {
	if c.NavigatingTo == nil {
		return "Navigating to " + page
	}
	return c.NavigatingTo(page)
}

// Package conversation maps recognized speech to site actions.
package conversation

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/hammamikhairi/voicepay/internal/domain"
)

// Interpret resolves a transcript against a language's phrase tables.
//
// Theme phrases are checked first (light, then dark), then navigation
// phrases, each in declaration order; the first contained phrase wins.
// Matching is case-folded substring containment. A transcript that matches
// nothing yields ActionNotUnderstood.
func Interpret(transcript string, cfg *domain.LanguageConfig) domain.Action {
	if cfg == nil {
		return domain.Action{Kind: domain.ActionNotUnderstood}
	}
	text := fold(transcript)
	if strings.TrimSpace(text) == "" {
		return domain.Action{Kind: domain.ActionNotUnderstood}
	}

	themes := []struct {
		theme   domain.Theme
		phrases []string
	}{
		{domain.ThemeLight, cfg.ThemeCommands.Light},
		{domain.ThemeDark, cfg.ThemeCommands.Dark},
	}
	for _, group := range themes {
		for _, phrase := range group.phrases {
			if contains(text, phrase) {
				return domain.Action{Kind: domain.ActionTheme, Theme: group.theme, Phrase: phrase}
			}
		}
	}

	for _, cmd := range cfg.Commands {
		if contains(text, cmd.Phrase) {
			return domain.Action{Kind: domain.ActionNavigate, Route: cmd.Route, Phrase: cmd.Phrase}
		}
	}

	return domain.Action{Kind: domain.ActionNotUnderstood}
}

func contains(folded, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(folded, fold(phrase))
}

// fold applies Unicode case folding. A Caser is stateful, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

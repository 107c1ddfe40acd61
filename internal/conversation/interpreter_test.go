package conversation

import (
	"strings"
	"testing"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
	"github.com/hammamikhairi/voicepay/internal/phrases"
	"github.com/hammamikhairi/voicepay/internal/privacy"
)

func loadConfig(t *testing.T, lang domain.Language) *domain.LanguageConfig {
	t.Helper()
	cat := phrases.MustLoad(logger.New(logger.LevelOff, nil))
	cfg, err := cat.Config(lang)
	if err != nil {
		t.Fatalf("config %s: %v", lang, err)
	}
	return cfg
}

func TestInterpretEnglish(t *testing.T) {
	cfg := loadConfig(t, domain.LanguageEnglish)

	tests := []struct {
		input     string
		wantKind  domain.ActionKind
		wantRoute domain.Route
		wantTheme domain.Theme
	}{
		{"home", domain.ActionNavigate, domain.RouteHome, ""},
		{"take me to the pricing page", domain.ActionNavigate, domain.RoutePricing, ""},
		{"ABOUT", domain.ActionNavigate, domain.RouteAbout, ""},
		{"show me how it's working", domain.ActionNavigate, domain.RouteWorking, ""},
		{"dark mode please", domain.ActionTheme, "", domain.ThemeDark},
		{"switch to light", domain.ActionTheme, "", domain.ThemeLight},
		{"it is night", domain.ActionTheme, "", domain.ThemeDark},
		{"sunlight", domain.ActionTheme, "", domain.ThemeLight},
		{"buy bitcoin", domain.ActionNotUnderstood, "", ""},
		{"", domain.ActionNotUnderstood, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Interpret(tt.input, cfg)
			if got.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Route != tt.wantRoute {
				t.Errorf("route = %q, want %q", got.Route, tt.wantRoute)
			}
			if got.Theme != tt.wantTheme {
				t.Errorf("theme = %q, want %q", got.Theme, tt.wantTheme)
			}
		})
	}
}

func TestThemeBeatsNavigation(t *testing.T) {
	for _, lang := range domain.Languages {
		cfg := loadConfig(t, lang)
		nav := cfg.Commands[0].Phrase
		for _, phrase := range cfg.ThemeCommands.Dark {
			input := nav + " " + phrase
			if got := Interpret(input, cfg); got.Kind != domain.ActionTheme {
				t.Errorf("%s: %q resolved to %s, want theme", lang, input, got.Kind)
			}
		}
	}
}

func TestThemePhrasesResolveToOwnTheme(t *testing.T) {
	for _, lang := range domain.Languages {
		cfg := loadConfig(t, lang)
		for _, p := range cfg.ThemeCommands.Light {
			if got := Interpret(p, cfg); got.Kind != domain.ActionTheme || got.Theme != domain.ThemeLight {
				t.Errorf("%s: light phrase %q -> %+v", lang, p, got)
			}
		}
		for _, p := range cfg.ThemeCommands.Dark {
			if got := Interpret(p, cfg); got.Kind != domain.ActionTheme || got.Theme != domain.ThemeDark {
				t.Errorf("%s: dark phrase %q -> %+v", lang, p, got)
			}
		}
	}
}

func TestNoCrossLanguageThemeLeak(t *testing.T) {
	en := loadConfig(t, domain.LanguageEnglish)
	for _, lang := range []domain.Language{domain.LanguageHindi, domain.LanguageChinese} {
		cfg := loadConfig(t, lang)
		for _, p := range append(cfg.ThemeCommands.Light, cfg.ThemeCommands.Dark...) {
			if got := Interpret(p, en); got.Kind == domain.ActionTheme {
				t.Errorf("%s phrase %q matched an English theme command", lang, p)
			}
		}
	}
}

func TestInterpretHindiAndChinese(t *testing.T) {
	hi := loadConfig(t, domain.LanguageHindi)
	if got := Interpret("होम पर जाओ", hi); got.Kind != domain.ActionNavigate || got.Route != domain.RouteHome {
		t.Errorf("hindi home -> %+v", got)
	}
	if got := Interpret("go to pricing", hi); got.Route != domain.RoutePricing {
		t.Errorf("hindi english fallback -> %+v", got)
	}

	zh := loadConfig(t, domain.LanguageChinese)
	if got := Interpret("打开定价页面", zh); got.Route != domain.RoutePricing {
		t.Errorf("chinese pricing -> %+v", got)
	}
	if got := Interpret("切换到暗色模式", zh); got.Theme != domain.ThemeDark {
		t.Errorf("chinese dark -> %+v", got)
	}
}

func TestFirstListedPhraseWins(t *testing.T) {
	cfg := &domain.LanguageConfig{
		Commands: []domain.RouteCommand{
			{Phrase: "pricing", Route: domain.RoutePricing},
			{Phrase: "about", Route: domain.RouteAbout},
		},
	}
	got := Interpret("about pricing", cfg)
	if got.Route != domain.RoutePricing || got.Phrase != "pricing" {
		t.Fatalf("got %+v, want first listed phrase to win", got)
	}
}

func TestSanitizedMarkupStillMatches(t *testing.T) {
	cfg := loadConfig(t, domain.LanguageEnglish)
	input := privacy.Sanitize("<script>home</script>" + strings.Repeat("x", 2000))
	if got := Interpret(input, cfg); got.Route != domain.RouteHome {
		t.Fatalf("got %+v, want home", got)
	}
}

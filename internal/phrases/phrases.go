// Package phrases loads the per-language voice command tables and spoken
// announcements.
//
// Announcements live in go-i18n message files (locales/active.*.toml) so a
// missing translation falls back to English. Command tables live in
// commands/*.toml as arrays, which keeps phrase order stable: the
// interpreter breaks ties by declaration order.
package phrases

import (
	"embed"
	"fmt"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

//go:embed locales/active.*.toml
var localeFS embed.FS

//go:embed commands/*.toml
var commandFS embed.FS

// Message IDs in the locale files.
const (
	msgWelcome            = "Welcome"
	msgNavigationPrompt   = "NavigationPrompt"
	msgPageNotFound       = "PageNotFound"
	msgMicrophoneRequired = "MicrophoneRequired"
	msgLightModeEnabled   = "LightModeEnabled"
	msgDarkModeEnabled    = "DarkModeEnabled"
	msgNavigatingTo       = "NavigatingTo"
)

// commandFile is the on-disk shape of commands/<lang>.toml.
type commandFile struct {
	Name              string `toml:"name"`
	SynthesisLocale   string `toml:"synthesis_locale"`
	RecognitionLocale string `toml:"recognition_locale"`
	Commands          []struct {
		Phrase string `toml:"phrase"`
		Route  string `toml:"route"`
	} `toml:"commands"`
	Theme struct {
		Light []string `toml:"light"`
		Dark  []string `toml:"dark"`
	} `toml:"theme"`
}

// Catalog holds one immutable LanguageConfig per supported language.
type Catalog struct {
	configs map[domain.Language]*domain.LanguageConfig
}

// Load parses the embedded locale and command files.
func Load(log *logger.Logger) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, lang := range domain.Languages {
		file := path.Join("locales", "active."+string(lang)+".toml")
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	c := &Catalog{configs: make(map[domain.Language]*domain.LanguageConfig, len(domain.Languages))}
	for _, lang := range domain.Languages {
		cfg, err := buildConfig(bundle, lang, log)
		if err != nil {
			return nil, err
		}
		c.configs[lang] = cfg
		log.Debug("phrases: loaded %s (%d route phrases, %d/%d theme phrases)",
			lang, len(cfg.Commands), len(cfg.ThemeCommands.Light), len(cfg.ThemeCommands.Dark))
	}
	return c, nil
}

// MustLoad is Load for callers that cannot continue without phrases.
func MustLoad(log *logger.Logger) *Catalog {
	c, err := Load(log)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns the configuration for lang.
func (c *Catalog) Config(lang domain.Language) (*domain.LanguageConfig, error) {
	cfg, ok := c.configs[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownLanguage, lang)
	}
	return cfg, nil
}

func buildConfig(bundle *i18n.Bundle, lang domain.Language, log *logger.Logger) (*domain.LanguageConfig, error) {
	file := path.Join("commands", string(lang)+".toml")
	raw, err := commandFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	var cf commandFile
	if err := toml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}

	for _, locale := range []string{cf.SynthesisLocale, cf.RecognitionLocale} {
		if _, err := language.Parse(locale); err != nil {
			return nil, fmt.Errorf("%s: bad locale %q: %w", file, locale, err)
		}
	}

	localizer := i18n.NewLocalizer(bundle, string(lang), language.English.String())
	localize := func(id string, data map[string]any) string {
		msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
		if err != nil {
			log.Warn("phrases: localize %s/%s: %v", lang, id, err)
			return id
		}
		return msg
	}

	cfg := &domain.LanguageConfig{
		Code:              lang,
		Name:              cf.Name,
		SynthesisLocale:   cf.SynthesisLocale,
		RecognitionLocale: cf.RecognitionLocale,
		Messages: domain.Messages{
			Welcome:            localize(msgWelcome, nil),
			NavigationPrompt:   localize(msgNavigationPrompt, nil),
			PageNotFound:       localize(msgPageNotFound, nil),
			MicrophoneRequired: localize(msgMicrophoneRequired, nil),
			LightModeEnabled:   localize(msgLightModeEnabled, nil),
			DarkModeEnabled:    localize(msgDarkModeEnabled, nil),
		},
		ThemeCommands: domain.ThemeCommands{
			Light: cf.Theme.Light,
			Dark:  cf.Theme.Dark,
		},
		NavigatingTo: func(page string) string {
			return localize(msgNavigatingTo, map[string]any{"Page": page})
		},
	}
	for _, c := range cf.Commands {
		cfg.Commands = append(cfg.Commands, domain.RouteCommand{
			Phrase: c.Phrase,
			Route:  domain.Route(c.Route),
		})
	}
	return cfg, nil
}

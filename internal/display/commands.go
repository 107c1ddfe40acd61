package display

import (
	"strings"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/engine"
)

// CommandKind identifies what a line of user input asks for.
type CommandKind int

const (
	CmdTranscript CommandKind = iota // free text, interpreted like speech
	CmdConsent
	CmdDecline
	CmdLanguage
	CmdVoice
	CmdTheme
	CmdRead
	CmdClear
	CmdGo
	CmdHelp
	CmdQuit
)

// Command is one parsed line of user input.
type Command struct {
	Kind     CommandKind
	Text     string
	Language domain.Language
	Route    domain.Route
}

// HelpText lists the slash commands.
const HelpText = "/voice  /theme  /read  /clear  /lang en|hi|zh  /go home|about|working|pricing  /quit  (anything else is a voice command)"

// ParseCommand turns a prompt line into a command. While the consent or
// language prompt is showing, bare answers ("y", "2", "hi") are accepted.
// The second result is false for blank or malformed input.
func ParseCommand(line string, s engine.Snapshot) (Command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, false
	}
	lower := strings.ToLower(line)

	if s.ShowConsent {
		switch lower {
		case "y", "yes":
			return Command{Kind: CmdConsent}, true
		case "n", "no":
			return Command{Kind: CmdDecline}, true
		}
	}
	if s.ShowLanguagePick {
		if lang, ok := parseLanguage(lower); ok {
			return Command{Kind: CmdLanguage, Language: lang}, true
		}
	}

	if !strings.HasPrefix(lower, "/") {
		return Command{Kind: CmdTranscript, Text: line}, true
	}

	verb, arg, _ := strings.Cut(strings.TrimPrefix(lower, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "voice", "v":
		return Command{Kind: CmdVoice}, true
	case "theme", "t":
		return Command{Kind: CmdTheme}, true
	case "read", "r":
		return Command{Kind: CmdRead}, true
	case "clear", "x":
		return Command{Kind: CmdClear}, true
	case "help", "h", "?":
		return Command{Kind: CmdHelp}, true
	case "quit", "q", "exit":
		return Command{Kind: CmdQuit}, true
	case "consent":
		switch arg {
		case "", "y", "yes":
			return Command{Kind: CmdConsent}, true
		case "n", "no":
			return Command{Kind: CmdDecline}, true
		}
	case "lang", "language":
		if lang, ok := parseLanguage(arg); ok {
			return Command{Kind: CmdLanguage, Language: lang}, true
		}
	case "go":
		if route, ok := parseRoute(arg); ok {
			return Command{Kind: CmdGo, Route: route}, true
		}
	}
	return Command{}, false
}

func parseLanguage(s string) (domain.Language, bool) {
	for i, lang := range domain.Languages {
		if s == string(lang) || s == string(rune('1'+i)) {
			return lang, true
		}
	}
	return "", false
}

func parseRoute(s string) (domain.Route, bool) {
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, "/") {
		if s == "home" {
			return domain.RouteHome, true
		}
		s = "/" + s
	}
	// Unknown paths are kept; the router shows the not-found page.
	return domain.Route(s), true
}

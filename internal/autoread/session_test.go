package autoread

import (
	"context"
	"testing"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/engine"
	"github.com/hammamikhairi/voicepay/internal/logger"
	"github.com/hammamikhairi/voicepay/internal/phrases"
	"github.com/hammamikhairi/voicepay/internal/site"
	"github.com/hammamikhairi/voicepay/internal/storage"
	"github.com/hammamikhairi/voicepay/internal/timer"
)

type idleRecognizer struct{}

func (idleRecognizer) Configure(string, bool, bool)          {}
func (idleRecognizer) Start(domain.RecognitionHandler) error { return nil }
func (idleRecognizer) Stop()                                 {}
func (idleRecognizer) Abort()                                {}

type grantedMic struct{}

func (grantedMic) Request(context.Context) error { return nil }

type blankPresenter struct{}

func (blankPresenter) ApplyTheme(domain.Theme) {}

// voiceSession wires a walker and an engine over one last-wins synthesizer
// the way the application does, with English voice control enabled.
func voiceSession(t *testing.T) (*Walker, *engine.Engine, *fakeSpeech, *site.Router, *timer.Manual) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	speech := &fakeSpeech{}
	router := site.NewRouter(domain.RouteHome, log)
	clock := timer.NewManual()

	w := New(speech, router, clock, log)
	router.Subscribe(w.OnRoute)

	eng := engine.New(engine.Ports{
		Languages:  phrases.MustLoad(log),
		Recognizer: idleRecognizer{},
		Speech:     w.Yield(speech),
		Microphone: grantedMic{},
		Store:      storage.NewMemoryStore(log),
		Navigator:  router,
		Presenter:  blankPresenter{},
		Scheduler:  clock,
	}, log)

	ctx := context.Background()
	eng.Init(ctx)
	eng.GrantConsent()
	if err := eng.SelectLanguage(ctx, domain.LanguageEnglish); err != nil {
		t.Fatal(err)
	}
	return w, eng, speech, router, clock
}

func TestNavigationCommandKeepsTourGoing(t *testing.T) {
	w, eng, speech, router, clock := voiceSession(t)
	w.Toggle()

	eng.HandleTranscript("about")
	if router.Current() != domain.RouteAbout {
		t.Fatalf("route = %s, want /about", router.Current())
	}
	if speech.last() != "Navigating to about" {
		t.Fatalf("last = %q, want the announcement", speech.last())
	}

	speech.finish()
	if speech.last() != content(t, domain.RouteAbout) {
		t.Fatalf("about page not read after announcement, last = %q", speech.last())
	}

	speech.finish()
	clock.Advance(domain.AdvanceDelay)
	if router.Current() != domain.RouteWorking || !w.Reading() {
		t.Fatalf("route = %s reading=%v, want /working while reading", router.Current(), w.Reading())
	}
	if speech.last() != content(t, domain.RouteWorking) {
		t.Errorf("working page not read, last = %q", speech.last())
	}
}

func TestThemeCommandKeepsTourGoing(t *testing.T) {
	w, eng, speech, router, clock := voiceSession(t)
	w.Toggle()

	eng.HandleTranscript("dark mode please")
	if speech.last() != "Switched to dark mode." {
		t.Fatalf("last = %q, want the theme confirmation", speech.last())
	}

	speech.finish()
	if speech.last() != content(t, domain.RouteHome) {
		t.Fatalf("home page not resumed, last = %q", speech.last())
	}

	speech.finish()
	clock.Advance(domain.AdvanceDelay)
	if router.Current() != domain.RouteAbout {
		t.Fatalf("route = %s, want /about", router.Current())
	}
}

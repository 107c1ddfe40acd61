// Package engine implements the voice navigation session state machine:
// privacy consent, language selection, the recognition restart loop,
// command dispatch, spoken feedback and the theme controller.
//
// An Engine is not safe for concurrent use. Every method, and every
// callback it hands to the recognizer and scheduler, must run on the same
// event loop (see package timer).
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/voicepay/internal/conversation"
	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
	"github.com/hammamikhairi/voicepay/internal/privacy"
)

// LanguageSource resolves a language to its phrase tables and messages.
type LanguageSource interface {
	Config(lang domain.Language) (*domain.LanguageConfig, error)
}

// Ports bundles the platform capabilities the engine drives.
type Ports struct {
	Languages  LanguageSource
	Recognizer domain.Recognizer
	Speech     domain.Synthesizer
	Microphone domain.Microphone
	Store      domain.PreferenceStore
	Navigator  domain.Navigator
	Presenter  domain.Presenter
	Scheduler  domain.Scheduler
}

// Option configures the engine.
type Option func(*Engine)

// WithTranscriptTTL sets how long a transcript is kept before it is wiped.
func WithTranscriptTTL(d time.Duration) Option {
	return func(e *Engine) { e.transcriptTTL = d }
}

// WithListenDelay sets the pause between language selection and the first
// recognition session.
func WithListenDelay(d time.Duration) Option {
	return func(e *Engine) { e.listenDelay = d }
}

// WithRestartDelay sets the pause before recognition restarts after the
// platform ends a session.
func WithRestartDelay(d time.Duration) Option {
	return func(e *Engine) { e.restartDelay = d }
}

// WithConsentPromptDelay sets how long after Init the consent prompt shows.
func WithConsentPromptDelay(d time.Duration) Option {
	return func(e *Engine) { e.consentDelay = d }
}

// WithVoice sets the prosody used for spoken feedback.
func WithVoice(rate, pitch, volume float64) Option {
	return func(e *Engine) {
		e.rate, e.pitch, e.volume = rate, pitch, volume
	}
}

// Snapshot is a read-only view of the session for renderers.
type Snapshot struct {
	Config           domain.NavigationConfig
	Consent          bool
	ShowConsent      bool
	ShowLanguagePick bool
	Theme            domain.Theme
	Transcript       string
	Recognition      domain.RecognitionState
	LastSpoken       string
}

// Engine owns the voice session state.
type Engine struct {
	ports Ports
	log   *logger.Logger
	ctx   context.Context

	transcriptTTL time.Duration
	listenDelay   time.Duration
	restartDelay  time.Duration
	consentDelay  time.Duration
	rate          float64
	pitch         float64
	volume        float64

	config      domain.NavigationConfig
	consent     bool
	showConsent bool
	showPicker  bool
	theme       domain.Theme
	transcript  string
	recognition domain.RecognitionState
	lastSpoken  string

	armed      bool // recognizer configured after microphone access
	suspended  bool // listening stopped by the user; no auto restart
	generation int  // recognition session counter

	cancelClear   func()
	cancelListen  func()
	cancelRestart func()
	cancelPrompt  func()

	observers []func(Snapshot)
}

// New creates an engine in the initial state: English, voice disabled,
// no consent, dark theme.
func New(ports Ports, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		ports:         ports,
		log:           log,
		ctx:           context.Background(),
		transcriptTTL: domain.TranscriptTTL,
		listenDelay:   domain.ListenDelay,
		restartDelay:  domain.RestartDelay,
		consentDelay:  1 * time.Second,
		rate:          0.9,
		pitch:         1,
		volume:        0.8,
		config:        domain.NavigationConfig{Language: domain.LanguageEnglish},
		theme:         domain.ThemeDark,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init restores the stored theme, applies it, and schedules the consent
// prompt. Consent itself is never restored: it is asked for every session.
func (e *Engine) Init(ctx context.Context) {
	e.ctx = ctx

	stored, err := e.ports.Store.Get(ctx, domain.KeyTheme)
	switch {
	case err == nil:
		e.theme = domain.ParseTheme(stored)
	case errors.Is(err, domain.ErrNotFound):
		e.theme = domain.ThemeDark
	default:
		e.log.Warn("reading stored theme: %v", err)
	}
	e.ports.Presenter.ApplyTheme(e.theme)

	e.cancelPrompt = e.ports.Scheduler.AfterFunc(e.consentDelay, func() {
		e.cancelPrompt = nil
		e.showConsent = true
		e.notify()
	})
	e.log.Info("session initialized (theme=%s)", e.theme)
	e.notify()
}

// Subscribe registers fn to receive a snapshot after every state change.
func (e *Engine) Subscribe(fn func(Snapshot)) {
	e.observers = append(e.observers, fn)
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Config:           e.config,
		Consent:          e.consent,
		ShowConsent:      e.showConsent,
		ShowLanguagePick: e.showPicker,
		Theme:            e.theme,
		Transcript:       e.transcript,
		Recognition:      e.recognition,
		LastSpoken:       e.lastSpoken,
	}
}

// ── Consent / session ────────────────────────────────────────────

// GrantConsent records the user's permission and opens language selection.
func (e *Engine) GrantConsent() {
	e.stopTimer(&e.cancelPrompt)
	e.showConsent = false
	e.consent = true
	e.showPicker = true
	e.log.Info("voice consent granted")
	e.notify()
}

// DeclineConsent keeps voice features off for the rest of the session.
func (e *Engine) DeclineConsent() {
	e.stopTimer(&e.cancelPrompt)
	e.showConsent = false
	e.consent = false
	e.showPicker = false
	e.log.Info("voice consent declined")
	e.notify()
}

// SelectLanguage activates voice navigation in lang. It persists the
// obscured choice, greets the user and asks for the microphone. Listening
// starts after the listen delay if access was granted; otherwise the
// localized "microphone required" message is spoken instead.
func (e *Engine) SelectLanguage(ctx context.Context, lang domain.Language) error {
	if !e.consent {
		return domain.ErrConsentRequired
	}
	cfg, err := e.ports.Languages.Config(lang)
	if err != nil {
		return fmt.Errorf("selecting language: %w", err)
	}

	e.config.Language = lang
	e.config.IsEnabled = true
	e.suspended = false
	e.showPicker = false

	if err := e.ports.Store.Set(ctx, domain.KeyLanguage, privacy.Obscure(string(lang))); err != nil {
		e.log.Warn("persisting language: %v", err)
	}

	e.speak(cfg.Messages.Welcome)

	if err := e.ports.Microphone.Request(ctx); err != nil {
		e.log.Warn("microphone unavailable: %v", err)
		e.armed = false
		e.speak(cfg.Messages.MicrophoneRequired)
		e.notify()
		return nil
	}

	e.ports.Recognizer.Configure(cfg.RecognitionLocale, true, false)
	e.armed = true

	e.stopTimer(&e.cancelListen)
	e.cancelListen = e.ports.Scheduler.AfterFunc(e.listenDelay, func() {
		e.cancelListen = nil
		e.StartListening()
	})

	e.log.Info("voice navigation enabled (language=%s, locale=%s)", lang, cfg.RecognitionLocale)
	e.notify()
	return nil
}

// PreferredLanguage returns the language stored by a previous selection.
func (e *Engine) PreferredLanguage(ctx context.Context) (domain.Language, bool) {
	stored, err := e.ports.Store.Get(ctx, domain.KeyLanguage)
	if err != nil {
		return "", false
	}
	lang := domain.Language(privacy.Reveal(stored))
	return lang, lang.Valid()
}

// StartListening opens a recognition session. It does nothing unless the
// recognizer is armed, consent is granted, voice is enabled and no session
// is already running.
func (e *Engine) StartListening() {
	if !e.armed || !e.consent || !e.config.IsEnabled || e.config.IsListening {
		e.log.Debug("start listening ignored (armed=%v consent=%v enabled=%v listening=%v)",
			e.armed, e.consent, e.config.IsEnabled, e.config.IsListening)
		return
	}

	e.stopTimer(&e.cancelRestart)
	e.suspended = false
	e.generation++
	e.config.IsListening = true
	e.recognition = domain.RecognitionListening
	e.setTranscript("")

	if err := e.ports.Recognizer.Start(&session{engine: e, gen: e.generation}); err != nil {
		e.log.Error("starting recognition: %v", err)
		e.config.IsListening = false
		e.recognition = domain.RecognitionError
	}
	e.notify()
}

// StopListening ends the running session. Recognition stays off until the
// user starts it again.
func (e *Engine) StopListening() {
	e.stopTimer(&e.cancelRestart)
	e.stopTimer(&e.cancelListen)
	if !e.armed || !e.config.IsListening {
		return
	}
	e.suspended = true
	e.ports.Recognizer.Stop()
	e.config.IsListening = false
	e.recognition = domain.RecognitionIdle
	e.log.Info("listening stopped")
	e.notify()
}

// ToggleVoice stops listening if a session is running, otherwise starts one
// when voice is enabled and consented.
func (e *Engine) ToggleVoice() {
	switch {
	case e.config.IsEnabled && e.config.IsListening:
		e.StopListening()
	case e.config.IsEnabled && e.consent:
		e.StartListening()
	}
}

// ClearVoiceData returns the session to its initial state and removes the
// stored language preference.
func (e *Engine) ClearVoiceData(ctx context.Context) {
	e.stopTimer(&e.cancelClear)
	e.stopTimer(&e.cancelListen)
	e.stopTimer(&e.cancelRestart)

	if e.armed {
		e.ports.Recognizer.Abort()
	}
	e.ports.Speech.Cancel()

	if err := e.ports.Store.Delete(ctx, domain.KeyLanguage); err != nil {
		e.log.Warn("removing stored language: %v", err)
	}

	e.transcript = ""
	e.consent = false
	e.showPicker = false
	e.armed = false
	e.suspended = false
	e.config.IsEnabled = false
	e.config.IsListening = false
	e.recognition = domain.RecognitionIdle
	e.log.Info("voice data cleared")
	e.notify()
}

// Close releases the recognizer, speech and pending timers.
func (e *Engine) Close() {
	for _, c := range []*func(){&e.cancelClear, &e.cancelListen, &e.cancelRestart, &e.cancelPrompt} {
		e.stopTimer(c)
	}
	if e.armed {
		e.ports.Recognizer.Abort()
	}
	e.ports.Speech.Cancel()
	e.config.IsListening = false
	e.recognition = domain.RecognitionIdle
	e.log.Debug("engine closed")
}

// ── Recognition callbacks ────────────────────────────────────────

// session routes recognizer callbacks for one recognition session and
// drops them once a newer session has started.
type session struct {
	engine *Engine
	gen    int
}

var _ domain.RecognitionHandler = (*session)(nil)

func (s *session) OnResult(text string, final bool) {
	if s.gen == s.engine.generation {
		s.engine.onResult(text, final)
	}
}

func (s *session) OnError(err error) {
	if s.gen == s.engine.generation {
		s.engine.onError(err)
	}
}

func (s *session) OnEnd() {
	if s.gen == s.engine.generation {
		s.engine.onEnd()
	}
}

func (e *Engine) onResult(text string, final bool) {
	if !final {
		return
	}
	e.recognition = domain.RecognitionResult
	e.HandleTranscript(text)
}

// HandleTranscript treats text as a final recognition result: it is
// normalized, shown as the transcript and interpreted. Typed input goes
// through here too.
func (e *Engine) HandleTranscript(text string) domain.Action {
	cleaned := privacy.Sanitize(strings.ToLower(strings.TrimSpace(text)))
	e.setTranscript(cleaned)
	e.log.Debug("heard %q", cleaned)
	return e.HandleCommand(cleaned)
}

func (e *Engine) onError(err error) {
	e.log.Error("speech recognition error: %v", err)
	e.config.IsListening = false
	e.recognition = domain.RecognitionError
	e.notify()
}

func (e *Engine) onEnd() {
	e.config.IsListening = false
	e.recognition = domain.RecognitionEnded

	if e.config.IsEnabled && e.consent && !e.suspended {
		e.stopTimer(&e.cancelRestart)
		e.cancelRestart = e.ports.Scheduler.AfterFunc(e.restartDelay, func() {
			e.cancelRestart = nil
			e.StartListening()
		})
		e.log.Debug("recognition ended, restarting in %s", e.restartDelay)
	}
	e.notify()
}

// setTranscript stores t and schedules its removal.
func (e *Engine) setTranscript(t string) {
	e.stopTimer(&e.cancelClear)
	e.transcript = t
	if t == "" {
		return
	}
	e.cancelClear = e.ports.Scheduler.AfterFunc(e.transcriptTTL, func() {
		e.cancelClear = nil
		e.transcript = ""
		e.notify()
	})
}

// ── Commands ─────────────────────────────────────────────────────

// HandleCommand interprets transcript in the active language and applies
// the result: theme change, navigation, or a "page not found" reply.
func (e *Engine) HandleCommand(transcript string) domain.Action {
	cfg, err := e.ports.Languages.Config(e.config.Language)
	if err != nil {
		e.log.Error("no phrases for %s: %v", e.config.Language, err)
		return domain.Action{Kind: domain.ActionNotUnderstood}
	}

	action := conversation.Interpret(transcript, cfg)
	e.log.Info("voice command %q -> %s", transcript, action.Kind)

	switch action.Kind {
	case domain.ActionTheme:
		e.ToggleTheme(e.ctx, action.Theme)
	case domain.ActionNavigate:
		e.ports.Navigator.Navigate(action.Route)
		e.speak(cfg.Announce(action.Route.PageName()))
	default:
		e.speak(cfg.Messages.PageNotFound)
	}
	e.notify()
	return action
}

// ToggleTheme switches to target, or to the opposite theme when target is
// empty. The plain value is persisted and, with consent, confirmed aloud.
func (e *Engine) ToggleTheme(ctx context.Context, target domain.Theme) {
	if target == "" {
		target = e.theme.Opposite()
	}
	e.theme = target

	if err := e.ports.Store.Set(ctx, domain.KeyTheme, string(target)); err != nil {
		e.log.Warn("persisting theme: %v", err)
	}
	e.ports.Presenter.ApplyTheme(target)

	if e.consent {
		if cfg, err := e.ports.Languages.Config(e.config.Language); err == nil {
			msg := cfg.Messages.DarkModeEnabled
			if target == domain.ThemeLight {
				msg = cfg.Messages.LightModeEnabled
			}
			e.speak(msg)
		}
	}
	e.notify()
}

// Speak says text in the active language. It is a no-op without consent.
func (e *Engine) Speak(text string) {
	e.speak(text)
	e.notify()
}

func (e *Engine) speak(text string) {
	if !e.consent || text == "" {
		return
	}
	u := domain.Utterance{Text: text, Rate: e.rate, Pitch: e.pitch, Volume: e.volume}
	if cfg, err := e.ports.Languages.Config(e.config.Language); err == nil {
		u.Locale = cfg.SynthesisLocale
	}
	e.lastSpoken = text
	e.ports.Speech.Speak(u, nil)
}

func (e *Engine) stopTimer(cancel *func()) {
	if *cancel != nil {
		(*cancel)()
		*cancel = nil
	}
}

func (e *Engine) notify() {
	snap := e.Snapshot()
	for _, fn := range e.observers {
		fn(snap)
	}
}

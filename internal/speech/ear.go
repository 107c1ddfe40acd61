package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"
	"golang.org/x/text/language"

	"github.com/hammamikhairi/voicepay/internal/domain"
	"github.com/hammamikhairi/voicepay/internal/logger"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// ErrAlreadyListening is returned by Start while a session is running.
var ErrAlreadyListening = errors.New("recognition already started")

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithChunkDuration sets how long each recorded clip lasts.
func WithChunkDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.chunkDuration = d }
}

// WithSessionLength caps a continuous session. When it elapses the
// session ends normally and the caller decides whether to restart.
func WithSessionLength(d time.Duration) EarOption {
	return func(e *Ear) { e.sessionLength = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// WithEchoGuard skips recording while busy reports true, so the
// recognizer does not transcribe our own speech.
func WithEchoGuard(busy func() bool) EarOption {
	return func(e *Ear) { e.busy = busy }
}

// withTranscriber replaces the whisper recorder.
func withTranscriber(fn transcribeFunc) EarOption {
	return func(e *Ear) { e.transcribe = fn }
}

// transcribeFunc records one clip of the given length and returns its text
// in lang, a base language code such as "hi".
type transcribeFunc func(ctx context.Context, d time.Duration, lang string) (string, error)

var _ domain.Recognizer = (*Ear)(nil)

// Ear is a speech recognizer backed by a local Whisper model. Audio is
// captured in fixed-length clips; every non-empty clip is delivered as a
// final result. Callbacks are posted to the event loop.
//
// Lifecycle:
//  1. Start spawns a session goroutine that records clip after clip.
//  2. Stop lets the current clip finish, delivers it, then OnEnd.
//  3. Abort ends the session at once and delivers nothing further.
//  4. A session also ends by itself after the session length, or after
//     the first result when not continuous.
type Ear struct {
	whisperBin string
	modelPath  string
	tempDir    string
	post       domain.Poster
	log        *logger.Logger
	busy       func() bool
	transcribe transcribeFunc

	chunkDuration time.Duration
	sessionLength time.Duration

	mu         sync.Mutex
	locale     string
	continuous bool
	active     *earSession
	launchers  map[string]string // language -> whisper launcher script
}

// earSession is the state of one Start..OnEnd cycle.
type earSession struct {
	cancel   context.CancelFunc
	stopping bool
	aborted  bool
}

// NewEar creates a whisper recognizer.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
//   - post:       event loop that receives recognition callbacks
func NewEar(whisperBin, modelPath string, post domain.Poster, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin:    whisperBin,
		modelPath:     modelPath,
		tempDir:       ".voicepay-stt",
		post:          post,
		log:           log,
		chunkDuration: DefaultChunkDuration,
		sessionLength: DefaultSessionLength,
		continuous:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transcribe == nil {
		e.transcribe = e.recordChunk
	}

	if _, err := exec.LookPath(e.whisperBin); err != nil {
		log.Error("ear: whisper binary %q not found in PATH: %v", e.whisperBin, err)
	}

	return e
}

// Configure sets the session parameters. Whisper only produces final
// text, so interim results are never delivered.
func (e *Ear) Configure(locale string, continuous, interimResults bool) {
	e.mu.Lock()
	e.locale = locale
	e.continuous = continuous
	e.mu.Unlock()
	e.log.Debug("ear: configured (locale=%s, continuous=%v, interim=%v)", locale, continuous, interimResults)
}

// Start opens a session that reports to h.
func (e *Ear) Start(h domain.RecognitionHandler) error {
	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return ErrAlreadyListening
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &earSession{cancel: cancel}
	e.active = sess
	continuous := e.continuous
	locale := e.locale
	e.mu.Unlock()

	lang := whisperLanguage(locale)
	e.log.Info("ear: listening (locale=%s, lang=%s, chunk=%s, session=%s)", locale, lang, e.chunkDuration, e.sessionLength)
	go e.session(ctx, sess, h, continuous, lang)
	return nil
}

// Stop ends the session after the clip in progress.
func (e *Ear) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.stopping = true
	}
}

// Abort ends the session immediately. No further callbacks are delivered
// and Start may be called again right away.
func (e *Ear) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return
	}
	e.active.aborted = true
	e.active.cancel()
	e.active = nil
}

// deliver posts fn unless sess was aborted by the time it runs.
func (e *Ear) deliver(sess *earSession, fn func()) {
	e.post.Post(func() {
		e.mu.Lock()
		aborted := sess.aborted
		e.mu.Unlock()
		if !aborted {
			fn()
		}
	})
}

func (e *Ear) session(ctx context.Context, sess *earSession, h domain.RecognitionHandler, continuous bool, lang string) {
	deadline := time.Now().Add(e.sessionLength)

	defer func() {
		e.mu.Lock()
		aborted := sess.aborted
		if e.active == sess {
			e.active = nil
		}
		sess.cancel()
		e.mu.Unlock()
		if !aborted {
			e.deliver(sess, h.OnEnd)
		}
		e.log.Debug("ear: session ended (aborted=%v)", aborted)
	}()

	for {
		if ctx.Err() != nil || e.isStopping(sess) || !time.Now().Before(deadline) {
			return
		}
		if e.busy != nil && e.busy() {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
			}
			continue
		}

		text, err := e.transcribe(ctx, e.chunkDuration, lang)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			e.deliver(sess, func() { h.OnError(err) })
			return
		}

		// Drop clips contaminated by our own speech.
		if e.busy != nil && e.busy() {
			e.log.Debug("ear: discarding clip recorded during playback")
			continue
		}

		text = cleanTranscription(text)
		if text == "" {
			continue
		}
		e.log.Debug("ear: heard %q", text)
		e.deliver(sess, func() { h.OnResult(text, true) })

		if !continuous {
			return
		}
	}
}

func (e *Ear) isStopping(sess *earSession) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sess.stopping
}

// ── Recording ────────────────────────────────────────────────────

// recordChunk does one recording cycle with the given duration and
// returns the text transcribed in lang.
func (e *Ear) recordChunk(ctx context.Context, duration time.Duration, lang string) (string, error) {
	bin, err := e.launcher(lang)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRecognizerUnavailable, err)
	}

	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := e.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		bin,
		e.modelPath,
		e.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRecognizerUnavailable, err)
	}

	if err := t.Start(); err != nil {
		return "", fmt.Errorf("%w: recording start: %v", domain.ErrRecognizerUnavailable, err)
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	t.Stop()
	wg.Wait()

	return result, nil
}

// launcher returns an executable that runs whisper-cli pinned to lang.
// The transcriber invokes its binary with fixed arguments, so the language
// flag travels through a one-line shell script, written once per language.
func (e *Ear) launcher(lang string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if path, ok := e.launchers[lang]; ok {
		return path, nil
	}

	if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("stt dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(e.tempDir, "whisper-"+lang+".sh"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(launcherScript(e.whisperBin, lang)), 0o755); err != nil {
		return "", fmt.Errorf("write launcher: %w", err)
	}
	if e.launchers == nil {
		e.launchers = make(map[string]string)
	}
	e.launchers[lang] = path
	return path, nil
}

func launcherScript(bin, lang string) string {
	return "#!/bin/sh\nexec " + shellQuote(bin) + " -l " + shellQuote(lang) + " \"$@\"\n"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// whisperLanguage maps a BCP 47 locale to the base language code
// whisper-cli takes for -l: "hi-IN" -> "hi", "zh-CN" -> "zh".
func whisperLanguage(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil || tag == language.Und {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

// ── Transcription cleanup ────────────────────────────────────────

// cleanTranscription strips whitespace, normalizes newlines, and
// removes common whisper artifacts like "[BLANK_AUDIO]", "(silence)",
// etc. Artifacts are stripped from anywhere in the text, not just as
// exact full-string matches.
func cleanTranscription(s string) string {
	// Normalize newlines and collapse whitespace.
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)

	// Junk patterns to strip from anywhere in the text.
	junkPatterns := []string{
		"[BLANK_AUDIO]",
		"[BLANK AUDIO]",
		"(silence)",
		"[silence]",
		"(no speech)",
		"[no speech]",
		"[Music]",
		"(music)",
		"(keyboard clicking)",
		"(keyboard clacking)",
		"(typing)",
		"(clicking)",
		"(mouse clicking)",
		"(breathing)",
		"(sighing)",
		"(coughing)",
		"(laughing)",
		"(clapping)",
		"(footsteps)",
		"(door closing)",
		"(door opening)",
		"(knocking)",
		"(phone ringing)",
		"(birds chirping)",
		"(dog barking)",
		"(baby crying)",
		"(water running)",
		"(wind blowing)",
		"(rain)",
		"(thunder)",
		"(static)",
		"(background noise)",
		"(inaudible)",
		"(unintelligible)",
		"(applause)",
		"(cheering)",
		"(buzzing)",
		"(beeping)",
	}
	for _, j := range junkPatterns {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
		s = strings.ReplaceAll(s, strings.ToUpper(j), "")
	}

	// Collapse any whitespace created by removals.
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	// Catch-all: strip any remaining (parenthesized) or [bracketed]
	// environmental annotations that whisper may produce, e.g.
	// "(dog barking)", "[laughter]", "(speaking French)", etc.
	s = envAnnotation.ReplaceAllString(s, "")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	// If what remains is just a known hallucination, discard entirely.
	hallucinations := []string{
		"...",
		"you",
		"Thank you.",
		"Thanks for watching!",
		"Thank you for watching.",
		"Bye.",
		"Bye!",
		"The end.",
		"Sous-titres réalisés para la communauté d'Amara.org",
	}
	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if strings.ToLower(h) == lower {
			return ""
		}
	}

	// Strip whisper timestamp prefixes like "[00:00:00.000 --> 00:00:05.000]"
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]"); idx != -1 && idx < 40 {
			rest := strings.TrimSpace(s[idx+1:])
			if rest != "" {
				return rest
			}
		}
	}

	return s
}

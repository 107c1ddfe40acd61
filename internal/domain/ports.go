package domain

import (
	"context"
	"time"
)

// RecognitionHandler receives speech recognition callbacks. Implementations
// are invoked on the event loop, one callback per turn.
type RecognitionHandler interface {
	OnResult(text string, final bool)
	OnError(err error)
	OnEnd()
}

// Recognizer wraps a platform speech-to-text capability. A recognizer runs
// at most one session at a time; Start on a running recognizer is an error.
type Recognizer interface {
	// Configure sets the recognition locale and modes for the next session.
	Configure(locale string, continuous, interimResults bool)
	// Start begins a session that reports to h until it ends.
	Start(h RecognitionHandler) error
	// Stop ends the session gracefully; OnEnd is still delivered.
	Stop()
	// Abort ends the session and drops any pending callbacks.
	Abort()
}

// Synthesizer wraps a platform text-to-speech capability. Speak cancels any
// utterance in progress; onEnd fires only when u finishes on its own.
type Synthesizer interface {
	Speak(u Utterance, onEnd func())
	Cancel()
}

// Microphone requests capture permission. A nil error means access was
// granted and the probe stream has already been released.
type Microphone interface {
	Request(ctx context.Context) error
}

// PreferenceStore is client-local key/value storage.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, error) // ErrNotFound if missing
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Navigator owns the current route.
type Navigator interface {
	Navigate(route Route)
	Current() Route
}

// Presenter applies document-level presentation state.
type Presenter interface {
	ApplyTheme(theme Theme)
}

// Scheduler runs fn on the event loop after d. The returned func cancels
// the call if it has not run yet.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// Poster delivers callbacks from adapter goroutines onto the event loop.
type Poster interface {
	Post(fn func())
}
